package qa

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step where a request failed.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageRetrieve Stage = "retrieve"
	StageAnswer   Stage = "answer"
)

// ErrTextTooShort indicates the extracted text is too small to index.
var ErrTextTooShort = errors.New("extracted text is too short to index")

// StageError wraps a pipeline failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the stage from a pipeline error, if any.
func FailedStage(err error) (Stage, bool) {
	var stageError *StageError
	if errors.As(err, &stageError) {
		return stageError.Stage, true
	}
	return "", false
}

// IsDocumentError reports whether the failure was caused by the submitted
// document rather than the service itself.
func IsDocumentError(err error) bool {
	stage, ok := FailedStage(err)
	if !ok {
		return false
	}
	return stage == StageDownload || stage == StageExtract || stage == StageChunk
}
