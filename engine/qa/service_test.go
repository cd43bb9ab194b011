package qa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/hackrx-qa/docqa/engine/answer"
	"github.com/hackrx-qa/docqa/engine/knowledge/chunk"
	"github.com/hackrx-qa/docqa/engine/knowledge/ingest"
	"github.com/hackrx-qa/docqa/engine/knowledge/retriever"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/engine/pdftext"
)

type spyFetcher struct {
	data  []byte
	err   error
	calls int
}

func (s *spyFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

type spyExtractor struct {
	text  string
	err   error
	calls int
}

func (s *spyExtractor) Extract(context.Context, []byte) (pdftext.Result, error) {
	s.calls++
	if s.err != nil {
		return pdftext.Result{}, s.err
	}
	return pdftext.Result{Text: s.text, Pages: 1}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(len(texts[i]) % 7)}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{1, float32(len(text) % 7)}, nil
}

type stubModel struct {
	response string
}

func (s *stubModel) GenerateContent(
	context.Context,
	[]llms.MessageContent,
	...llms.CallOption,
) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.response}}}, nil
}

func (s *stubModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return s.response, nil
}

type harness struct {
	service   *Service
	fetcher   *spyFetcher
	extractor *spyExtractor
	store     vectordb.Store
}

func newHarness(t *testing.T, fetcher *spyFetcher, extractor *spyExtractor) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := vectordb.New(ctx, &vectordb.Config{
		Provider:   vectordb.ProviderMemory,
		Collection: "test",
		Dimension:  2,
	})
	require.NoError(t, err)
	splitter, err := chunk.NewSplitter(chunk.Settings{Size: 200, Overlap: 40, MinChunkChars: 20})
	require.NoError(t, err)
	pipeline, err := ingest.New(splitter, stubEmbedder{}, store, ingest.Settings{
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	})
	require.NoError(t, err)
	ret, err := retriever.New(stubEmbedder{}, store, retriever.Settings{TopK: 5, MinScore: 0.3})
	require.NoError(t, err)
	generator, err := answer.Wrap(&answer.Config{
		Provider: answer.ProviderGroq,
		Model:    "test-model",
	}, &stubModel{response: "a grounded answer"})
	require.NoError(t, err)
	service, err := NewService(Options{
		Fetcher:      fetcher,
		Extractor:    extractor,
		Pipeline:     pipeline,
		Retriever:    ret,
		Generator:    generator,
		Store:        store,
		MinTextChars: 100,
	})
	require.NoError(t, err)
	return &harness{service: service, fetcher: fetcher, extractor: extractor, store: store}
}

func validText() string {
	return strings.Repeat("The policy covers hospitalization expenses after a waiting period. ", 10)
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldAnswerEveryQuestionInOrder", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{data: []byte("%PDF")}, &spyExtractor{text: validText()})
		resp, err := h.service.Run(ctx, Request{
			DocumentURL: "https://example.com/policy.pdf",
			Questions:   []string{"q1?", "q2?", "q3?"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Answers, 3)
		for _, got := range resp.Answers {
			assert.Equal(t, "a grounded answer", got)
		}
	})

	t.Run("ShouldSkipIngestionWhenDocumentAlreadyIndexed", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{data: []byte("%PDF")}, &spyExtractor{text: validText()})
		req := Request{DocumentURL: "https://example.com/policy.pdf", Questions: []string{"q?"}}
		_, err := h.service.Run(ctx, req)
		require.NoError(t, err)
		_, err = h.service.Run(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, h.fetcher.calls)
		assert.Equal(t, 1, h.extractor.calls)
	})

	t.Run("ShouldReportDownloadStageOnFetchFailure", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{err: errors.New("connection refused")}, &spyExtractor{text: validText()})
		_, err := h.service.Run(ctx, Request{DocumentURL: "https://example.com/gone.pdf", Questions: []string{"q?"}})
		require.Error(t, err)
		stage, ok := FailedStage(err)
		require.True(t, ok)
		assert.Equal(t, StageDownload, stage)
		assert.True(t, IsDocumentError(err))
	})

	t.Run("ShouldReportExtractStageOnExtractionFailure", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{data: []byte("%PDF")}, &spyExtractor{err: errors.New("damaged xref")})
		_, err := h.service.Run(ctx, Request{DocumentURL: "https://example.com/damaged.pdf", Questions: []string{"q?"}})
		require.Error(t, err)
		stage, _ := FailedStage(err)
		assert.Equal(t, StageExtract, stage)
	})

	t.Run("ShouldRejectDocumentsWithTooLittleText", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{data: []byte("%PDF")}, &spyExtractor{text: "barely anything"})
		_, err := h.service.Run(ctx, Request{DocumentURL: "https://example.com/scan.pdf", Questions: []string{"q?"}})
		require.ErrorIs(t, err, ErrTextTooShort)
		assert.True(t, IsDocumentError(err))
	})

	t.Run("ShouldLeaveNoRecordsBehindOnRejectedDocument", func(t *testing.T) {
		h := newHarness(t, &spyFetcher{data: []byte("<html>")}, &spyExtractor{err: errors.New("not a pdf")})
		url := "https://example.com/fake.pdf"
		_, err := h.service.Run(ctx, Request{DocumentURL: url, Questions: []string{"q?"}})
		require.Error(t, err)
		// A later request for the same URL must re-attempt ingestion.
		h2 := newHarness(t, &spyFetcher{data: []byte("%PDF")}, &spyExtractor{text: validText()})
		_, err = h2.service.Run(ctx, Request{DocumentURL: url, Questions: []string{"q?"}})
		require.NoError(t, err)
	})
}
