package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// Settings configures the sliding-window splitter.
type Settings struct {
	// Size is the nominal window length in bytes.
	Size int
	// Overlap is carried from the end of one window into the next.
	Overlap int
	// MinChunkChars drops any chunk whose trimmed length does not exceed it.
	MinChunkChars int
	// BoundaryWindow is how far back from the nominal window end to look
	// for a sentence terminator.
	BoundaryWindow int
}

const (
	defaultMinChunkChars  = 50
	defaultBoundaryWindow = 100
)

// Splitter slices text into overlapping, sentence-aligned chunks.
type Splitter struct {
	settings Settings
}

// NewSplitter builds a splitter with sanitized defaults.
func NewSplitter(settings Settings) (*Splitter, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	if settings.MinChunkChars <= 0 {
		settings.MinChunkChars = defaultMinChunkChars
	}
	if settings.BoundaryWindow <= 0 {
		settings.BoundaryWindow = defaultBoundaryWindow
	}
	return &Splitter{settings: settings}, nil
}

// Split slides a window of Size over text, snapping non-final window ends
// to the nearest sentence terminator within BoundaryWindow, and keeps only
// chunks whose trimmed length exceeds MinChunkChars. Deterministic: the
// same input always yields the same sequence.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.settings.Size
		if end < len(text) {
			if snapped := s.snapToSentence(text, start, end); snapped > start {
				end = snapped
			}
		}
		sliceEnd := end
		if sliceEnd > len(text) {
			sliceEnd = len(text)
		}
		piece := strings.TrimSpace(text[start:sliceEnd])
		if len(piece) > s.settings.MinChunkChars {
			chunks = append(chunks, piece)
		}
		// A window that already consumed the rest of the text leaves
		// nothing new for an overlap window to add.
		if end >= len(text) {
			break
		}
		next := end - s.settings.Overlap
		// The window must always advance: a snapped end close to the
		// previous start would otherwise loop forever.
		if next <= start {
			next = end
		}
		if next <= start {
			break
		}
		start = next
	}
	return chunks
}

// snapToSentence scans the BoundaryWindow characters preceding end for a
// sentence terminator and returns the position just past the first one
// found, or 0 when none exists.
func (s *Splitter) snapToSentence(text string, start, end int) int {
	from := end - s.settings.BoundaryWindow
	if from < 0 {
		from = 0
	}
	if from < start {
		from = start
	}
	for i := from; i < end; i++ {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return 0
}
