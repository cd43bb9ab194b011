package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Result carries the extracted text plus basic shape statistics.
type Result struct {
	Text  string
	Pages int
}

// Extractor converts PDF bytes to plain text.
type Extractor struct {
	maxChars int64
}

const defaultMaxChars = 2 * 1024 * 1024

// New returns an extractor with the given rune budget; zero or negative
// means the default budget.
func New(maxChars int64) *Extractor {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{maxChars: maxChars}
}

// Extract walks every page and concatenates its plain text. Pages that fail
// to decode are skipped so a single damaged page does not lose the document.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, errors.New("pdftext: empty document")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("pdftext: open document: %w", err)
	}
	pages := reader.NumPage()
	var builder strings.Builder
	for num := 1; num <= pages; num++ {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := extractPageText(page)
		if pageErr != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
		if int64(builder.Len()) >= e.maxChars {
			break
		}
	}
	text := builder.String()
	if int64(len(text)) > e.maxChars {
		text = text[:e.maxChars]
	}
	return Result{Text: text, Pages: pages}, nil
}

func extractPageText(page pdf.Page) (text string, err error) {
	// The underlying parser panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdftext: page decode panic: %v", r)
		}
	}()
	content, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return content, nil
}
