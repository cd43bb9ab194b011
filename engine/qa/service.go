package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackrx-qa/docqa/engine/answer"
	"github.com/hackrx-qa/docqa/engine/document"
	"github.com/hackrx-qa/docqa/engine/knowledge/ingest"
	"github.com/hackrx-qa/docqa/engine/knowledge/retriever"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/engine/pdftext"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

const defaultRequestTimeout = 5 * time.Minute

// Fetcher downloads a document from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Extractor pulls plain text out of raw PDF bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (pdftext.Result, error)
}

// Request is one question-answering submission.
type Request struct {
	DocumentURL string
	Questions   []string
}

// Response carries one answer per submitted question, in order.
type Response struct {
	Answers []string
}

// Service orchestrates the document pipeline: download, extract, index,
// retrieve, and answer.
type Service struct {
	fetcher        Fetcher
	extractor      Extractor
	pipeline       *ingest.Pipeline
	retriever      *retriever.Service
	generator      *answer.Generator
	store          vectordb.Store
	minTextChars   int
	requestTimeout time.Duration
}

// Options collects the service collaborators and limits.
type Options struct {
	Fetcher        Fetcher
	Extractor      Extractor
	Pipeline       *ingest.Pipeline
	Retriever      *retriever.Service
	Generator      *answer.Generator
	Store          vectordb.Store
	MinTextChars   int
	RequestTimeout time.Duration
}

// NewService wires the orchestrator from its collaborators.
func NewService(opts Options) (*Service, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("qa: fetcher is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("qa: extractor is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("qa: ingest pipeline is required")
	}
	if opts.Retriever == nil {
		return nil, errors.New("qa: retriever is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("qa: answer generator is required")
	}
	if opts.Store == nil {
		return nil, errors.New("qa: vector store is required")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Service{
		fetcher:        opts.Fetcher,
		extractor:      opts.Extractor,
		pipeline:       opts.Pipeline,
		retriever:      opts.Retriever,
		generator:      opts.Generator,
		store:          opts.Store,
		minTextChars:   opts.MinTextChars,
		requestTimeout: timeout,
	}, nil
}

// Run answers every question in the request against the referenced
// document, indexing it first unless a previous request already did.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	doc := document.New(req.DocumentURL)
	log := logger.FromContext(ctx).With("doc_id", doc.ID)
	ctx = logger.ContextWithLogger(ctx, log)
	if s.isIndexed(ctx, doc.ID) {
		log.Info("document already indexed, skipping ingestion")
	} else if err := s.ingest(ctx, doc); err != nil {
		return nil, err
	}
	perQuestion, err := s.retriever.RetrieveAll(ctx, doc.ID, req.Questions)
	if err != nil {
		return nil, stageErr(StageRetrieve, err)
	}
	contexts := retriever.MergeContexts(perQuestion)
	answers, err := s.generator.Answer(ctx, req.Questions, contexts)
	if err != nil {
		return nil, stageErr(StageAnswer, err)
	}
	return &Response{Answers: answers}, nil
}

// isIndexed probes for the document's first chunk. A probe failure counts
// as not indexed so the request falls through to a fresh ingestion.
func (s *Service) isIndexed(ctx context.Context, docID string) bool {
	records, err := s.store.Fetch(ctx, []string{fmt.Sprintf("%s-0", docID)})
	if err != nil {
		logger.FromContext(ctx).Warn("index probe failed, re-ingesting", "error", err)
		return false
	}
	return len(records) > 0
}

func (s *Service) ingest(ctx context.Context, doc document.Document) error {
	log := logger.FromContext(ctx)
	data, err := s.fetcher.Fetch(ctx, doc.SourceURL)
	if err != nil {
		return stageErr(StageDownload, err)
	}
	log.Info("document downloaded", "bytes", len(data))
	extracted, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return stageErr(StageExtract, err)
	}
	text := document.NormalizeText(extracted.Text)
	if len(text) < s.minTextChars {
		return stageErr(StageExtract, fmt.Errorf("%w (got %d chars)", ErrTextTooShort, len(text)))
	}
	log.Info("text extracted", "pages", extracted.Pages, "chars", len(text))
	result, err := s.pipeline.Ingest(ctx, doc, text)
	if err != nil {
		return stageErr(ingestStage(err), err)
	}
	if result.SkippedChunks > 0 {
		log.Warn("document indexed with gaps", "skipped_chunks", result.SkippedChunks)
	}
	return nil
}

func ingestStage(err error) Stage {
	switch {
	case errors.Is(err, ingest.ErrNoChunks):
		return StageChunk
	case errors.Is(err, ingest.ErrAllChunksFailed):
		return StageEmbed
	default:
		return StageIndex
	}
}
