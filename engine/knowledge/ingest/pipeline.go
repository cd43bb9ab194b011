package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hackrx-qa/docqa/engine/document"
	"github.com/hackrx-qa/docqa/engine/knowledge/chunk"
	"github.com/hackrx-qa/docqa/engine/knowledge/embedder"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

var (
	// ErrNoChunks indicates the document text produced no usable chunks.
	ErrNoChunks = errors.New("ingest: no chunks produced from document text")
	// ErrAllChunksFailed indicates embedding failed for every chunk.
	ErrAllChunksFailed = errors.New("ingest: embedding failed for every chunk")
)

const (
	defaultBatchSize     = 100
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 200 * time.Millisecond
)

// Settings tunes pipeline batching and retry behavior.
type Settings struct {
	UpsertBatchSize int
	RetryAttempts   uint64
	RetryBackoff    time.Duration
}

// Result summarizes a completed ingestion run.
type Result struct {
	DocID         string
	ChunkCount    int
	SkippedChunks int
}

// Pipeline chunks document text, embeds the chunks, and persists them to
// the vector store.
type Pipeline struct {
	splitter  *chunk.Splitter
	embedder  embedder.Embedder
	store     vectordb.Store
	batchSize int
	attempts  uint64
	backoff   time.Duration
}

// New wires a pipeline from its collaborators.
func New(splitter *chunk.Splitter, emb embedder.Embedder, store vectordb.Store, settings Settings) (*Pipeline, error) {
	if splitter == nil {
		return nil, errors.New("ingest: splitter is required")
	}
	if emb == nil {
		return nil, errors.New("ingest: embedder is required")
	}
	if store == nil {
		return nil, errors.New("ingest: store is required")
	}
	batchSize := settings.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	attempts := settings.RetryAttempts
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	backoff := settings.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Pipeline{
		splitter:  splitter,
		embedder:  emb,
		store:     store,
		batchSize: batchSize,
		attempts:  attempts,
		backoff:   backoff,
	}, nil
}

// Ingest splits, embeds, and upserts the normalized document text. Chunks
// whose embeddings persistently fail are skipped so one bad chunk cannot
// sink the whole document.
func (p *Pipeline) Ingest(ctx context.Context, doc document.Document, text string) (*Result, error) {
	log := logger.FromContext(ctx)
	chunks := chunk.FromTexts(p.splitter.Split(text))
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	records := make([]vectordb.Record, 0, len(chunks))
	skipped := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]
		embedded, failed, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		skipped += failed
		for _, item := range embedded {
			records = append(records, vectordb.Record{
				ID:        fmt.Sprintf("%s-%d", doc.ID, item.chunk.Index),
				Text:      item.chunk.Text,
				Embedding: item.vector,
				Metadata: map[string]any{
					"doc_id":      doc.ID,
					"chunk_index": item.chunk.Index,
					"url":         doc.SourceURL,
				},
			})
		}
	}
	if len(records) == 0 {
		return nil, ErrAllChunksFailed
	}
	if skipped > 0 {
		log.Warn("skipped chunks with failed embeddings", "doc_id", doc.ID, "skipped", skipped)
	}
	if err := p.upsert(ctx, records); err != nil {
		return nil, err
	}
	log.Info("document indexed", "doc_id", doc.ID, "chunks", len(records))
	return &Result{
		DocID:         doc.ID,
		ChunkCount:    len(records),
		SkippedChunks: skipped,
	}, nil
}

type embeddedChunk struct {
	chunk  chunk.Chunk
	vector []float32
}

// embedBatch embeds a batch of chunks, retrying transient failures. When a
// whole batch persistently fails it falls back to per-chunk embedding so
// only the offending chunks are dropped.
func (p *Pipeline) embedBatch(ctx context.Context, batch []chunk.Chunk) ([]embeddedChunk, int, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	var vectors [][]float32
	err := retry.Do(ctx, p.retryBackoff(), func(ctx context.Context) error {
		embedded, embedErr := p.embedder.EmbedDocuments(ctx, texts)
		if embedErr != nil {
			return retry.RetryableError(embedErr)
		}
		vectors = embedded
		return nil
	})
	if err == nil {
		out := make([]embeddedChunk, len(batch))
		for i := range batch {
			out[i] = embeddedChunk{chunk: batch[i], vector: vectors[i]}
		}
		return out, 0, nil
	}
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}
	log := logger.FromContext(ctx)
	log.Warn("batch embedding failed, retrying chunks individually", "batch_size", len(batch), "error", err)
	out := make([]embeddedChunk, 0, len(batch))
	failed := 0
	for i := range batch {
		vector, chunkErr := p.embedSingle(ctx, texts[i])
		if chunkErr != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			log.Warn("chunk embedding failed, skipping", "chunk_index", batch[i].Index, "error", chunkErr)
			failed++
			continue
		}
		out = append(out, embeddedChunk{chunk: batch[i], vector: vector})
	}
	return out, failed, nil
}

func (p *Pipeline) embedSingle(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := retry.Do(ctx, p.retryBackoff(), func(ctx context.Context) error {
		embedded, embedErr := p.embedder.EmbedDocuments(ctx, []string{text})
		if embedErr != nil {
			return retry.RetryableError(embedErr)
		}
		vector = embedded[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *Pipeline) upsert(ctx context.Context, records []vectordb.Record) error {
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		batch := records[start:end]
		err := retry.Do(ctx, p.retryBackoff(), func(ctx context.Context) error {
			if upsertErr := p.store.Upsert(ctx, batch); upsertErr != nil {
				return retry.RetryableError(upsertErr)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ingest: upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (p *Pipeline) retryBackoff() retry.Backoff {
	return retry.WithMaxRetries(p.attempts, retry.NewExponential(p.backoff))
}
