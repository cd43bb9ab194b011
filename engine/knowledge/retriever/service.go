package retriever

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hackrx-qa/docqa/engine/knowledge/embedder"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

const (
	defaultTopK         = 5
	defaultFallbackTopK = 3
	defaultParallelism  = 4
)

// Settings tunes similarity search behavior.
type Settings struct {
	TopK         int
	MinScore     float64
	FallbackTopK int
	Parallelism  int
}

// Service embeds questions and retrieves matching chunks from the vector
// store, scoped to a single document.
type Service struct {
	embedder embedder.Embedder
	store    vectordb.Store
	settings Settings
}

// New wires a retriever from its collaborators.
func New(emb embedder.Embedder, store vectordb.Store, settings Settings) (*Service, error) {
	if emb == nil {
		return nil, errors.New("retriever: embedder is required")
	}
	if store == nil {
		return nil, errors.New("retriever: store is required")
	}
	if settings.TopK <= 0 {
		settings.TopK = defaultTopK
	}
	if settings.FallbackTopK <= 0 {
		settings.FallbackTopK = defaultFallbackTopK
	}
	if settings.Parallelism <= 0 {
		settings.Parallelism = defaultParallelism
	}
	return &Service{embedder: emb, store: store, settings: settings}, nil
}

// Retrieve returns the context texts for one question, best first. When no
// match clears the score floor it retries without the floor so weakly
// related documents still produce some context. Embedding and store
// failures degrade to an empty context list rather than failing the
// request, so the other questions in a batch still get answered.
func (s *Service) Retrieve(ctx context.Context, docID string, question string) ([]string, error) {
	log := logger.FromContext(ctx)
	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("question embedding failed, returning empty context", "doc_id", docID, "error", err)
		return nil, nil
	}
	filters := map[string]string{"doc_id": docID}
	matches, err := s.store.Search(ctx, vector, vectordb.SearchOptions{
		TopK:     s.settings.TopK,
		MinScore: s.settings.MinScore,
		Filters:  filters,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("similarity search failed, returning empty context", "doc_id", docID, "error", err)
		return nil, nil
	}
	if len(matches) == 0 {
		matches, err = s.store.Search(ctx, vector, vectordb.SearchOptions{
			TopK:    s.settings.FallbackTopK,
			Filters: filters,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("fallback search failed, returning empty context", "doc_id", docID, "error", err)
			return nil, nil
		}
	}
	contexts := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Text == "" {
			continue
		}
		contexts = append(contexts, match.Text)
	}
	return contexts, nil
}

// RetrieveAll retrieves contexts for every question concurrently, bounded
// by the configured parallelism. Results keep the question order.
func (s *Service) RetrieveAll(ctx context.Context, docID string, questions []string) ([][]string, error) {
	results := make([][]string, len(questions))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.settings.Parallelism)
	for i, question := range questions {
		group.Go(func() error {
			contexts, err := s.Retrieve(groupCtx, docID, question)
			if err != nil {
				return fmt.Errorf("question %d: %w", i, err)
			}
			results[i] = contexts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
