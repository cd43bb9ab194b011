package vectordb

import (
	"context"
	"time"
)

// Provider enumerates supported vector database backends.
type Provider string

const (
	ProviderMemory Provider = "memory"
	ProviderQdrant Provider = "qdrant"
	ProviderRedis  Provider = "redis"
)

// Record represents a chunk persisted to the vector store.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution. MinScore drops
// matches scoring at or below the floor; zero or negative disables the
// floor entirely so even negative-similarity matches are returned.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

// Match captures a similarity search result.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Filter specifies delete criteria.
type Filter struct {
	IDs      []string
	Metadata map[string]string
}

// Store exposes the minimal contract for ingestion and retrieval.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Fetch(ctx context.Context, ids []string) ([]Record, error)
	Delete(ctx context.Context, filter Filter) error
	Close(ctx context.Context) error
}

// Config captures normalized connection details for a vector database.
type Config struct {
	Provider    Provider
	DSN         string
	Collection  string
	Metric      string
	Dimension   int
	APIKey      string
	MaxTopK     int
	HTTPTimeout time.Duration
}
