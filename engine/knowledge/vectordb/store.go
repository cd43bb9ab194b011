package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	errMissingProvider   = errors.New("vector_db provider is required")
	errMissingDSN        = errors.New("vector_db dsn is required")
	errMissingCollection = errors.New("vector_db collection is required")
	errInvalidDimension  = errors.New("vector_db dimension must be greater than zero")
)

const defaultTopK = 5

// New instantiates a vector store backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return instantiateStore(ctx, cfg)
}

func instantiateStore(ctx context.Context, cfg *Config) (Store, error) {
	switch cfg.Provider {
	case ProviderMemory:
		return newMemoryStore(cfg)
	case ProviderQdrant:
		return newQdrantStore(ctx, cfg)
	case ProviderRedis:
		return newRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("vector_db: provider %q is not supported", cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector_db config is required")
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return errMissingProvider
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Collection = strings.TrimSpace(cfg.Collection)
	switch cfg.Provider {
	case ProviderQdrant, ProviderRedis:
		if cfg.DSN == "" {
			return fmt.Errorf("vector_db %q: %w", cfg.Provider, errMissingDSN)
		}
	}
	if cfg.Collection == "" {
		return errMissingCollection
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	if cfg.MaxTopK < 0 {
		return errors.New("vector_db max_top_k must be non-negative")
	}
	return nil
}
