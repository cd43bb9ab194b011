package config

import "time"

// Config is the root configuration for the service. Values come from
// defaults, an optional .env file, and DOCQA_* environment variables.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	VectorDB  VectorDBConfig  `koanf:"vectordb"  validate:"required"`
	Embedder  EmbedderConfig  `koanf:"embedder"  validate:"required"`
	LLM       LLMConfig       `koanf:"llm"       validate:"required"`
	Pipeline  PipelineConfig  `koanf:"pipeline"  validate:"required"`
	Retrieval RetrievalConfig `koanf:"retrieval" validate:"required"`
}

// ServerConfig controls the HTTP listener and request authentication.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"             validate:"gte=1,lte=65535"`
	AuthToken       string        `koanf:"auth_token"       validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// VectorDBConfig selects and connects the vector store backend.
type VectorDBConfig struct {
	Provider    string        `koanf:"provider"     validate:"oneof=memory qdrant redis"`
	DSN         string        `koanf:"dsn"`
	Collection  string        `koanf:"collection"   validate:"required"`
	APIKey      string        `koanf:"api_key"`
	Dimension   int           `koanf:"dimension"    validate:"gt=0"`
	Metric      string        `koanf:"metric"`
	MaxTopK     int           `koanf:"max_top_k"    validate:"gte=0"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// EmbedderConfig selects the embedding model.
type EmbedderConfig struct {
	Provider  string `koanf:"provider"   validate:"oneof=openai"`
	Model     string `koanf:"model"      validate:"required"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	CacheSize int    `koanf:"cache_size"`
}

// LLMConfig selects the answer-generation model.
type LLMConfig struct {
	Provider    string  `koanf:"provider"    validate:"oneof=groq openai"`
	Model       string  `koanf:"model"       validate:"required"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens"  validate:"gt=0"`
}

// PipelineConfig controls document processing.
type PipelineConfig struct {
	ChunkSize        int           `koanf:"chunk_size"         validate:"gt=0"`
	ChunkOverlap     int           `koanf:"chunk_overlap"      validate:"gte=0"`
	MinChunkChars    int           `koanf:"min_chunk_chars"    validate:"gte=0"`
	MinTextChars     int           `koanf:"min_text_chars"     validate:"gt=0"`
	UpsertBatchSize  int           `koanf:"upsert_batch_size"  validate:"gt=0"`
	MaxDownloadBytes int64         `koanf:"max_download_bytes" validate:"gt=0"`
	DownloadTimeout  time.Duration `koanf:"download_timeout"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
}

// RetrievalConfig controls per-question context retrieval.
type RetrievalConfig struct {
	TopK         int     `koanf:"top_k"          validate:"gt=0"`
	MinScore     float64 `koanf:"min_score"      validate:"gte=0,lte=1"`
	FallbackTopK int     `koanf:"fallback_top_k" validate:"gt=0"`
	MaxContexts  int     `koanf:"max_contexts"   validate:"gt=0"`
	Parallelism  int     `koanf:"parallelism"    validate:"gt=0"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			AuthToken:       "hackrx-secret-token",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		VectorDB: VectorDBConfig{
			Provider:    "memory",
			Collection:  "hackrx-index",
			Dimension:   384,
			Metric:      "cosine",
			HTTPTimeout: 10 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			CacheSize: 512,
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "mixtral-8x7b-32768",
			Temperature: 0.2,
			MaxTokens:   500,
		},
		Pipeline: PipelineConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			MinChunkChars:    50,
			MinTextChars:     100,
			UpsertBatchSize:  100,
			MaxDownloadBytes: 50 * 1024 * 1024,
			DownloadTimeout:  30 * time.Second,
			RequestTimeout:   5 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MinScore:     0.3,
			FallbackTopK: 3,
			MaxContexts:  5,
			Parallelism:  4,
		},
	}
}
