package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackrx-qa/docqa/engine/answer"
	"github.com/hackrx-qa/docqa/engine/document"
	"github.com/hackrx-qa/docqa/engine/infra/server"
	"github.com/hackrx-qa/docqa/engine/knowledge/chunk"
	"github.com/hackrx-qa/docqa/engine/knowledge/embedder"
	"github.com/hackrx-qa/docqa/engine/knowledge/ingest"
	"github.com/hackrx-qa/docqa/engine/knowledge/retriever"
	"github.com/hackrx-qa/docqa/engine/knowledge/vectordb"
	"github.com/hackrx-qa/docqa/engine/pdftext"
	"github.com/hackrx-qa/docqa/engine/qa"
	"github.com/hackrx-qa/docqa/pkg/config"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("port", 0, "Override the configured listen port")
	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logLevel, logJSON, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON)
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if port, portErr := cmd.Flags().GetInt("port"); portErr == nil && port > 0 {
		cfg.Server.Port = port
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	store, err := vectordb.New(ctx, &vectordb.Config{
		Provider:    vectordb.Provider(cfg.VectorDB.Provider),
		DSN:         cfg.VectorDB.DSN,
		Collection:  cfg.VectorDB.Collection,
		APIKey:      cfg.VectorDB.APIKey,
		Dimension:   cfg.VectorDB.Dimension,
		Metric:      cfg.VectorDB.Metric,
		MaxTopK:     cfg.VectorDB.MaxTopK,
		HTTPTimeout: cfg.VectorDB.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(ctx); closeErr != nil {
			log.Warn("closing vector store failed", "error", closeErr)
		}
	}()

	emb, err := embedder.New(&embedder.Config{
		Provider:  embedder.Provider(cfg.Embedder.Provider),
		Model:     cfg.Embedder.Model,
		APIKey:    cfg.Embedder.APIKey,
		BaseURL:   cfg.Embedder.BaseURL,
		Dimension: cfg.VectorDB.Dimension,
	})
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	if cfg.Embedder.CacheSize > 0 {
		if cacheErr := emb.EnableCache(cfg.Embedder.CacheSize); cacheErr != nil {
			return fmt.Errorf("initialize embedder cache: %w", cacheErr)
		}
	}

	service, err := buildService(cfg, emb, store)
	if err != nil {
		return err
	}

	server.SetGinMode(logLevel == "debug")
	router := server.NewRouter(server.RouterOptions{
		AuthToken: cfg.Server.AuthToken,
		Service:   service,
		Log:       log,
	})
	return server.New(&cfg.Server, router, log).Run(ctx)
}

func buildService(cfg *config.Config, emb *embedder.Adapter, store vectordb.Store) (*qa.Service, error) {
	splitter, err := chunk.NewSplitter(chunk.Settings{
		Size:          cfg.Pipeline.ChunkSize,
		Overlap:       cfg.Pipeline.ChunkOverlap,
		MinChunkChars: cfg.Pipeline.MinChunkChars,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize splitter: %w", err)
	}
	pipeline, err := ingest.New(splitter, emb, store, ingest.Settings{
		UpsertBatchSize: cfg.Pipeline.UpsertBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize ingest pipeline: %w", err)
	}
	ret, err := retriever.New(emb, store, retriever.Settings{
		TopK:         cfg.Retrieval.TopK,
		MinScore:     cfg.Retrieval.MinScore,
		FallbackTopK: cfg.Retrieval.FallbackTopK,
		Parallelism:  cfg.Retrieval.Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize retriever: %w", err)
	}
	generator, err := answer.New(&answer.Config{
		Provider:    answer.Provider(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxContexts: cfg.Retrieval.MaxContexts,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize answer generator: %w", err)
	}
	fetcher := document.NewFetcher(document.FetcherOptions{
		Timeout:  cfg.Pipeline.DownloadTimeout,
		MaxBytes: cfg.Pipeline.MaxDownloadBytes,
	})
	return qa.NewService(qa.Options{
		Fetcher:        fetcher,
		Extractor:      pdftext.New(0),
		Pipeline:       pipeline,
		Retriever:      ret,
		Generator:      generator,
		Store:          store,
		MinTextChars:   cfg.Pipeline.MinTextChars,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
	})
}
