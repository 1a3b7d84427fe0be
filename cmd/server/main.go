package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/omisdami/docrag/internal/api"
	"github.com/omisdami/docrag/internal/config"
	"github.com/omisdami/docrag/internal/docstore"
	"github.com/omisdami/docrag/internal/embed"
	"github.com/omisdami/docrag/internal/generate"
	"github.com/omisdami/docrag/internal/lexical"
	"github.com/omisdami/docrag/internal/pipeline"
	"github.com/omisdami/docrag/internal/retrieval"
	"github.com/omisdami/docrag/internal/vectorstore"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	embedder, err := embed.NewOpenAIClient(embed.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.EmbedTimeout,
	})
	if err != nil {
		log.Error("embedding client", "error", err)
		os.Exit(1)
	}
	claude := generate.NewAnthropicClient(generate.ClientConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.GenerationModel,
		MaxTokens: cfg.GenerationMaxTokens,
		Timeout:   cfg.GenerationTimeout,
	})

	// Initialize storage and retrieval.
	store, err := vectorstore.New(cfg.IndexDir, embedder, log)
	if err != nil {
		log.Error("vector store", "error", err)
		os.Exit(1)
	}
	docs, err := docstore.New(cfg.StructuredDir)
	if err != nil {
		log.Error("structured store", "error", err)
		os.Exit(1)
	}
	idx := lexical.New(store)
	store.OnChange(idx.Rebuild)
	retriever := retrieval.New(store, idx, retrieval.Config{
		Alpha:     cfg.HybridAlpha,
		MMRLambda: cfg.MMRLambda,
	})

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, store, docs, retriever, generate.NewGenerator(claude), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, claude, log, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		claude.Close()
		embedder.Close()
	}()

	log.Info("starting docrag", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
