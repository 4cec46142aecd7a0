package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/studydeck/internal/api"
	"github.com/dgallion1/studydeck/internal/cache"
	"github.com/dgallion1/studydeck/internal/config"
	"github.com/dgallion1/studydeck/internal/embed"
	"github.com/dgallion1/studydeck/internal/generate"
	"github.com/dgallion1/studydeck/internal/parser"
	"github.com/dgallion1/studydeck/internal/pipeline"
	"github.com/dgallion1/studydeck/internal/store"
	"github.com/dgallion1/studydeck/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingestion workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage and clients.
	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	embedder := embed.New(cfg.OllamaURL, cfg.OllamaEmbedModel, log)
	defer embedder.Close()

	vectors, err := vectorstore.Open(cfg.VectorDir, embedder.Func())
	if err != nil {
		return err
	}

	claude := generate.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL)
	defer claude.Close()

	deps := pipeline.Deps{
		Store:       db,
		Vectors:     vectors,
		Embedder:    embedder,
		Generator:   claude,
		Transcripts: parser.NewTranscriptFetcher(cfg.TranscriptLang),
	}
	apiDeps := api.Deps{
		Store:   db,
		Vectors: vectors,
		LLM:     claude,
	}
	if cfg.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		deps.Cache = rc
		apiDeps.Cache = rc
		apiDeps.Limiter = rc
		log.Info("redis cache enabled", "rate_limit", cfg.RateLimit, "window", cfg.RateLimitWindow)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, deps, log)
	orch.Start(ctx)
	apiDeps.Orchestrator = orch

	// Initialize HTTP server.
	srv := api.NewServer(apiDeps, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. Workers stop before the stores close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting studydeck", "port", cfg.Port, "data_dir", cfg.DataDir, "vectors", vectors.Count())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return err
	}
	<-done
	return nil
}
