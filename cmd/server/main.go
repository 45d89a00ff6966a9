// Package main provides the HTTP server entry point for the policy analyst.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/coverscan/policy-analyst/internal/analyst"
	"github.com/coverscan/policy-analyst/internal/chunker"
	"github.com/coverscan/policy-analyst/internal/config"
	"github.com/coverscan/policy-analyst/internal/embedding"
	"github.com/coverscan/policy-analyst/internal/pipeline"
	"github.com/coverscan/policy-analyst/internal/server"
	"github.com/coverscan/policy-analyst/internal/storage"
)

func main() {
	// Load .env if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder, err := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}

	var store storage.Store
	var health server.HealthChecker
	if cfg.Ephemeral {
		store = storage.NewMemoryStore(embedder.Dimension())
	} else {
		qdrantStore, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, embedder.Dimension())
		if err != nil {
			log.Fatalf("failed to connect to Qdrant: %v", err)
		}
		defer qdrantStore.Close()
		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			log.Fatalf("failed to ensure collection: %v", err)
		}
		store = qdrantStore
		health = qdrantStore
	}

	var formulator pipeline.Formulator
	if cfg.FormulateQuestions {
		formulator = analyst.NewFormulator(client.Client(), cfg.ChatModel)
	}
	generator := analyst.NewGenerator(client.Client(), cfg.ChatModel)

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("invalid chunker parameters: %v", err)
	}

	pipe, err := pipeline.New(ch, embedder, formulator, generator, store, pipeline.Options{
		TopK:                cfg.TopK,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Schema:              analyst.DefaultSchema(),
	}, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	srv := server.New(&server.Config{
		Pipeline: pipe,
		Health:   health,
		Logger:   logger,
	})

	addr := "0.0.0.0:" + getEnv("PORT", "8080")
	log.Printf("Starting policy analyst server on %s", addr)
	// Run drains in-flight requests on SIGTERM/SIGINT and returns, so the
	// deferred store close still runs.
	if err := srv.Run(ctx, addr); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
