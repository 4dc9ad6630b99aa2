// Command ingest runs the ingestion pipeline once over the configured
// source list and prints a per-source summary.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"knowledge-agent/internal/config"
	"knowledge-agent/internal/db"
	"knowledge-agent/internal/fetch"
	"knowledge-agent/internal/openai"
	"knowledge-agent/internal/repository"
	"knowledge-agent/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	sources := cfg.Sources
	if len(os.Args) > 1 {
		sources = os.Args[1:]
	}
	if len(sources) == 0 {
		log.Fatal("❌ No sources: set SOURCES or pass URLs as arguments")
	}

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.ChatModel)

	ingestService := services.NewIngestService(
		fetch.NewFetcher(),
		openaiClient,
		repository.NewDocumentRepository(database.DB),
		repository.NewChunkRepository(database.DB),
		database,
		services.IngestConfig{
			ChunkMaxChars:   cfg.ChunkMaxChars,
			ChunkOverlap:    cfg.ChunkOverlap,
			MinContentChars: cfg.MinContentChars,
			EmbedBatchSize:  cfg.EmbedBatchSize,
			EmbedModel:      cfg.EmbedModel,
			Workers:         cfg.IngestWorkers,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := ingestService.Run(ctx, sources, func(report services.SourceReport) {
		switch report.Status {
		case services.StatusSuccess:
			log.Printf("  ✓ %s (%d chunks)", report.Source, report.Chunks)
		case services.StatusSkipped:
			log.Printf("  ⚠ %s skipped: %s", report.Source, report.Error)
		default:
			log.Printf("  ❌ %s failed: %s", report.Source, report.Error)
		}
	})

	log.Printf("Run %s: %d ok, %d skipped, %d failed",
		summary.RunID, summary.Succeeded, summary.Skipped, summary.Failed)

	if summary.Succeeded == 0 && summary.Failed+summary.Skipped > 0 {
		os.Exit(1)
	}
}
