package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knowledge-agent/internal/api"
	"knowledge-agent/internal/config"
	"knowledge-agent/internal/db"
	"knowledge-agent/internal/fetch"
	"knowledge-agent/internal/openai"
	"knowledge-agent/internal/repository"
	"knowledge-agent/internal/services"
	"knowledge-agent/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting knowledge agent...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	jaegerShutdown, err := telemetry.InitJaeger("knowledge-agent", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.ChatModel)
	log.Println("✓ OpenAI client initialized")

	docRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)

	ingestService := services.NewIngestService(
		fetch.NewFetcher(),
		openaiClient,
		docRepo,
		chunkRepo,
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

	ragService := services.NewRAGService(openaiClient, openaiClient, chunkRepo, cfg.EmbedModel)

	handler := api.NewHandler(ragService, ingestService, docRepo, cfg.Sources, cfg.TopK)
	router := api.SetupRoutes(handler)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // ingest runs can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("   POST   /ask                 - Ask the knowledge base")
		log.Printf("   POST   /api/ingest          - Run ingestion pipeline")
		log.Printf("   GET    /api/documents       - List documents")
		log.Printf("   DELETE /api/documents/{id}  - Delete a document")
		log.Printf("   GET    /ws/ingest           - Stream ingest progress")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server shutdown complete")
}
