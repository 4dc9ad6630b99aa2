package services

import (
	"context"

	"knowledge-agent/internal/fetch"
	"knowledge-agent/internal/models"
	"knowledge-agent/internal/openai"
)

// Interfaces live with their consumer: this package declares exactly what it
// needs from the repositories and clients, which is also what the tests
// fake.

// DocumentRepository is what the pipeline needs from document storage.
type DocumentRepository interface {
	Upsert(ctx context.Context, source, title string) (*models.Document, error)
}

// ChunkRepository is what the pipeline and retriever need from chunk
// storage. ReplaceChunks must be transactional per document.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error
	TopKBySimilarity(ctx context.Context, queryEmbedding []float32, model string, k int) ([]*models.RankedChunk, error)
}

// Embedder converts a batch of texts into vectors, order-preserving.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatClient produces a completion for a message history.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []openai.Message) (string, error)
}

// PageFetcher downloads a source and extracts its readable text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// StatsRefresher refreshes query-planner statistics after bulk writes.
type StatsRefresher interface {
	Analyze(ctx context.Context) error
}
