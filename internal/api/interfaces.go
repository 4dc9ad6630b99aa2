package api

import (
	"context"

	"knowledge-agent/internal/models"
	"knowledge-agent/internal/services"
)

// Handlers consume the services through interfaces declared here, so tests
// can stand in fakes without touching the real pipeline.

// Answerer produces grounded answers for questions.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, topK int) (*services.Answer, error)
}

// Ingestor runs the ingestion pipeline over a set of sources.
type Ingestor interface {
	Run(ctx context.Context, sources []string, progress func(services.SourceReport)) *services.RunSummary
}

// DocumentStore is the document surface the handlers expose.
type DocumentStore interface {
	List(ctx context.Context, limit, offset int) ([]*models.DocumentSummary, error)
	Delete(ctx context.Context, id string) error
}
