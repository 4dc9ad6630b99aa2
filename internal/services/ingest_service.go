package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"knowledge-agent/internal/chunker"
	"knowledge-agent/internal/middleware"
	"knowledge-agent/internal/models"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
)

// ErrLowContent marks a source whose extracted text is below the minimum
// viable length; the source is skipped without touching its document.
var ErrLowContent = errors.New("extracted text below minimum length")

// SourceStatus classifies the outcome of one source in an ingestion run.
type SourceStatus string

const (
	StatusSuccess SourceStatus = "success"
	StatusSkipped SourceStatus = "skipped"
	StatusFailed  SourceStatus = "failed"
)

// SourceReport is the outcome of ingesting one source.
type SourceReport struct {
	Source     string       `json:"source"`
	Status     SourceStatus `json:"status"`
	DocumentID string       `json:"document_id,omitempty"`
	Chunks     int          `json:"chunks"`
	Error      string       `json:"error,omitempty"`
}

// RunSummary aggregates an ingestion run.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reports   []SourceReport `json:"reports"`
}

// IngestConfig bounds chunking and batching for the pipeline.
type IngestConfig struct {
	ChunkMaxChars   int
	ChunkOverlap    int
	MinContentChars int
	EmbedBatchSize  int
	EmbedModel      string
	Workers         int
}

// IngestService runs the fetch → extract → chunk → embed → store pipeline
// over a set of sources. Sources are independent, so they fan out across a
// small worker pool; the per-document transaction in ReplaceChunks is what
// keeps concurrent ingestion safe.
type IngestService struct {
	fetcher   PageFetcher
	embedder  Embedder
	docRepo   DocumentRepository
	chunkRepo ChunkRepository
	stats     StatsRefresher
	cfg       IngestConfig
}

func NewIngestService(
	fetcher PageFetcher,
	embedder Embedder,
	docRepo DocumentRepository,
	chunkRepo ChunkRepository,
	stats StatsRefresher,
	cfg IngestConfig,
) *IngestService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = 64
	}
	return &IngestService{
		fetcher:   fetcher,
		embedder:  embedder,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		stats:     stats,
		cfg:       cfg,
	}
}

// Run ingests every source and returns a per-source report. A failing
// source never stops the run; its report carries the error instead. If
// progress is non-nil it receives each report as it completes.
func (s *IngestService) Run(ctx context.Context, sources []string, progress func(SourceReport)) *RunSummary {
	summary := &RunSummary{
		RunID:   uuid.NewString(),
		Reports: make([]SourceReport, len(sources)),
	}

	ctx, span := middleware.StartSpan(ctx, "Ingest.Run",
		attribute.String("run.id", summary.RunID),
		attribute.Int("run.sources", len(sources)),
	)
	defer span.End()

	jobs := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report := s.ingestSource(ctx, sources[i])
				mu.Lock()
				summary.Reports[i] = report
				switch report.Status {
				case StatusSuccess:
					summary.Succeeded++
				case StatusSkipped:
					summary.Skipped++
				default:
					summary.Failed++
				}
				mu.Unlock()
				if progress != nil {
					progress(report)
				}
			}
		}()
	}

	for i := range sources {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if s.stats != nil && summary.Succeeded > 0 {
		if err := s.stats.Analyze(ctx); err != nil {
			log.Printf("⚠️  analyze after ingest run %s: %v", summary.RunID, err)
		}
	}

	log.Printf("✓ Ingest run %s: %d ok, %d skipped, %d failed",
		summary.RunID, summary.Succeeded, summary.Skipped, summary.Failed)
	return summary
}

// ingestSource runs the pipeline for a single source. Fetch/extract problems
// skip the source; embedding or storage problems fail it. Either way the
// prior chunk set stays intact, because ReplaceChunks only commits a full
// replacement.
func (s *IngestService) ingestSource(ctx context.Context, source string) SourceReport {
	ctx, span := middleware.StartSpan(ctx, "Ingest.Source",
		attribute.String("source", source),
	)
	defer span.End()

	page, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		log.Printf("⚠️  skipping %s: %v", source, err)
		return SourceReport{Source: source, Status: StatusSkipped, Error: err.Error()}
	}

	if len(page.Text) < s.cfg.MinContentChars {
		err := fmt.Errorf("%w: %d chars", ErrLowContent, len(page.Text))
		log.Printf("⚠️  skipping %s: %v", source, err)
		return SourceReport{Source: source, Status: StatusSkipped, Error: err.Error()}
	}

	doc, err := s.docRepo.Upsert(ctx, source, page.Title)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return SourceReport{Source: source, Status: StatusFailed, Error: err.Error()}
	}

	texts := chunker.Chunk(page.Text, s.cfg.ChunkMaxChars, s.cfg.ChunkOverlap)

	embeddings, err := s.embedBatches(ctx, texts)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return SourceReport{Source: source, Status: StatusFailed, DocumentID: doc.ID, Error: err.Error()}
	}

	chunks := make([]*models.Chunk, len(texts))
	for i := range texts {
		chunks[i] = &models.Chunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    texts[i],
			Embedding:  pgvector.NewVector(embeddings[i]),
			Model:      s.cfg.EmbedModel,
			Metadata:   models.JSONMap{"source": source, "title": page.Title},
		}
	}

	if err := s.chunkRepo.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		middleware.AddSpanError(ctx, err)
		return SourceReport{Source: source, Status: StatusFailed, DocumentID: doc.ID, Error: err.Error()}
	}

	log.Printf("✓ ingested %s (%d chunks)", source, len(chunks))
	return SourceReport{Source: source, Status: StatusSuccess, DocumentID: doc.ID, Chunks: len(chunks)}
}

// embedBatches embeds texts in provider-bounded batches, preserving order.
func (s *IngestService) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.cfg.EmbedBatchSize {
		end := i + s.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.CreateEmbeddings(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/s.cfg.EmbedBatchSize, err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(embeddings))
	}
	return embeddings, nil
}
