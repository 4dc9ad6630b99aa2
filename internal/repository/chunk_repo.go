package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"knowledge-agent/internal/models"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ErrConstraintViolation marks a persistence-layer uniqueness or foreign-key
// violation. Post-clear inserts should never hit this; seeing it means a
// caller skipped ClearChunks or raced a concurrent writer on the same
// document.
var ErrConstraintViolation = errors.New("constraint violation")

// classify wraps Postgres unique/FK violations with ErrConstraintViolation
// so callers can pick them out with errors.Is.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
		}
	}
	// pgx reports the same SQLSTATE via its own error type; fall back to a
	// string check so classification doesn't depend on the driver in use.
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "23505") || strings.Contains(msg, "23503") ||
			errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrConstraintViolation, msg)
		}
	}
	return err
}

// ChunkRepositoryImpl handles chunk persistence and vector search using
// pgvector.
type ChunkRepositoryImpl struct {
	db *gorm.DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db *gorm.DB) *ChunkRepositoryImpl {
	return &ChunkRepositoryImpl{db: db}
}

// ReplaceChunks deletes all existing chunks for the document and inserts the
// new set inside one transaction. A concurrent reader sees either the prior
// chunk set or the new one, never the gap in between; an aborted ingest
// rolls back to the prior set.
func (r *ChunkRepositoryImpl) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.Chunk{}).Error; err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		if err := tx.Create(&chunks).Error; err != nil {
			return fmt.Errorf("failed to insert chunks: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace chunks for document %s: %w", documentID, err)
	}
	return nil
}

// ClearChunks deletes all chunks for the document. No-op if none exist.
func (r *ChunkRepositoryImpl) ClearChunks(ctx context.Context, documentID string) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&models.Chunk{}).Error; err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// InsertChunk inserts a single chunk row. Duplicate (document_id,
// chunk_index) pairs surface as ErrConstraintViolation.
func (r *ChunkRepositoryImpl) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("failed to insert chunk: %w", classify(err))
	}
	return nil
}

// CountByDocumentID returns the number of chunks currently stored for the
// document.
func (r *ChunkRepositoryImpl) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// TopKBySimilarity returns the k chunks closest to the query embedding under
// cosine distance, joined with their documents, ascending by distance with
// chunk id as the deterministic tie-break. Only chunks embedded under the
// given model are ranked; mixing vector spaces would silently corrupt the
// ordering.
func (r *ChunkRepositoryImpl) TopKBySimilarity(ctx context.Context, queryEmbedding []float32, model string, k int) ([]*models.RankedChunk, error) {
	vec := pgvector.NewVector(queryEmbedding)

	var results []*models.RankedChunk

	// Raw SQL: the <=> cosine-distance operator has no GORM equivalent.
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			c.id AS chunk_id,
			c.document_id,
			d.source,
			d.title,
			c.chunk_index,
			c.content,
			c.metadata,
			c.embedding <=> ? AS distance
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.model = ?
		ORDER BY c.embedding <=> ?, c.id
		LIMIT ?
	`, vec, model, vec, k).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to perform similarity search: %w", err)
	}
	return results, nil
}
