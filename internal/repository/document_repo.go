package repository

import (
	"context"
	"fmt"

	"knowledge-agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepositoryImpl handles database operations for documents using
// GORM. The services package declares the interface it needs from this.
type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository.
// Returns concrete type - "Accept interfaces, return structs"
func NewDocumentRepository(db *gorm.DB) *DocumentRepositoryImpl {
	return &DocumentRepositoryImpl{db: db}
}

// Upsert inserts a document for an unseen source, or bumps updated_at (and
// title) for an existing one. Idempotent by source; returns the row either
// way.
func (r *DocumentRepositoryImpl) Upsert(ctx context.Context, source, title string) (*models.Document, error) {
	doc := &models.Document{Source: source, Title: title}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":      title,
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(doc).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", classify(err))
	}

	// On conflict the BeforeCreate KSUID is discarded by the database;
	// re-read to get the persisted row.
	var persisted models.Document
	if err := r.db.WithContext(ctx).First(&persisted, "source = ?", source).Error; err != nil {
		return nil, fmt.Errorf("failed to load upserted document: %w", err)
	}
	return &persisted, nil
}

// GetBySource retrieves a document by its source key.
func (r *DocumentRepositoryImpl) GetBySource(ctx context.Context, source string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).First(&doc, "source = ?", source).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("document not found for source: %s", source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// List returns documents with their current chunk counts, newest first.
// KSUIDs are time-ordered, so sorting by ID sorts by first ingestion.
func (r *DocumentRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.DocumentSummary, error) {
	var docs []*models.DocumentSummary

	err := r.db.WithContext(ctx).Raw(`
		SELECT d.*, COUNT(c.id) AS chunk_count
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.id DESC
		LIMIT ? OFFSET ?
	`, limit, offset).Scan(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document; its chunks go with it via ON DELETE CASCADE.
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}
