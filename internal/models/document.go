package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Document represents one ingested source (a URL or file). The source is the
// stable external key: re-ingesting the same source updates the existing row.
// KSUIDs are time-ordered, so sorting by ID is sorting by first ingestion.
type Document struct {
	ID        string    `json:"id" gorm:"type:char(27);primaryKey"`
	Source    string    `json:"source" gorm:"type:text;not null;uniqueIndex"`
	Title     string    `json:"title" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate hook generates a KSUID before inserting
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
	return nil
}

// DocumentSummary is a Document joined with its current chunk count,
// as returned by the listing endpoint.
type DocumentSummary struct {
	Document
	ChunkCount int64 `json:"chunk_count"`
}
