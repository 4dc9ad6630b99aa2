package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Chunk is a bounded segment of a Document's text plus its embedding vector.
// (document_id, chunk_index) is unique; chunks are deleted and re-inserted
// wholesale on re-ingestion, never updated in place.
type Chunk struct {
	ID         string          `json:"id" gorm:"type:char(27);primaryKey"`
	DocumentID string          `json:"document_id" gorm:"type:char(27);not null;uniqueIndex:idx_chunks_doc_index,priority:1"`
	ChunkIndex int             `json:"chunk_index" gorm:"not null;uniqueIndex:idx_chunks_doc_index,priority:2"`
	Content    string          `json:"content" gorm:"type:text;not null"`
	Embedding  pgvector.Vector `json:"-" gorm:"type:vector(1536);not null"`
	Model      string          `json:"model" gorm:"type:varchar(100);not null"`
	Metadata   JSONMap         `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate hook generates a KSUID before inserting
func (c *Chunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// RankedChunk is one similarity-search hit: a chunk joined with its document
// plus the cosine distance to the query vector (smaller = more similar).
type RankedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Metadata   JSONMap `json:"metadata"`
	Distance   float64 `json:"distance"`
}
