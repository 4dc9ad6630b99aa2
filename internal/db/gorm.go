package db

import (
	"context"
	"fmt"
	"log"

	"knowledge-agent/internal/config"
	"knowledge-agent/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDB wraps the GORM database instance
type GormDB struct {
	*gorm.DB
}

// NewGorm opens the Postgres connection, enables pgvector and migrates the
// documents/chunks schema.
func NewGorm(cfg *config.Config) (*GormDB, error) {
	dsn := cfg.DatabaseURL()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Document{},
		&models.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Vector index is created manually: GORM has no vector index support.
	// ivfflat with vector_cosine_ops matches the <=> queries in the chunk repo.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chunks_embedding
		ON chunks USING ivfflat (embedding vector_cosine_ops)
	`).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	log.Println("✓ Database connected and migrated")

	return &GormDB{db}, nil
}

// Analyze refreshes planner statistics for the chunks table. Recommended
// after an ingestion run; not correctness-critical, so failures are returned
// for logging rather than aborting anything.
func (db *GormDB) Analyze(ctx context.Context) error {
	return db.WithContext(ctx).Exec("ANALYZE chunks").Error
}

// Close closes the underlying connection pool.
func (db *GormDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
