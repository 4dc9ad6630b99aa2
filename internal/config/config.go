package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	EmbedModel    string
	EmbedDim      int
	ChatModel     string

	ServerPort string
	ServerHost string

	// Ingestion pipeline
	Sources          []string
	ChunkMaxChars    int
	ChunkOverlap     int
	MinContentChars  int
	IngestWorkers    int
	EmbedBatchSize   int

	// Retrieval
	TopK int

	// Observability
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "knowledge_agent"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),
		ChatModel:     getEnv("CHAT_MODEL", "gpt-4o-mini"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		ServerHost: getEnv("SERVER_HOST", "localhost"),

		Sources:         splitList(getEnv("SOURCES", "")),
		ChunkMaxChars:   getEnvInt("CHUNK_MAX_CHARS", 1200),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP_CHARS", 200),
		MinContentChars: getEnvInt("MIN_CONTENT_CHARS", 200),
		IngestWorkers:   getEnvInt("INGEST_WORKERS", 4),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 64),

		TopK: getEnvInt("TOP_K", 6),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkMaxChars {
		return nil, fmt.Errorf("CHUNK_OVERLAP_CHARS must satisfy 0 <= overlap < CHUNK_MAX_CHARS")
	}
	if cfg.TopK < 1 {
		return nil, fmt.Errorf("TOP_K must be >= 1")
	}

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
