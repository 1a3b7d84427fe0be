package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr  string
	AuthToken string
	LogLevel  string

	// Storage layout
	DataDir       string
	StructuredDir string
	IndexDir      string

	// Chunking
	MaxChunkTokens     int
	ChunkOverlapTokens int
	HeadingChainDepth  int

	// Retrieval
	TopK        int
	HybridAlpha float64
	MMRLambda   float64

	// Embedding service
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbedTimeout        time.Duration

	// Generation service
	AnthropicAPIKey     string
	GenerationModel     string
	GenerationMaxTokens int
	GenerationTimeout   time.Duration

	// Ingestion worker pool
	Workers      int
	JobQueueSize int
	JobTTL       time.Duration

	// HTTP server
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

func Load() Config {
	dataDir := envOr("DATA_DIR", "data")

	cfg := Config{
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		AuthToken: os.Getenv("AUTH_TOKEN"),
		LogLevel:  envOr("LOG_LEVEL", "info"),

		// STRUCTURED_DIR and INDEX_DIR follow DATA_DIR unless set explicitly.
		DataDir:       dataDir,
		StructuredDir: envOr("STRUCTURED_DIR", filepath.Join(dataDir, "structured")),
		IndexDir:      envOr("INDEX_DIR", filepath.Join(dataDir, "index")),

		MaxChunkTokens:     envInt("MAX_CHUNK_TOKENS", 1600),
		ChunkOverlapTokens: envInt("CHUNK_OVERLAP_TOKENS", 160),
		HeadingChainDepth:  envInt("HEADING_CHAIN_DEPTH", 1),

		TopK:        envInt("TOP_K", 10),
		HybridAlpha: envFloat("HYBRID_ALPHA", 0.5),
		MMRLambda:   envFloat("MMR_LAMBDA", 0.7),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel:      envOr("EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		EmbedTimeout:        envDuration("EMBED_TIMEOUT", 60*time.Second),

		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		GenerationModel:     envOr("GENERATION_MODEL", "claude-sonnet-4-5-20250929"),
		GenerationMaxTokens: envInt("GENERATION_MAX_TOKENS", 4096),
		GenerationTimeout:   envDuration("GENERATION_TIMEOUT", 120*time.Second),

		Workers:      envInt("WORKERS", 2),
		JobQueueSize: envInt("JOB_QUEUE_SIZE", 32),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes:  envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 32
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.MaxChunkTokens <= 0 {
		return fmt.Errorf("MAX_CHUNK_TOKENS must be positive, got %d", c.MaxChunkTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS must be in [0, MAX_CHUNK_TOKENS), got %d", c.ChunkOverlapTokens)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.HybridAlpha < 0 || c.HybridAlpha > 1 {
		return fmt.Errorf("HYBRID_ALPHA must be in [0, 1], got %g", c.HybridAlpha)
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return fmt.Errorf("MMR_LAMBDA must be in [0, 1], got %g", c.MMRLambda)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
