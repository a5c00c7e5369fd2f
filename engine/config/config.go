// Package config loads and validates the pipeline settings shared by every
// command. Values come from the environment; a .env file is loaded by the
// commands before this package reads anything.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/FinleyAI/finley-mvp/engine/chunk"
	"github.com/FinleyAI/finley-mvp/engine/domain"
)

// Store backends the pipeline can run against.
const (
	StoreQdrant = "qdrant"
	StoreBolt   = "bolt"
	StoreMemory = "memory"
)

// Chat providers.
const (
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	CORSOrigin string

	StoreBackend string // qdrant | bolt | memory
	QdrantURL    string
	Collection   string
	BoltPath     string

	OllamaURL  string
	EmbedModel string

	ChatProvider string // groq | ollama
	ChatModel    string
	GroqAPIKey   string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	SearchTimeout time.Duration
	ModelTimeout  time.Duration

	OutputDir string
	NATSURL   string
}

// Load reads the environment with the same defaults the CLI documents.
func Load() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),

		StoreBackend: envOr("STORE_BACKEND", StoreQdrant),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "finley"),
		BoltPath:     envOr("BOLT_PATH", "finley.db"),

		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "all-minilm"),

		ChatProvider: envOr("CHAT_PROVIDER", ProviderGroq),
		ChatModel:    envOr("CHAT_MODEL", "llama-3.1-8b-instant"),
		GroqAPIKey:   os.Getenv("GROQ_API_KEY"),

		ChunkSize:    envIntOr("CHUNK_SIZE", chunk.DefaultSize),
		ChunkOverlap: envIntOr("CHUNK_OVERLAP", chunk.DefaultOverlap),
		TopK:         envIntOr("TOP_K", 4),

		SearchTimeout: envDurationOr("SEARCH_TIMEOUT", 5*time.Second),
		ModelTimeout:  envDurationOr("MODEL_TIMEOUT", 60*time.Second),

		OutputDir: envOr("OUTPUT_DIR", "output"),
		NATSURL:   envOr("NATS_URL", ""),
	}
}

// Validate rejects settings the pipeline cannot start with. Called once at
// startup so misconfiguration fails fast instead of mid-request.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreQdrant:
		if c.QdrantURL == "" {
			return domain.ConfigErrorf("QDRANT_URL required for the qdrant backend")
		}
		if c.Collection == "" {
			return domain.ConfigErrorf("QDRANT_COLLECTION must not be empty")
		}
	case StoreBolt:
		if c.BoltPath == "" {
			return domain.ConfigErrorf("BOLT_PATH required for the bolt backend")
		}
	case StoreMemory:
	default:
		return domain.ConfigErrorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.ChatProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return domain.ConfigErrorf("GROQ_API_KEY required for the groq provider")
		}
	case ProviderOllama:
		if c.OllamaURL == "" {
			return domain.ConfigErrorf("OLLAMA_URL required for the ollama provider")
		}
	default:
		return domain.ConfigErrorf("unknown chat provider %q", c.ChatProvider)
	}

	if c.EmbedModel == "" {
		return domain.ConfigErrorf("EMBED_MODEL must not be empty")
	}
	if c.ChatModel == "" {
		return domain.ConfigErrorf("CHAT_MODEL must not be empty")
	}
	if c.ChunkSize <= 0 {
		return domain.ConfigErrorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ConfigErrorf("overlap %d must be in [0, chunk size %d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return domain.ConfigErrorf("top-k must be positive, got %d", c.TopK)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
