package domain

import (
	"errors"
	"fmt"
)

// Error classes for the pipeline. Every failure surfaced by the engine wraps
// exactly one of these, so callers can route on errors.Is without parsing
// messages.
var (
	// ErrConfiguration marks missing or invalid settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration")
	// ErrLoader marks an unreadable or corrupt source document. The failed
	// document is skipped; the rest of the run continues.
	ErrLoader = errors.New("loader")
	// ErrEmbedding marks embedding-model failure. Fatal for the current
	// batch or query; a missing embedding breaks retrieval integrity.
	ErrEmbedding = errors.New("embedding")
	// ErrStore marks vector-store I/O failure. Fatal for the current call,
	// never retried internally.
	ErrStore = errors.New("store")
	// ErrGeneration marks a language-model failure. Distinct from the
	// no-evidence fallback, which is a normal answer.
	ErrGeneration = errors.New("generation")
)

// ConfigError wraps err as a configuration failure.
func ConfigError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConfiguration, op, err)
}

// ConfigErrorf creates a configuration failure from a format string.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// LoaderError wraps err as a document-loading failure.
func LoaderError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoader, source, err)
}

// EmbeddingError wraps err as an embedding failure.
func EmbeddingError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEmbedding, op, err)
}

// StoreError wraps err as a vector-store failure.
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// GenerationError wraps err as a language-model failure.
func GenerationError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGeneration, op, err)
}
