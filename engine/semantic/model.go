// Package semantic owns vector storage and nearest-neighbour search for the
// retrieval pipeline. Three backends share one contract: Qdrant for server
// deployments, Bolt for durable single-binary setups, and Memory for tests
// and ephemeral runs.
package semantic

import "context"

// Record is one embedded chunk as stored: identifier, vector, the chunk text,
// and its metadata (source filename, chunk index, anything the loader added).
type Record struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  map[string]string
}

// SearchResult is a single nearest-neighbour hit.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the source filename stored with the hit.
func (r SearchResult) Source() string { return r.Metadata["source"] }

// Store is the vector-store contract the pipeline depends on.
//
// Upsert is idempotent per ID: re-upserting replaces, never duplicates.
// Search returns at most k hits in descending similarity; equal scores keep
// insertion order so results are reproducible. Searching an empty or missing
// collection yields an empty result, not an error.
type Store interface {
	// EnsureReady prepares the backing collection for vectors of the given
	// dimensionality. Safe to call repeatedly.
	EnsureReady(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []Record) error
	// DeleteBySource removes every record ingested from the named source
	// file. Used for replace-by-source re-ingestion.
	DeleteBySource(ctx context.Context, source string) error
	Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)
	Close() error
}
