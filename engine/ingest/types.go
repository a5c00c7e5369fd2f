package ingest

import "github.com/FinleyAI/finley-mvp/engine/domain"

// ChunkedDoc is a loaded document split into embeddable chunks.
type ChunkedDoc struct {
	Doc    domain.Document
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked document with one embedding per chunk, in chunk
// order.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}
