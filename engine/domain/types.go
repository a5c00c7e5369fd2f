// Package domain defines the core types and validation for the Finley
// question-answering pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import "time"

// MetaSource is the metadata key every Document must carry: the filename the
// text was extracted from. Re-ingesting a file with the same source replaces
// its previously stored chunks.
const MetaSource = "source"

// Document is the raw text of one loaded report plus provenance metadata.
// Immutable once created by the loader.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Source returns the source filename from the document metadata.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a bounded text segment cut from a Document, ready for embedding.
// Index is the chunk's position within its source document.
type Chunk struct {
	Text     string
	Index    int
	Source   string
	Metadata map[string]string
}

// RetrievedChunk is one similarity-search hit: chunk text, its metadata, and
// the similarity score against the query vector.
type RetrievedChunk struct {
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievalResult is the ordered (descending score) outcome of one retrieval.
type RetrievalResult []RetrievedChunk

// AnswerResult is what Ask returns to callers. Grounded is false exactly when
// the fallback path was taken because no usable evidence was retrieved.
type AnswerResult struct {
	Text     string `json:"text"`
	Grounded bool   `json:"grounded"`
}

// QueryRecord is the append-only audit record written after each answered
// question. Never mutated after creation.
type QueryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Grounded  bool      `json:"grounded"`
}

// DocumentError pairs a failed source file with the error that stopped it.
type DocumentError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e DocumentError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e DocumentError) Unwrap() error { return e.Err }

// IngestResult aggregates one ingestion run: how many chunks were stored and
// which documents failed. A run with failed documents is still a result, not
// an error; callers decide whether partial progress is acceptable.
type IngestResult struct {
	ChunksStored int             `json:"chunks_stored"`
	Documents    int             `json:"documents"`
	Errors       []DocumentError `json:"errors,omitempty"`
}

// Failed reports whether any document in the run failed.
func (r IngestResult) Failed() bool { return len(r.Errors) > 0 }
