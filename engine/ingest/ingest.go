// Package ingest runs the ingestion side of the pipeline: load report files
// from a folder, chunk each document, embed the chunks in batches, and upsert
// them into the vector store. Documents are isolated from each other — one
// failing document is reported, not allowed to stop the run.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/FinleyAI/finley-mvp/engine/chunk"
	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/engine/loader"
	"github.com/FinleyAI/finley-mvp/engine/semantic"
	"github.com/FinleyAI/finley-mvp/pkg/fn"
)

const (
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100
	// DefaultWorkers bounds how many documents are processed concurrently.
	// Parallelism is only ever across documents, never within one.
	DefaultWorkers = 4
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the injected collaborators for the ingestion pipeline.
type Deps struct {
	Loader   loader.Loader
	Chunker  *chunk.Chunker
	Embedder Embedder
	Store    semantic.Store
	Workers  int
	Logger   *slog.Logger
}

// Service orchestrates folder ingestion runs.
type Service struct {
	deps     Deps
	pipeline fn.Stage[domain.Document, int]
	logger   *slog.Logger
}

// New creates an ingestion Service from its dependencies.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Workers <= 0 {
		deps.Workers = DefaultWorkers
	}
	return &Service{
		deps:     deps,
		pipeline: newDocPipeline(deps),
		logger:   log,
	}
}

// Ingest loads every supported document directly inside folder and runs each
// through the chunk/embed/store pipeline. The returned result reports total
// chunks stored and every document that failed; the error is non-nil only
// when the folder itself cannot be processed.
func (s *Service) Ingest(ctx context.Context, folder string) (domain.IngestResult, error) {
	docs, loadFailed, err := s.deps.Loader.Load(ctx, folder)
	if err != nil {
		return domain.IngestResult{}, err
	}

	result := domain.IngestResult{Errors: loadFailed}
	s.logger.Info("ingest run start", "folder", folder, "documents", len(docs), "unreadable", len(loadFailed))

	outcomes := fn.ParMapResult(docs, s.deps.Workers, func(doc domain.Document) fn.Result[int] {
		return s.pipeline(ctx, doc)
	})

	for i, outcome := range outcomes {
		stored, err := outcome.Unwrap()
		if err != nil {
			s.logger.Error("ingest document failed", "source", docs[i].Source(), "error", err)
			result.Errors = append(result.Errors, domain.DocumentError{
				Source: docs[i].Source(),
				Err:    err,
			})
			continue
		}
		result.ChunksStored += stored
		result.Documents++
	}

	s.logger.Info("ingest run done",
		"folder", folder,
		"documents", result.Documents,
		"chunks", result.ChunksStored,
		"errors", len(result.Errors),
	)
	return result, nil
}

// newDocPipeline wires the per-document stages:
// Validate → Chunk → Embed → Store. Each stage gets a tracing span.
func newDocPipeline(deps Deps) fn.Stage[domain.Document, int] {
	validate := fn.TracedStage("ingest.validate", validateStage)
	chunkStage := fn.TracedStage("ingest.chunk", newChunkStage(deps.Chunker))
	embed := fn.TracedStage("ingest.embed", newEmbedStage(deps.Embedder))
	store := fn.TracedStage("ingest.store", newStoreStage(deps.Store))

	return fn.Then(fn.Then(fn.Then(validate, chunkStage), embed), store)
}

// validateStage rejects documents without text or source before any work.
var validateStage fn.Stage[domain.Document, domain.Document] = func(_ context.Context, doc domain.Document) fn.Result[domain.Document] {
	if err := domain.ValidateDocument(doc); err != nil {
		return fn.Err[domain.Document](err)
	}
	return fn.Ok(doc)
}

// newChunkStage splits a document into chunks.
func newChunkStage(chunker *chunk.Chunker) fn.Stage[domain.Document, ChunkedDoc] {
	return func(_ context.Context, doc domain.Document) fn.Result[ChunkedDoc] {
		chunks := chunker.Split(doc)
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](fmt.Errorf("document produced no chunks"))
		}
		return fn.Ok(ChunkedDoc{Doc: doc, Chunks: chunks})
	}
}

// newEmbedStage embeds a document's chunks, batching to bound request size.
// An embedding failure is fatal for the whole document: a partially embedded
// document would silently poison retrieval.
func newEmbedStage(embedder Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Text })
		embeddings := make([][]float32, 0, len(texts))

		for _, batch := range fn.Chunk(texts, EmbedBatchSize) {
			vecs, err := embedder.EmbedBatch(ctx, batch)
			if err != nil {
				return fn.Err[EmbeddedDoc](err)
			}
			if len(vecs) != len(batch) {
				return fn.Err[EmbeddedDoc](domain.EmbeddingError("batch",
					fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(batch))))
			}
			embeddings = append(embeddings, vecs...)
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// newStoreStage replaces the document's previous chunks and upserts the new
// ones. Chunk IDs are derived from source and index, so re-ingesting the same
// file can never duplicate.
func newStoreStage(store semantic.Store) fn.Stage[EmbeddedDoc, int] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[int] {
		if len(doc.Embeddings) > 0 {
			if err := store.EnsureReady(ctx, len(doc.Embeddings[0])); err != nil {
				return fn.Err[int](err)
			}
		}

		source := doc.Doc.Source()
		if err := store.DeleteBySource(ctx, source); err != nil {
			return fn.Err[int](err)
		}

		records := make([]semantic.Record, len(doc.Chunks))
		for i, c := range doc.Chunks {
			records[i] = semantic.Record{
				ID:        ChunkID(source, c.Index),
				Embedding: doc.Embeddings[i],
				Text:      c.Text,
				Metadata:  c.Metadata,
			}
		}
		if err := store.Upsert(ctx, records); err != nil {
			return fn.Err[int](err)
		}
		return fn.Ok(len(records))
	}
}

// ChunkID derives a deterministic UUID for a chunk from its source file and
// index.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"-"+strconv.Itoa(index))).String()
}
