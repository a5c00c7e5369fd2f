package semantic

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory. Used for tests and for
// ephemeral runs where nothing should outlive the process. Safe for
// concurrent readers and writers.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memRecord
	nextSeq uint64
}

type memRecord struct {
	seq       uint64
	embedding []float32
	text      string
	metadata  map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]memRecord)}
}

// EnsureReady is a no-op for the memory backend.
func (s *MemoryStore) EnsureReady(context.Context, int) error { return nil }

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upsert stores records, replacing by ID while keeping the original
// insertion sequence for tie-breaks.
func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		seq := s.records[r.ID].seq
		if seq == 0 {
			s.nextSeq++
			seq = s.nextSeq
		}
		s.records[r.ID] = memRecord{
			seq:       seq,
			embedding: append([]float32(nil), r.Embedding...),
			text:      r.Text,
			metadata:  copyMeta(r.Metadata),
		}
	}
	return nil
}

// DeleteBySource removes every record whose source metadata matches.
func (s *MemoryStore) DeleteBySource(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.metadata["source"] == source {
			delete(s.records, id)
		}
	}
	return nil
}

// Search returns the k most similar records, descending by score, ties broken
// by insertion order.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type scored struct {
		res SearchResult
		seq uint64
	}
	hits := make([]scored, 0, len(s.records))
	for id, rec := range s.records {
		hits = append(hits, scored{
			res: SearchResult{
				ID:       id,
				Score:    cosine(embedding, rec.embedding),
				Text:     rec.text,
				Metadata: copyMeta(rec.metadata),
			},
			seq: rec.seq,
		})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.res
	}
	return results, nil
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
