package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
	keyDims       = []byte("dims")
)

// BoltStore implements Store on an embedded bbolt file. Writes are durable
// as soon as Upsert returns; the file survives process restarts. Searches do
// an exact cosine scan, so equal scores tie-break by insertion order exactly.
type BoltStore struct {
	db *bbolt.DB
}

// boltRecord is the stored form of a Record. Seq is assigned on first insert
// and kept on replacement, preserving insertion order for tie-breaks.
type boltRecord struct {
	Seq       uint64            `json:"seq"`
	Embedding []float32         `json:"embedding"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewBolt opens (or creates) a bbolt-backed store at path.
func NewBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, domain.StoreError("open bolt "+path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// EnsureReady creates the buckets and pins the vector dimensionality. A dims
// change on an existing store is refused rather than silently mixing spaces.
func (s *BoltStore) EnsureReady(_ context.Context, dims int) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		want := fmt.Sprintf("%d", dims)
		if existing := meta.Get(keyDims); existing != nil {
			if string(existing) != want {
				return fmt.Errorf("store has %s-dim vectors, embedder produces %d", existing, dims)
			}
			return nil
		}
		return meta.Put(keyDims, []byte(want))
	})
	if err != nil {
		return domain.StoreError("ensure ready", err)
	}
	return nil
}

// Upsert writes records in one transaction. Re-upserting an ID replaces the
// stored record but keeps its original insertion sequence.
func (s *BoltStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("store not initialised")
		}
		for _, r := range records {
			rec := boltRecord{
				Embedding: r.Embedding,
				Text:      r.Text,
				Metadata:  r.Metadata,
			}
			if prev := b.Get([]byte(r.ID)); prev != nil {
				var old boltRecord
				if err := json.Unmarshal(prev, &old); err == nil {
					rec.Seq = old.Seq
				}
			}
			if rec.Seq == 0 {
				seq, err := b.NextSequence()
				if err != nil {
					return err
				}
				rec.Seq = seq
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoreError("upsert", err)
	}
	return nil
}

// DeleteBySource removes every record whose source metadata matches.
func (s *BoltStore) DeleteBySource(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return nil
		}
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Metadata["source"] == source {
				key := make([]byte, len(k))
				copy(key, k)
				doomed = append(doomed, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoreError("delete by source "+source, err)
	}
	return nil
}

// Search scans every stored vector and returns the k most similar, descending
// by score, ties broken by insertion order.
func (s *BoltStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		res SearchResult
		seq uint64
	}
	var hits []scored

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return nil
		}
		return b.ForEach(func(key, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			hits = append(hits, scored{
				res: SearchResult{
					ID:       string(key),
					Score:    cosine(embedding, rec.Embedding),
					Text:     rec.Text,
					Metadata: rec.Metadata,
				},
				seq: rec.Seq,
			})
			return nil
		})
	})
	if err != nil {
		return nil, domain.StoreError("search", err)
	}

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
