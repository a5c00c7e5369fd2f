package semantic

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

// openStores builds each local backend against a fresh state so the shared
// contract tests run identically over Memory and Bolt.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := NewBolt(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bolt.Close() })
	if err := bolt.EnsureReady(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"bolt":   bolt,
	}
}

func rec(id string, vec []float32, text, source string) Record {
	return Record{
		ID:        id,
		Embedding: vec,
		Text:      text,
		Metadata:  map[string]string{"source": source},
	}
}

func TestStore_SearchOrdering(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := store.Upsert(ctx, []Record{
				rec("a", []float32{1, 0, 0}, "exact match", "r.txt"),
				rec("b", []float32{0.7, 0.7, 0}, "partial match", "r.txt"),
				rec("c", []float32{0, 0, 1}, "orthogonal", "r.txt"),
			})
			if err != nil {
				t.Fatal(err)
			}

			hits, err := store.Search(ctx, []float32{1, 0, 0}, 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 3 {
				t.Fatalf("expected 3 hits, got %d", len(hits))
			}
			if hits[0].ID != "a" || hits[1].ID != "b" || hits[2].ID != "c" {
				t.Errorf("wrong order: %s %s %s", hits[0].ID, hits[1].ID, hits[2].ID)
			}
			for i := 1; i < len(hits); i++ {
				if hits[i].Score > hits[i-1].Score {
					t.Errorf("scores not non-increasing at %d", i)
				}
			}

			// k truncates.
			hits, err = store.Search(ctx, []float32{1, 0, 0}, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 2 {
				t.Errorf("expected 2 hits with k=2, got %d", len(hits))
			}
		})
	}
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// Identical vectors: scores tie exactly.
			for i := 0; i < 5; i++ {
				err := store.Upsert(ctx, []Record{
					rec(fmt.Sprintf("id-%d", i), []float32{1, 1, 0}, fmt.Sprintf("chunk %d", i), "r.txt"),
				})
				if err != nil {
					t.Fatal(err)
				}
			}
			hits, err := store.Search(ctx, []float32{1, 1, 0}, 5)
			if err != nil {
				t.Fatal(err)
			}
			for i, h := range hits {
				if want := fmt.Sprintf("id-%d", i); h.ID != want {
					t.Fatalf("tie at position %d resolved to %s, want %s", i, h.ID, want)
				}
			}
		})
	}
}

func TestStore_UpsertReplacesByID(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Upsert(ctx, []Record{rec("x", []float32{1, 0, 0}, "old text", "r.txt")}); err != nil {
				t.Fatal(err)
			}
			if err := store.Upsert(ctx, []Record{rec("x", []float32{1, 0, 0}, "new text", "r.txt")}); err != nil {
				t.Fatal(err)
			}
			hits, err := store.Search(ctx, []float32{1, 0, 0}, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 1 {
				t.Fatalf("re-upsert duplicated: %d records", len(hits))
			}
			if hits[0].Text != "new text" {
				t.Errorf("re-upsert did not replace text: %q", hits[0].Text)
			}
		})
	}
}

func TestStore_DeleteBySource(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := store.Upsert(ctx, []Record{
				rec("a1", []float32{1, 0, 0}, "from annual", "annual.pdf"),
				rec("a2", []float32{0, 1, 0}, "from annual too", "annual.pdf"),
				rec("q1", []float32{0, 0, 1}, "from quarterly", "q3.pdf"),
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := store.DeleteBySource(ctx, "annual.pdf"); err != nil {
				t.Fatal(err)
			}
			hits, err := store.Search(ctx, []float32{1, 1, 1}, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 1 || hits[0].ID != "q1" {
				t.Fatalf("expected only q1 to survive, got %v", hits)
			}
		})
	}
}

func TestStore_EmptySearch(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			hits, err := store.Search(context.Background(), []float32{1, 0, 0}, 4)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 0 {
				t.Errorf("empty store returned %d hits", len(hits))
			}
			// k=0 is a valid no-op, not an error.
			hits, err = store.Search(context.Background(), []float32{1, 0, 0}, 0)
			if err != nil || len(hits) != 0 {
				t.Errorf("k=0 should yield empty result, got %v, %v", hits, err)
			}
		})
	}
}

func TestStore_ConcurrentReaders(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 20; i++ {
				if err := store.Upsert(ctx, []Record{
					rec(fmt.Sprintf("id-%d", i), []float32{float32(i), 1, 0}, "text", "r.txt"),
				}); err != nil {
					t.Fatal(err)
				}
			}
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 25; i++ {
						hits, err := store.Search(ctx, []float32{1, 1, 0}, 4)
						if err != nil || len(hits) != 4 {
							t.Errorf("concurrent search failed: %d hits, err=%v", len(hits), err)
							return
						}
					}
				}()
			}
			wg.Wait()
		})
	}
}

func TestBolt_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	store, err := NewBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureReady(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, []Record{rec("p", []float32{0, 1, 0}, "persistent", "r.txt")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	hits, err := reopened.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Text != "persistent" {
		t.Fatalf("record did not survive reopen: %v", hits)
	}
}

func TestBolt_RejectsDimsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	store, err := NewBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.EnsureReady(context.Background(), 384); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureReady(context.Background(), 768); err == nil {
		t.Fatal("dims change should be refused")
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1, 0}, []float32{1, 0, 0}, 0}, // length mismatch
	}
	for _, tc := range cases {
		got := float64(cosine(tc.a, tc.b))
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("cosine(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
