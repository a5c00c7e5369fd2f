package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_TextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "annual_2024.txt", "Revenue: PKR 12,345,678 in 2024.")
	writeFile(t, dir, "notes.md", "# Notes\nDepreciation unchanged.")
	writeFile(t, dir, "ignored.csv", "a,b,c")
	writeFile(t, dir, ".hidden.txt", "should not load")

	l := NewFolderLoader(nil)
	docs, failed, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	bySource := map[string]domain.Document{}
	for _, d := range docs {
		bySource[d.Source()] = d
	}
	if d, ok := bySource["annual_2024.txt"]; !ok || d.Text != "Revenue: PKR 12,345,678 in 2024." {
		t.Errorf("annual_2024.txt not loaded correctly: %+v", d)
	}
	if d := bySource["notes.md"]; d.Metadata["format"] != "md" {
		t.Errorf("expected md format metadata, got %v", d.Metadata)
	}
}

func TestLoad_SkipsCorruptFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "Operating cash flow was positive.")
	// Not a real PDF; extraction must fail and be reported, not abort.
	writeFile(t, dir, "broken.pdf", "this is not a pdf")

	l := NewFolderLoader(nil)
	docs, failed, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("folder-level error for a single bad file: %v", err)
	}
	if len(docs) != 1 || docs[0].Source() != "good.txt" {
		t.Fatalf("good document should still load, got %v", docs)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed document, got %d", len(failed))
	}
	if failed[0].Source != "broken.pdf" {
		t.Errorf("unexpected failed source: %s", failed[0].Source)
	}
	if !errors.Is(failed[0].Err, domain.ErrLoader) {
		t.Errorf("failure should carry the loader class: %v", failed[0].Err)
	}
}

func TestLoad_MissingFolder(t *testing.T) {
	l := NewFolderLoader(nil)
	_, _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, domain.ErrLoader) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestLoad_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "archive")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "old.txt", "stale report")
	writeFile(t, dir, "current.txt", "fresh report")

	l := NewFolderLoader(nil)
	docs, _, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Source() != "current.txt" {
		t.Fatalf("subdirectory contents must not load, got %v", docs)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewFolderLoader(nil)
	_, _, err := l.Load(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
