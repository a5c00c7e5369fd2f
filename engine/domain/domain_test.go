package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name     string
		question string
		wantErr  error
	}{
		{"ok", "What was the revenue in 2024?", nil},
		{"empty", "", ErrEmptyQuestion},
		{"whitespace only", "   \t\n", ErrEmptyQuestion},
		{"too long", strings.Repeat("q", MaxQuestionLen+1), ErrQuestionTooLong},
		{"exactly max", strings.Repeat("q", MaxQuestionLen), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.question)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	ok := Document{Text: "Q4 revenue rose.", Metadata: map[string]string{MetaSource: "annual.pdf"}}
	if err := ValidateDocument(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noSource := Document{Text: "text", Metadata: map[string]string{}}
	if err := ValidateDocument(noSource); !errors.Is(err, ErrMissingSource) {
		t.Errorf("expected ErrMissingSource, got %v", err)
	}

	blank := Document{Text: " \n ", Metadata: map[string]string{MetaSource: "annual.pdf"}}
	if err := ValidateDocument(blank); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestErrorClasses(t *testing.T) {
	base := fmt.Errorf("connection refused")

	cases := []struct {
		err   error
		class error
	}{
		{ConfigError("load", base), ErrConfiguration},
		{ConfigErrorf("overlap %d >= chunk size %d", 10, 10), ErrConfiguration},
		{LoaderError("report.pdf", base), ErrLoader},
		{EmbeddingError("batch", base), ErrEmbedding},
		{StoreError("upsert", base), ErrStore},
		{GenerationError("chat", base), ErrGeneration},
	}

	for _, tc := range cases {
		if !errors.Is(tc.err, tc.class) {
			t.Errorf("%v should match class %v", tc.err, tc.class)
		}
	}

	// Wrapped cause stays reachable.
	if !errors.Is(StoreError("upsert", base), base) {
		t.Error("wrapped cause lost")
	}
	// Classes stay distinct.
	if errors.Is(EmbeddingError("x", base), ErrGeneration) {
		t.Error("embedding error must not match generation class")
	}
}

func TestIngestResultFailed(t *testing.T) {
	r := IngestResult{ChunksStored: 12, Documents: 2}
	if r.Failed() {
		t.Error("clean run reported as failed")
	}
	r.Errors = append(r.Errors, DocumentError{Source: "bad.pdf", Err: fmt.Errorf("corrupt")})
	if !r.Failed() {
		t.Error("run with errors reported as clean")
	}
	if got := r.Errors[0].Error(); got != "bad.pdf: corrupt" {
		t.Errorf("unexpected document error text: %s", got)
	}
}
