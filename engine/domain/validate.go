package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuestion   = errors.New("empty question")
	ErrQuestionTooLong = errors.New("question too long")
	ErrEmptyDocument   = errors.New("document has no text")
	ErrMissingSource   = errors.New("document has no source metadata")
)

// MaxQuestionLen bounds question length in runes. Anything longer is almost
// certainly pasted document text, not a question.
const MaxQuestionLen = 2000

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, truncate(e.Value, 64))
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// ValidateQuestion checks a user question before it enters the pipeline.
func ValidateQuestion(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return &ValidationError{Field: "question", Value: q, Wrapped: ErrEmptyQuestion}
	}
	if utf8.RuneCountInString(trimmed) > MaxQuestionLen {
		return &ValidationError{Field: "question", Value: trimmed, Wrapped: ErrQuestionTooLong}
	}
	return nil
}

// ValidateDocument checks a loaded document before chunking.
func ValidateDocument(d Document) error {
	if d.Source() == "" {
		return &ValidationError{Field: "metadata.source", Value: "", Wrapped: ErrMissingSource}
	}
	if strings.TrimSpace(d.Text) == "" {
		return &ValidationError{Field: "text", Value: d.Source(), Wrapped: ErrEmptyDocument}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
