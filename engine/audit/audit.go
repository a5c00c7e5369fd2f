// Package audit persists a record of every answered question. The file
// recorder mirrors the output layout analysts already grep through; the NATS
// recorder fans records out to downstream consumers.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"

	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/pkg/natsutil"
)

// Subject carries audit records published by the NATS recorder.
const Subject = "finley.audit"

// timestampLayout names audit files down to the second. Two answers within
// the same second land in the same file; the write is append-only so neither
// is lost.
const timestampLayout = "20060102_150405"

// FileRecorder appends each record to output/response_<timestamp>.txt under
// its directory.
type FileRecorder struct {
	dir string
}

// NewFileRecorder creates the output directory if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if dir == "" {
		return nil, domain.ConfigErrorf("audit: output directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create output dir: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

// Record appends the question and answer to a timestamp-named file.
func (r *FileRecorder) Record(_ context.Context, rec domain.QueryRecord) error {
	name := fmt.Sprintf("response_%s.txt", rec.Timestamp.Format(timestampLayout))
	path := filepath.Join(r.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "Question:\n%s\n\nAnswer:\n%s\n", rec.Question, rec.Answer); err != nil {
		return fmt.Errorf("audit: write %s: %w", name, err)
	}
	return nil
}

// NATSRecorder publishes each record to the audit subject.
type NATSRecorder struct {
	nc *nats.Conn
}

func NewNATSRecorder(nc *nats.Conn) *NATSRecorder {
	return &NATSRecorder{nc: nc}
}

func (r *NATSRecorder) Record(ctx context.Context, rec domain.QueryRecord) error {
	if err := natsutil.Publish(ctx, r.nc, Subject, rec); err != nil {
		return fmt.Errorf("audit: publish: %w", err)
	}
	return nil
}

// Recorder is the sink the answering service writes to.
type Recorder interface {
	Record(ctx context.Context, rec domain.QueryRecord) error
}

// MultiRecorder fans a record out to every sink. A failing sink is logged
// and skipped; auditing never blocks an answer that was already produced.
type MultiRecorder struct {
	sinks  []Recorder
	logger *slog.Logger
}

func NewMulti(logger *slog.Logger, sinks ...Recorder) *MultiRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiRecorder{sinks: sinks, logger: logger}
}

func (m *MultiRecorder) Record(ctx context.Context, rec domain.QueryRecord) error {
	for _, s := range m.sinks {
		if err := s.Record(ctx, rec); err != nil {
			m.logger.Warn("audit: sink failed", "error", err)
		}
	}
	return nil
}
