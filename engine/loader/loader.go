// Package loader extracts raw text from report files in a folder and tags
// each document with provenance metadata. Format parsing is kept behind the
// Loader interface so the pipeline never depends on a concrete parser.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

// Loader turns a folder of report files into Documents. Implementations skip
// unreadable files and report them instead of aborting the whole folder.
type Loader interface {
	Load(ctx context.Context, folder string) ([]domain.Document, []domain.DocumentError, error)
}

// FolderLoader reads .pdf, .txt and .md files directly inside a folder.
// Subdirectories are not descended into.
type FolderLoader struct {
	logger *slog.Logger
}

// NewFolderLoader creates a FolderLoader.
func NewFolderLoader(logger *slog.Logger) *FolderLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderLoader{logger: logger}
}

// Load reads every supported file in the folder. A file that cannot be read
// or parsed becomes a DocumentError; the rest of the folder still loads. The
// returned error is non-nil only when the folder itself is unreadable.
func (l *FolderLoader) Load(ctx context.Context, folder string) ([]domain.Document, []domain.DocumentError, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, nil, domain.LoaderError(folder, err)
	}

	var docs []domain.Document
	var failed []domain.DocumentError

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		path := filepath.Join(folder, e.Name())

		var text string
		switch ext {
		case ".txt", ".md":
			text, err = readTextFile(path)
		case ".pdf":
			text, err = extractPDFText(path)
		default:
			continue
		}
		if err != nil {
			l.logger.Warn("loader: skipping unreadable file", "file", e.Name(), "error", err)
			failed = append(failed, domain.DocumentError{
				Source: e.Name(),
				Err:    domain.LoaderError(e.Name(), err),
			})
			continue
		}

		l.logger.Info("loader: loaded document", "file", e.Name(), "bytes", len(text))
		docs = append(docs, domain.Document{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource: e.Name(),
				"format":          strings.TrimPrefix(ext, "."),
			},
		})
	}
	return docs, failed, nil
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	return string(data), nil
}
