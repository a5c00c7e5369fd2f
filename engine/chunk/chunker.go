// Package chunk splits loaded documents into fixed-size overlapping segments
// suitable for embedding. Chunks prefer to end on a sentence boundary when one
// is close enough to the size limit.
package chunk

import (
	"strconv"
	"strings"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

const (
	// DefaultSize is the target chunk length in runes.
	DefaultSize = 1000
	// DefaultOverlap is how many runes consecutive chunks share.
	DefaultOverlap = 150
	// DefaultBoundaryWindow is how far back from the size limit the chunker
	// searches for a sentence boundary before cutting mid-sentence.
	DefaultBoundaryWindow = 200
)

// Chunker cuts document text into overlapping windows.
type Chunker struct {
	size    int
	overlap int
	window  int
}

// New creates a Chunker. Overlap must be smaller than size or the window
// would never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, domain.ConfigErrorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, domain.ConfigErrorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, domain.ConfigErrorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	window := DefaultBoundaryWindow
	if window > size/2 {
		window = size / 2
	}
	return &Chunker{size: size, overlap: overlap, window: window}, nil
}

// Split cuts a document into ordered chunks. Empty or whitespace-only text
// yields no chunks. Each chunk inherits the document metadata plus its index.
func (c *Chunker) Split(doc domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	var chunks []domain.Chunk
	start := 0
	idx := 0

	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.snapToBoundary(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			Text:     string(runes[start:end]),
			Index:    idx,
			Source:   doc.Source(),
			Metadata: chunkMetadata(doc, idx),
		})
		idx++

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// snapToBoundary retreats end to just past the last sentence boundary within
// the lookback window. The cut never retreats into the overlap region, so the
// window always advances.
func (c *Chunker) snapToBoundary(runes []rune, start, end int) int {
	floor := end - c.window
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	for i := end - 1; i >= floor; i-- {
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}
	return end
}

// isSentenceEnd reports whether position i terminates a sentence: a newline,
// or closing punctuation followed by whitespace or end of text.
func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '\n':
		return true
	case '.', '!', '?':
		return i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t'
	}
	return false
}

func chunkMetadata(doc domain.Document, idx int) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["chunk_index"] = strconv.Itoa(idx)
	return meta
}
