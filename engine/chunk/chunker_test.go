package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

func doc(text string) domain.Document {
	return domain.Document{
		Text:     text,
		Metadata: map[string]string{domain.MetaSource: "report.pdf"},
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	c, err := New(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Split(doc("")); got != nil {
		t.Errorf("empty text should yield no chunks, got %d", len(got))
	}
	if got := c.Split(doc("  \n\t ")); got != nil {
		t.Errorf("whitespace text should yield no chunks, got %d", len(got))
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c, _ := New(100, 20)
	chunks := c.Split(doc("Revenue rose 12% in Q4."))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Revenue rose 12% in Q4." {
		t.Errorf("chunk text altered: %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 || chunks[0].Source != "report.pdf" {
		t.Errorf("bad chunk identity: %+v", chunks[0])
	}
	if chunks[0].Metadata["chunk_index"] != "0" {
		t.Errorf("missing chunk_index metadata: %v", chunks[0].Metadata)
	}
}

// Every chunk is bounded by size, consecutive chunks share exactly overlap
// runes, and stitching the chunks back together reproduces the document.
func TestSplit_WindowProperties(t *testing.T) {
	text := strings.Repeat("Net income for the period was PKR 4,210 million. ", 60)
	sizes := []struct{ size, overlap int }{
		{100, 20}, {250, 50}, {1000, 150}, {64, 1},
	}

	for _, p := range sizes {
		c, err := New(p.size, p.overlap)
		if err != nil {
			t.Fatal(err)
		}
		chunks := c.Split(doc(text))
		if len(chunks) == 0 {
			t.Fatal("expected chunks")
		}

		for i, ch := range chunks {
			if n := len([]rune(ch.Text)); n > p.size {
				t.Fatalf("size=%d: chunk %d has %d runes", p.size, i, n)
			}
			if ch.Index != i {
				t.Fatalf("chunk %d has index %d", i, ch.Index)
			}
		}

		for i := 1; i < len(chunks); i++ {
			prev := []rune(chunks[i-1].Text)
			cur := []rune(chunks[i].Text)
			tail := string(prev[len(prev)-p.overlap:])
			head := string(cur[:p.overlap])
			if tail != head {
				t.Fatalf("size=%d: chunks %d/%d do not overlap by %d runes", p.size, i-1, i, p.overlap)
			}
		}

		var rebuilt strings.Builder
		rebuilt.WriteString(chunks[0].Text)
		for i := 1; i < len(chunks); i++ {
			cur := []rune(chunks[i].Text)
			rebuilt.WriteString(string(cur[p.overlap:]))
		}
		if rebuilt.String() != text {
			t.Fatalf("size=%d: stitched chunks do not reconstruct the document", p.size)
		}
	}
}

func TestSplit_SnapsToSentenceBoundary(t *testing.T) {
	// Two sentences; the size limit lands mid-way through the second, with
	// the first boundary inside the lookback window.
	text := "The company reported strong growth. Operating margin expanded to eighteen percent over the fiscal year."
	c, err := New(60, 10)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split(doc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "growth. ") && !strings.HasSuffix(chunks[0].Text, "growth.") {
		t.Errorf("first chunk should end at the sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Cash and equivalents stood at 9.3 billion at year end.\n", 40)
	c, _ := New(200, 40)
	a := c.Split(doc(text))
	b := c.Split(doc(text))
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Index != b[i].Index {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_UnicodeSafe(t *testing.T) {
	text := strings.Repeat("Umsätze stiegen auf 12 Millionen €. ", 30)
	c, _ := New(80, 16)
	chunks := c.Split(doc(text))
	for i, ch := range chunks {
		if !strings.HasPrefix(text, chunks[0].Text) && i == 0 {
			t.Fatal("first chunk must be a prefix of the document")
		}
		if strings.Contains(ch.Text, "�") {
			t.Fatalf("chunk %d contains a broken rune", i)
		}
	}
}
