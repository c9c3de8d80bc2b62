package chunk_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/odev-ai/pdfproc/internal/chunk"
)

func TestSplitShortText(t *testing.T) {
	s := chunk.NewSplitter()

	if got := s.Split(""); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := s.Split("too short"); got != nil {
		t.Errorf("expected nil for short text, got %v", got)
	}
}

func TestSplitSingleChunk(t *testing.T) {
	s := chunk.NewSplitter()
	text := "This is the first full sentence of the document. Here comes another sentence with more words in it."

	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "first full sentence") {
		t.Errorf("chunk missing sentence content: %q", chunks[0])
	}
}

func TestSplitRespectsSize(t *testing.T) {
	s := &chunk.Splitter{Size: 120, Overlap: 20}

	var sb strings.Builder
	for range 40 {
		sb.WriteString("Every single sentence here has a reasonable length. ")
	}

	chunks := s.Split(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > chunk.MaxSize {
			t.Errorf("chunk %d exceeds hard limit: %d chars", i, len(c))
		}
		if len(c) > 120+20+1 {
			t.Errorf("chunk %d exceeds size with overlap: %d chars", i, len(c))
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := &chunk.Splitter{Size: 100, Overlap: 40}

	var sb strings.Builder
	for range 20 {
		sb.WriteString("A sentence that repeats itself throughout the entire text. ")
	}

	chunks := s.Split(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// the tail of one chunk should reappear at the head of the next
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Errorf("expected overlap between chunks, tail %q not found in %q", tail, chunks[1])
	}
}

func TestSplitLongSentenceFallsBackToWords(t *testing.T) {
	s := &chunk.Splitter{Size: 80, Overlap: 0}

	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ") // one giant "sentence", no terminators

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected word-split chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 80 {
			t.Errorf("chunk %d exceeds size after word split: %d chars", i, len(c))
		}
	}
}

func TestSplitDropsTinyFragments(t *testing.T) {
	s := chunk.NewSplitter()
	chunks := s.Split("Tiny bits. No. Yes. Ok. This is one actual sentence that is long enough to keep around for the index.")

	for _, c := range chunks {
		if len(c) <= 30 {
			t.Errorf("kept fragment below minimum length: %q", c)
		}
	}
}

func TestSplitKeepsOverlapOnRuneBoundary(t *testing.T) {
	s := &chunk.Splitter{Size: 200, Overlap: 33}

	// multi-byte Turkish runes: an overlap cut landing mid-rune would
	// leave invalid UTF-8 at the chunk start
	sentence := strings.Repeat("ğ", 40) + "."
	text := strings.Repeat(sentence+" ", 50)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d contains invalid UTF-8: %q", i, c)
		}
	}
}
