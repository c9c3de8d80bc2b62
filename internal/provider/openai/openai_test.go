package openai

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	short := "a short input"
	if got := truncate(short); got != short {
		t.Errorf("expected short input unchanged, got %q", got)
	}

	long := strings.Repeat("b", maxInputLength+100)
	if got := truncate(long); len(got) != maxInputLength {
		t.Errorf("expected %d bytes after truncation, got %d", maxInputLength, len(got))
	}
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	// odd leading byte pushes the cut point inside a 2-byte rune
	long := "a" + strings.Repeat("ğ", maxInputLength)

	got := truncate(long)
	if !utf8.ValidString(got) {
		t.Errorf("truncated input contains invalid UTF-8: tail %q", got[len(got)-4:])
	}
	if len(got) > maxInputLength {
		t.Errorf("truncated input exceeds %d bytes: %d", maxInputLength, len(got))
	}
}
