package extract_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/odev-ai/pdfproc/internal/extract"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), true},
		{"empty", []byte{}, false},
		{"short", []byte("%PD"), false},
		{"plain text", []byte("hello world, definitely not a pdf"), false},
		{"png header", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.IsPDF(tt.data); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextRejectsNonPDF(t *testing.T) {
	_, err := extract.Text([]byte("just some text pretending to be a document"))
	if !errors.Is(err, extract.ErrNotPDF) {
		t.Errorf("expected ErrNotPDF, got %v", err)
	}
}

func TestDocumentRejectsCorruptPDF(t *testing.T) {
	// valid magic, garbage body
	data := append([]byte("%PDF-1.4\n"), []byte(strings.Repeat("x", 128))...)
	_, err := extract.Document(data)
	if err == nil {
		t.Error("expected error for corrupt PDF body")
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "a  b\t\tc\n\nd", "a b c d"},
		{"keeps turkish letters", "öğrenci çalışması ŞİİR", "öğrenci çalışması ŞİİR"},
		{"strips odd symbols", "text § with ™ junk ©", "text  with  junk"},
		{"collapses punctuation runs", "wait... what?!", "wait. what."},
		{"trims", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
