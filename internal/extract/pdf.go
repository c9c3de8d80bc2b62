package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/odev-ai/pdfproc/internal/api"
)

// MinTextLength is the smallest amount of cleaned text a document must
// yield to be considered readable. Shorter extractions usually mean a
// scanned or image-only PDF.
const MinTextLength = 50

var (
	ErrNotPDF   = errors.New("file is not a valid PDF document")
	ErrNoText   = errors.New("no text could be extracted from document")
	ErrTooShort = errors.New("document contains too little extractable text")
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// keep word characters, base punctuation and Turkish letters
	charsetRe  = regexp.MustCompile(`[^\w\s.,;:!?\-()çğıöşüÇĞİÖŞÜ]`)
	punctRunRe = regexp.MustCompile(`[.,;:!?]{2,}`)
)

// IsPDF reports whether data starts with the PDF magic marker.
func IsPDF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("%PDF"))
}

// Text extracts the plain text of every readable page in data. Pages
// that fail to decode are skipped. The result is cleaned and must pass
// the MinTextLength threshold.
func Text(data []byte) (string, error) {
	doc, err := Document(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n--- Sayfa %d ---\n", page.Index))
		sb.WriteString(page.Text)
		sb.WriteString("\n")
	}

	text := Clean(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	if len(text) < MinTextLength {
		return "", ErrTooShort
	}

	return text, nil
}

// Document extracts per-page content without cleaning.
func Document(data []byte) (*api.DocumentContent, error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	numPages := reader.NumPage()
	doc := &api.DocumentContent{
		Pages: make([]api.DocumentPage, 0, numPages),
	}

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text, skipping", "page", i, "err", err)
			continue
		}

		doc.Pages = append(doc.Pages, api.DocumentPage{
			Index: i,
			Text:  text,
		})
	}

	if len(doc.Pages) == 0 {
		return nil, ErrNoText
	}

	return doc, nil
}

// Clean normalizes whitespace and strips characters outside the
// supported charset, collapsing runs of punctuation.
func Clean(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = charsetRe.ReplaceAllString(text, "")
	text = punctRunRe.ReplaceAllString(text, ".")
	return strings.TrimSpace(text)
}
