// Copyright 2025 Alan Matykiewicz
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

// Package chunk splits cleaned document text into bounded, overlapping
// segments suitable for embedding. Splitting happens on sentence
// boundaries first so individual chunks stay semantically coherent,
// with a word-level fallback for pathological sentences.
package chunk

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultSize    = 1500
	DefaultOverlap = 200

	// Hard upper bound on any produced chunk.
	MaxSize = 2000

	// Chunks shorter than this carry no useful signal and are dropped.
	minChunkLength = 30

	// minSentenceLength filters noise fragments left over from cleaning.
	minSentenceLength = 10

	// Documents longer than this switch to smaller chunks, which upload
	// more reliably in large batches.
	largeDocThreshold = 50000
	largeDocSize      = 1200
	largeDocOverlap   = 150
)

var sentenceRe = regexp.MustCompile(`[.!?]+`)

type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter() *Splitter {
	return &Splitter{
		Size:    DefaultSize,
		Overlap: DefaultOverlap,
	}
}

// Split breaks text into chunks of at most MaxSize characters,
// targeting s.Size with s.Overlap characters of carried-over context
// between consecutive chunks.
func (s *Splitter) Split(text string) []string {
	if len(strings.TrimSpace(text)) < minChunkLength {
		return nil
	}

	size, overlap := s.Size, s.Overlap
	if len(text) > largeDocThreshold {
		size = min(largeDocSize, size)
		overlap = min(largeDocOverlap, overlap)
		slog.Info("large document detected, using smaller chunks", "length", len(text), "chunk_size", size)
	}

	sentences := splitSentences(text)

	chunks := make([]string, 0)
	current := ""

	for _, sentence := range sentences {
		if len(current)+len(sentence)+1 <= size {
			current = join(current, sentence)
			continue
		}

		if current != "" {
			if c := strings.TrimSpace(current); len(c) > minChunkLength {
				chunks = append(chunks, c)
			}

			if overlap > 0 && len(chunks) > 0 {
				tail := current
				if len(tail) > overlap {
					start := len(tail) - overlap
					// never cut a multi-byte rune in half
					for start < len(tail) && !utf8.RuneStart(tail[start]) {
						start++
					}
					tail = tail[start:]
				}
				current = join(strings.TrimSpace(tail), sentence)
			} else {
				current = sentence
			}
			continue
		}

		// single sentence exceeds the chunk size, fall back to words
		if len(sentence) > size {
			parts, rest := splitWords(sentence, size)
			chunks = append(chunks, parts...)
			current = rest
		} else {
			current = sentence
		}
	}

	if c := strings.TrimSpace(current); len(c) > minChunkLength {
		chunks = append(chunks, c)
	}

	return capChunks(chunks)
}

func splitSentences(text string) []string {
	raw := sentenceRe.Split(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceLength {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitWords packs words into segments of at most size characters,
// returning complete segments and the unfinished remainder.
func splitWords(text string, size int) (parts []string, rest string) {
	words := strings.Fields(text)
	acc := ""
	for _, word := range words {
		if len(acc)+len(word)+1 > size {
			if strings.TrimSpace(acc) != "" {
				parts = append(parts, strings.TrimSpace(acc))
			}
			acc = word
		} else {
			acc = join(acc, word)
		}
	}
	return parts, acc
}

// capChunks enforces MaxSize on every chunk and drops fragments below
// the minimum length.
func capChunks(chunks []string) []string {
	final := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c) > MaxSize {
			slog.Warn("chunk exceeds hard limit, splitting further", "length", len(c))
			parts, rest := splitWords(c, MaxSize)
			final = append(final, parts...)
			if strings.TrimSpace(rest) != "" {
				final = append(final, strings.TrimSpace(rest))
			}
			continue
		}
		final = append(final, c)
	}

	kept := make([]string, 0, len(final))
	for _, c := range final {
		if len(strings.TrimSpace(c)) > minChunkLength {
			kept = append(kept, c)
		}
	}
	return kept
}

func join(acc, next string) string {
	if acc == "" {
		return next
	}
	return acc + " " + next
}
