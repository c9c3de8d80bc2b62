package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/odev-ai/pdfproc/internal/api"
	"github.com/odev-ai/pdfproc/internal/chunk"
	"github.com/odev-ai/pdfproc/internal/vector"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 0, 0, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) GetDimensions() uint { return 4 }

// fakeStore counts upsert calls and can be told to fail transiently or
// to reject every batch starting at a given chunk index.
type fakeStore struct {
	mu      sync.Mutex
	records []*vector.Record
	calls   int

	failFirst int
	failFrom  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{failFrom: -1}
}

func (f *fakeStore) Upsert(ctx context.Context, records []*vector.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls += 1
	if f.calls <= f.failFirst {
		return errors.New("transient store error")
	}
	if f.failFrom >= 0 && len(records) > 0 {
		if idx, ok := records[0].Metadata["chunk_index"].(int); ok && idx >= f.failFrom {
			return errors.New("persistent store error")
		}
	}

	f.records = append(f.records, records...)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, params *vector.QueryParams) ([]*api.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*vector.IndexStats, error) {
	return &vector.IndexStats{Dimension: 4}, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) stored() []*vector.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records
}

// makeText builds n distinct sentences short enough that a Size 60
// splitter emits exactly one chunk per sentence.
func makeText(n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "sentence %03d %s. ", i, strings.Repeat("a", 25))
	}
	return b.String()
}

func testRequest() *Request {
	return &Request{
		ProcessingID: "proc1",
		SessionID:    "sess1",
		Mode:         ModeCourse,
		Meta: api.DocumentMeta{
			UserID:   "user1",
			Grade:    "9",
			Topic:    "biology",
			Filename: "cells.pdf",
		},
	}
}

func fastRetries(t *testing.T) {
	t.Helper()
	old := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = old })
}

func TestProcessTextUploadsAllChunks(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeEmbedder{}, store, WithSplitter(&chunk.Splitter{Size: 60}))

	res, err := p.ProcessText(context.Background(), testRequest(), makeText(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("expected successful result")
	}
	if res.UploadedCount != 5 || res.FailedCount != 0 {
		t.Errorf("expected 5 uploaded and 0 failed, got %d and %d", res.UploadedCount, res.FailedCount)
	}
	if len(res.Chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(res.Chunks))
	}

	records := store.stored()
	if len(records) != 5 {
		t.Fatalf("expected 5 records in store, got %d", len(records))
	}
	for i, r := range records {
		wantID := fmt.Sprintf("proc1_chunk_%d", i)
		if r.ID != wantID {
			t.Errorf("record %d: expected id '%s', got '%s'", i, wantID, r.ID)
		}
		if len(r.Values) != 4 {
			t.Errorf("record %d: expected 4 dimensions, got %d", i, len(r.Values))
		}
	}
}

func TestProcessTextRecordMetadata(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeEmbedder{}, store, WithSplitter(&chunk.Splitter{Size: 60}))

	req := testRequest()
	if _, err := p.ProcessText(context.Background(), req, makeText(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := store.stored()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	md := records[0].Metadata
	expects := map[string]any{
		"source":        "user_upload",
		"user_id":       "user1",
		"grade":         "9",
		"subject":       "user_content",
		"topic":         "biology",
		"filename":      "cells.pdf",
		"chunk_index":   0,
		"total_chunks":  3,
		"processing_id": "proc1",
		"session_id":    "sess1",
	}
	for key, want := range expects {
		if md[key] != want {
			t.Errorf("metadata '%s': expected '%v', got '%v'", key, want, md[key])
		}
	}
	if md["text"] == "" || md["content"] == "" {
		t.Error("expected text and content metadata to be set")
	}
	if _, ok := md["upload_timestamp"]; !ok {
		t.Error("expected upload_timestamp metadata to be set")
	}
}

func TestRecordMetadataTruncatesContent(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, newFakeStore())

	text := strings.Repeat("b", 700)
	md := p.recordMetadata(testRequest(), text, 2, 7)

	if md["text"] != text {
		t.Error("expected full chunk text in text metadata")
	}
	content, ok := md["content"].(string)
	if !ok || len(content) != maxMetadataTextLength {
		t.Errorf("expected content truncated to %d chars, got %d", maxMetadataTextLength, len(content))
	}
}

func TestRecordMetadataKeepsSubject(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, newFakeStore())

	req := testRequest()
	req.Meta.Subject = "mathematics"
	md := p.recordMetadata(req, "some chunk", 0, 1)

	if md["subject"] != "mathematics" {
		t.Errorf("expected subject 'mathematics', got '%v'", md["subject"])
	}
}

func TestProcessTextNoChunks(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, newFakeStore())

	_, err := p.ProcessText(context.Background(), testRequest(), "too short")
	if !errors.Is(err, ErrNoChunks) {
		t.Errorf("expected ErrNoChunks, got %v", err)
	}
}

func TestProcessTextEmbedError(t *testing.T) {
	embedErr := errors.New("embedding backend down")
	p := NewPipeline(&fakeEmbedder{err: embedErr}, newFakeStore(), WithSplitter(&chunk.Splitter{Size: 60}))

	_, err := p.ProcessText(context.Background(), testRequest(), makeText(3))
	if !errors.Is(err, embedErr) {
		t.Errorf("expected embed error, got %v", err)
	}
}

func TestProcessTextRetriesTransientFailure(t *testing.T) {
	fastRetries(t)

	store := newFakeStore()
	store.failFirst = 2
	p := NewPipeline(&fakeEmbedder{}, store, WithSplitter(&chunk.Splitter{Size: 60}))

	res, err := p.ProcessText(context.Background(), testRequest(), makeText(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UploadedCount != 5 || res.FailedCount != 0 {
		t.Errorf("expected 5 uploaded and 0 failed, got %d and %d", res.UploadedCount, res.FailedCount)
	}
	if store.calls != 3 {
		t.Errorf("expected 3 upsert attempts, got %d", store.calls)
	}
}

func TestProcessTextAcceptsPartialUpload(t *testing.T) {
	fastRetries(t)

	store := newFakeStore()
	store.failFrom = 80
	p := NewPipeline(&fakeEmbedder{}, store, WithSplitter(&chunk.Splitter{Size: 60}))

	res, err := p.ProcessText(context.Background(), testRequest(), makeText(120))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("expected partial upload to be accepted")
	}
	if res.UploadedCount != 80 || res.FailedCount != 40 {
		t.Errorf("expected 80 uploaded and 40 failed, got %d and %d", res.UploadedCount, res.FailedCount)
	}
	if !strings.Contains(res.Message, "partially") {
		t.Errorf("expected partial message, got '%s'", res.Message)
	}
}

func TestProcessTextUploadFailure(t *testing.T) {
	fastRetries(t)

	store := newFakeStore()
	store.failFrom = 0
	p := NewPipeline(&fakeEmbedder{}, store, WithSplitter(&chunk.Splitter{Size: 60}))

	res, err := p.ProcessText(context.Background(), testRequest(), makeText(5))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if res == nil || res.Success {
		t.Error("expected unsuccessful result alongside the error")
	}
}

func TestUpsertTextsBypassesExtraction(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(&fakeEmbedder{}, store)

	texts := []string{"first test chunk contents", "second test chunk contents"}
	uploaded, failed, err := p.UpsertTexts(context.Background(), testRequest(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uploaded != 2 || failed != 0 {
		t.Errorf("expected 2 uploaded and 0 failed, got %d and %d", uploaded, failed)
	}
}

func TestRecordMetadataTruncatesOnRuneBoundary(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, newFakeStore())

	// 1 + 299*2 bytes, so the 500-byte cut lands inside a rune
	text := "a" + strings.Repeat("ğ", 299)
	md := p.recordMetadata(testRequest(), text, 0, 1)

	content, ok := md["content"].(string)
	if !ok {
		t.Fatal("expected content metadata to be a string")
	}
	if !utf8.ValidString(content) {
		t.Errorf("content contains invalid UTF-8: tail %q", content[len(content)-4:])
	}
	if len(content) > maxMetadataTextLength {
		t.Errorf("content exceeds %d bytes: %d", maxMetadataTextLength, len(content))
	}
}
