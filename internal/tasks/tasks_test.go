package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/odev-ai/pdfproc/internal/api"
	"github.com/odev-ai/pdfproc/internal/extract"
	"github.com/odev-ai/pdfproc/internal/ingest"
	"github.com/odev-ai/pdfproc/internal/transport"
)

func TestNewIngestTaskPayload(t *testing.T) {
	meta := api.DocumentMeta{
		UserID:   "user1",
		Grade:    "9",
		Topic:    "biology",
		Filename: "cells.pdf",
	}

	task, err := NewIngestTask("proc1", "sess1", ingest.ModeCourse, meta, "aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TypeIngest {
		t.Errorf("expected task type '%s', got '%s'", TypeIngest, task.Type())
	}

	var p ingestTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if p.ProcessingID != "proc1" || p.SessionID != "sess1" {
		t.Errorf("unexpected ids: '%s', '%s'", p.ProcessingID, p.SessionID)
	}
	if p.Mode != ingest.ModeCourse {
		t.Errorf("expected mode '%s', got '%s'", ingest.ModeCourse, p.Mode)
	}
	if p.Meta != meta {
		t.Errorf("unexpected meta: %+v", p.Meta)
	}
	if p.Content != "aGVsbG8=" {
		t.Errorf("unexpected content '%s'", p.Content)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		reason    string
		retriable bool
	}{
		{extract.ErrNotPDF, "invalid_document", false},
		{extract.ErrNoText, "no_text", false},
		{extract.ErrTooShort, "no_text", false},
		{ingest.ErrNoChunks, "no_text", false},
		{fmt.Errorf("wrapped: %w", ingest.ErrUploadFailed), "upload_failed", true},
		{errors.New("something else"), "internal", true},
	}

	for _, tt := range tests {
		reason, retriable := classify(tt.err)
		if reason != tt.reason {
			t.Errorf("classify(%v): expected reason '%s', got '%s'", tt.err, tt.reason, reason)
		}
		if retriable != tt.retriable {
			t.Errorf("classify(%v): expected retriable %v, got %v", tt.err, tt.retriable, retriable)
		}
	}
}

func TestApplyResultCountsOnFailedRun(t *testing.T) {
	trace := &transport.ProcessingTrace{ID: "proc1"}
	report := &transport.IngestReport{Message: "upload failed"}
	res := &ingest.Result{
		ExtractedTextLength: 4200,
		Chunks:              []string{"c1", "c2", "c3", "c4"},
		UploadedCount:       1,
		FailedCount:         3,
	}

	applyResultCounts(trace, report, res)

	if trace.ChunkCount != 4 {
		t.Errorf("expected trace chunk count 4, got %d", trace.ChunkCount)
	}
	if trace.UploadedCount != 1 || trace.FailedCount != 3 {
		t.Errorf("unexpected trace counts: %d uploaded, %d failed", trace.UploadedCount, trace.FailedCount)
	}
	if report.ChunkCount != 4 || report.ExtractedTextLength != 4200 {
		t.Errorf("unexpected report: %d chunks, %d text length", report.ChunkCount, report.ExtractedTextLength)
	}

	// an extraction failure has no result to copy
	empty := &transport.ProcessingTrace{ID: "proc2"}
	applyResultCounts(empty, &transport.IngestReport{}, nil)
	if empty.ChunkCount != 0 {
		t.Errorf("expected untouched trace, got chunk count %d", empty.ChunkCount)
	}
}
