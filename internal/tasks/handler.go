package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odev-ai/pdfproc/internal/extract"
	"github.com/odev-ai/pdfproc/internal/ingest"
	"github.com/odev-ai/pdfproc/internal/provider"
	"github.com/odev-ai/pdfproc/internal/transport"
	"github.com/odev-ai/pdfproc/internal/vector"
)

type IngestTaskHandler struct {
	transport transport.Transport
	embedder  provider.Embedder
	store     vector.Store
}

func NewIngestTaskHandler(t transport.Transport, embedder provider.Embedder, store vector.Store) *IngestTaskHandler {
	return &IngestTaskHandler{
		transport: t,
		embedder:  embedder,
		store:     store,
	}
}

func (h *IngestTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ingestTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v (%w)", err, asynq.SkipRetry)
	}
	slog.Info("received ingest task", "id", p.ProcessingID, "file", p.Meta.Filename, "user", p.Meta.UserID, "mode", p.Mode)

	ms, err := h.transport.GetMessageStream(p.ProcessingID)
	if err != nil {
		slog.Error("failed to initialize message stream", "err", err)
		return fmt.Errorf("failed to initialize message stream: %v (%w)", err, asynq.SkipRetry)
	}

	trace := &transport.ProcessingTrace{
		ID:        p.ProcessingID,
		Status:    transport.TraceStatusRunning,
		Filename:  p.Meta.Filename,
		UserID:    p.Meta.UserID,
		StartedAt: time.Now().Unix(),
	}
	h.setTrace(ctx, trace)

	data, err := base64.StdEncoding.DecodeString(p.Content)
	if err != nil {
		h.fail(ctx, ms, trace, "invalid_document", "file content could not be decoded")
		return fmt.Errorf("failed to decode file content: %v (%w)", err, asynq.SkipRetry)
	}

	req := &ingest.Request{
		ProcessingID: p.ProcessingID,
		SessionID:    p.SessionID,
		Mode:         p.Mode,
		Meta:         p.Meta,
		Data:         data,
	}

	// progress callbacks may fire from concurrent upload batches
	var msgID atomic.Int64
	pipeline := ingest.NewPipeline(h.embedder, h.store, ingest.WithProgress(func(msg string) {
		err := ms.Send(ctx, transport.MessageStreamPayload{
			ID:      int(msgID.Add(1)),
			Status:  "OK",
			Type:    transport.MessageTypeProgress,
			Content: msg,
		})
		if err != nil {
			slog.Warn("failed to write progress message to stream", "id", p.ProcessingID)
		}
	}))

	res, err := pipeline.Process(ctx, req)
	if err != nil {
		reason, retriable := classify(err)
		report := &transport.IngestReport{
			Message: err.Error(),
		}
		applyResultCounts(trace, report, res)
		h.failReport(ctx, ms, trace, reason, report)

		if !retriable {
			return fmt.Errorf("ingest failed: %v (%w)", err, asynq.SkipRetry)
		}
		return err
	}

	trace.Status = transport.TraceStatusCompleted
	trace.Message = res.Message
	trace.ChunkCount = len(res.Chunks)
	trace.UploadedCount = res.UploadedCount
	trace.FailedCount = res.FailedCount
	trace.CompletedAt = time.Now().Unix()
	h.setTrace(ctx, trace)

	report := &transport.IngestReport{
		Success:             res.Success,
		Message:             res.Message,
		SessionID:           p.SessionID,
		ExtractedTextLength: res.ExtractedTextLength,
		ChunkCount:          len(res.Chunks),
		UploadedCount:       res.UploadedCount,
		FailedCount:         res.FailedCount,
	}
	if p.Mode == ingest.ModeCourse {
		report.Chunks = res.Chunks
	}

	err = ms.Send(ctx, transport.MessageStreamPayload{
		Status: "DONE",
		Type:   transport.MessageTypeReport,
		Report: report,
	})
	if err != nil {
		slog.Warn("failed to write DONE message to stream", "id", p.ProcessingID)
	}

	return nil
}

func (h *IngestTaskHandler) fail(ctx context.Context, ms transport.MessageStream, trace *transport.ProcessingTrace, reason, msg string) {
	h.failReport(ctx, ms, trace, reason, &transport.IngestReport{Message: msg})
}

func (h *IngestTaskHandler) failReport(ctx context.Context, ms transport.MessageStream, trace *transport.ProcessingTrace, reason string, report *transport.IngestReport) {
	report.Reason = reason

	err := ms.Send(ctx, transport.MessageStreamPayload{
		Status:  "ERR",
		Type:    transport.MessageTypeReport,
		Content: report.Message,
		Report:  report,
	})
	if err != nil {
		slog.Warn("failed to write ERR message to stream", "id", trace.ID)
	}

	trace.Status = transport.TraceStatusFailed
	trace.Message = report.Message
	trace.CompletedAt = time.Now().Unix()
	h.setTrace(ctx, trace)
}

// applyResultCounts copies pipeline counters onto the trace and the
// report so a failed run still exposes how far it got.
func applyResultCounts(trace *transport.ProcessingTrace, report *transport.IngestReport, res *ingest.Result) {
	if res == nil {
		return
	}
	report.ExtractedTextLength = res.ExtractedTextLength
	report.ChunkCount = len(res.Chunks)
	report.UploadedCount = res.UploadedCount
	report.FailedCount = res.FailedCount

	trace.ChunkCount = len(res.Chunks)
	trace.UploadedCount = res.UploadedCount
	trace.FailedCount = res.FailedCount
}

func (h *IngestTaskHandler) setTrace(ctx context.Context, trace *transport.ProcessingTrace) {
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", trace.ID, "err", err)
	}
}

// classify maps a pipeline error to a report reason and whether the
// task is worth retrying.
func classify(err error) (reason string, retriable bool) {
	switch {
	case errors.Is(err, extract.ErrNotPDF):
		return "invalid_document", false
	case errors.Is(err, extract.ErrNoText), errors.Is(err, extract.ErrTooShort), errors.Is(err, ingest.ErrNoChunks):
		return "no_text", false
	case errors.Is(err, ingest.ErrUploadFailed):
		return "upload_failed", true
	default:
		return "internal", true
	}
}
