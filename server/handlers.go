package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/odev-ai/pdfproc/internal/api"
	"github.com/odev-ai/pdfproc/internal/extract"
	"github.com/odev-ai/pdfproc/internal/ingest"
	"github.com/odev-ai/pdfproc/internal/tasks"
	"github.com/odev-ai/pdfproc/internal/transport"
)

// processTimeout bounds how long an upload request waits for the
// worker's report. Matches the ingest task timeout.
const processTimeout = 10 * time.Minute

const defaultSearchLimit = 5

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "healthy",
		Message: "PDF processing service is running",
	})
}

func (s *Server) handleProcessPDF(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "no file provided")
		return
	}

	meta := api.DocumentMeta{
		UserID:   c.PostForm("user_id"),
		Grade:    c.PostForm("grade"),
		Subject:  c.PostForm("subject"),
		Topic:    c.PostForm("topic"),
		Filename: header.Filename,
	}

	if meta.UserID == "" || meta.Grade == "" || meta.Topic == "" {
		errorResponse(c, http.StatusBadRequest, "user_id, grade and topic are required")
		return
	}

	mode := c.DefaultPostForm("mode", ingest.ModeCourse)
	if mode != ingest.ModeCourse && mode != ingest.ModeChat {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
		return
	}

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		errorResponse(c, http.StatusBadRequest, "only PDF files are accepted")
		return
	}
	if header.Size > MaxUploadSize {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("file exceeds the %dMB limit", MaxUploadSize>>20))
		return
	}

	file, err := header.Open()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	if len(data) > MaxUploadSize {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("file exceeds the %dMB limit", MaxUploadSize>>20))
		return
	}
	if !extract.IsPDF(data) {
		errorResponse(c, http.StatusBadRequest, "file does not appear to be a valid PDF")
		return
	}

	processingID := uuid.NewString()
	sessionID := fmt.Sprintf("session_%d_%s", time.Now().Unix(), processingID[:8])
	slog.Info("received processing request", "id", processingID,
		"file", meta.Filename, "user", meta.UserID, "size", len(data), "mode", mode)

	ctx, cancel := context.WithTimeout(c.Request.Context(), processTimeout)
	defer cancel()

	trace := &transport.ProcessingTrace{
		ID:        processingID,
		Status:    transport.TraceStatusPending,
		Filename:  meta.Filename,
		UserID:    meta.UserID,
		StartedAt: time.Now().Unix(),
	}
	if err := s.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", processingID, "err", err)
	}

	t, err := tasks.NewIngestTask(processingID, sessionID, mode, meta, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		slog.Error(err.Error())
		errorResponse(c, http.StatusInternalServerError, "internal server error")
		return
	}

	info, err := s.asynqClient.EnqueueContext(ctx, t)
	if err != nil {
		slog.Error(err.Error())
		errorResponse(c, http.StatusInternalServerError, "internal server error")
		return
	}
	slog.Info("enqueued task successfully", "id", info.ID)

	stream, err := s.transport.GetMessageStream(processingID)
	if err != nil {
		slog.Error("failed to retrieve stream", "id", processingID)
		errorResponse(c, http.StatusInternalServerError, "internal server error")
		return
	}

	report, err := waitForReport(ctx, processingID, stream)
	if err != nil {
		if report == nil {
			errorResponse(c, http.StatusInternalServerError, "internal server error")
			return
		}
		errorResponse(c, reasonStatusCode(report.Reason), report.Message)
		return
	}
	if report == nil {
		errorResponse(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, api.ProcessResponse{
		Success:             report.Success,
		Message:             report.Message,
		ProcessingID:        processingID,
		SessionID:           sessionID,
		ExtractedTextLength: report.ExtractedTextLength,
		Chunks:              report.Chunks,
	})
}

func (s *Server) handleProcessingStatus(c *gin.Context) {
	id := c.Param("id")

	trace, err := s.transport.GetTrace(c.Request.Context(), id)
	if err != nil {
		if err == transport.ErrTraceNotFound {
			errorResponse(c, http.StatusNotFound, "processing id not found")
			return
		}
		slog.Error("failed to get trace", "id", id, "err", err)
		errorResponse(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, api.StatusResponse{
		ProcessingID:  trace.ID,
		Status:        transport.TraceStatus(trace.Status).String(),
		Message:       trace.Message,
		Filename:      trace.Filename,
		UserID:        trace.UserID,
		ChunkCount:    trace.ChunkCount,
		UploadedCount: trace.UploadedCount,
		FailedCount:   trace.FailedCount,
		StartedAt:     trace.StartedAt,
		CompletedAt:   trace.CompletedAt,
	})
}

func (s *Server) handleDebugEnv(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pinecone_api_key_set": os.Getenv("PINECONE_API_KEY") != "",
		"openai_api_key_set":   os.Getenv("OPENAI_API_KEY") != "",
		"pinecone_index_name":  os.Getenv("PINECONE_INDEX_NAME"),
		"embedding_provider":   s.config.Embedder,
		"vector_provider":      s.config.Vector.Provider,
	})
}

func (s *Server) handleDebugIndex(c *gin.Context) {
	if s.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "vector store not available")
		return
	}

	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("failed to describe index: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":      s.config.Vector.Provider,
		"dimension":     stats.Dimension,
		"total_vectors": stats.TotalVectors,
		"fullness":      stats.Fullness,
	})
}

func (s *Server) handleDebugSearch(c *gin.Context) {
	if s.pipeline == nil {
		errorResponse(c, http.StatusServiceUnavailable, "vector store not available")
		return
	}

	var req api.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		errorResponse(c, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultSearchLimit
	}

	filters := map[string]string{
		"user_id": req.UserID,
		"grade":   req.Grade,
		"subject": req.Subject,
	}

	results, err := s.pipeline.Search(c.Request.Context(), req.Query, filters, req.TopK)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("search failed: %v", err))
		return
	}

	c.JSON(http.StatusOK, api.SearchResponse{
		Query:   req.Query,
		Count:   len(results),
		Results: results,
	})
}

// handleDebugUpload pushes a single test chunk through the embed and
// upsert stages to verify index connectivity end to end.
func (s *Server) handleDebugUpload(c *gin.Context) {
	if s.pipeline == nil {
		errorResponse(c, http.StatusServiceUnavailable, "vector store not available")
		return
	}

	processingID := "debug_" + uuid.NewString()
	req := &ingest.Request{
		ProcessingID: processingID,
		SessionID:    "debug",
		Meta: api.DocumentMeta{
			UserID:   "debug",
			Grade:    "debug",
			Topic:    "connectivity test",
			Filename: "debug.pdf",
		},
	}

	texts := []string{"Bu bir test parçasıdır. Dizin bağlantısını doğrulamak için yüklenir."}
	uploaded, failed, err := s.pipeline.UpsertTexts(c.Request.Context(), req, texts)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("test upload failed: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       failed == 0,
		"processing_id": processingID,
		"uploaded":      uploaded,
		"failed":        failed,
	})
}

func errorResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, api.ErrorResponse{
		Success: false,
		Message: msg,
	})
}

// reasonStatusCode maps a report failure reason to an HTTP status.
// Document problems are the caller's fault, everything else is ours.
func reasonStatusCode(reason string) int {
	switch reason {
	case "invalid_document", "no_text":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
