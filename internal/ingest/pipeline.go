// Package ingest runs the document processing pipeline: extract the
// uploaded PDF's text, split it into chunks, embed the chunks and
// upsert the vectors into the configured index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/odev-ai/pdfproc/internal/api"
	"github.com/odev-ai/pdfproc/internal/chunk"
	"github.com/odev-ai/pdfproc/internal/extract"
	"github.com/odev-ai/pdfproc/internal/provider"
	"github.com/odev-ai/pdfproc/internal/vector"
)

const (
	// BatchSize is the number of vectors sent per upsert call.
	BatchSize = 100

	// Documents above largeDocChunks chunks use smaller batches and
	// more retries, which has proven more reliable for bulk uploads.
	largeDocChunks        = 100
	conservativeBatchSize = 20

	maxUpsertRetries      = 3
	largeDocUpsertRetries = 5

	// concurrent upsert batches in flight
	upsertParallelism = 4

	// metadata text fields are truncated to keep records small
	maxMetadataTextLength = 500
)

// retryBaseDelay scales the backoff between upsert attempts.
var retryBaseDelay = 2 * time.Second

var (
	ErrNoChunks          = errors.New("document produced no chunks")
	ErrEmbeddingMismatch = errors.New("embedding count does not match chunk count")
	ErrUploadFailed      = errors.New("failed to upload chunks to vector store")
)

const (
	ModeCourse = "course"
	ModeChat   = "chat"
)

// Request describes one processing run.
type Request struct {
	ProcessingID string
	SessionID    string
	Mode         string
	Meta         api.DocumentMeta
	Data         []byte
}

// Result reports what a completed run produced. Success with a
// non-zero FailedCount means a partial upload was accepted.
type Result struct {
	Success             bool
	Message             string
	ExtractedTextLength int
	Chunks              []string
	UploadedCount       int
	FailedCount         int
}

type Pipeline struct {
	splitter *chunk.Splitter
	embedder provider.Embedder
	store    vector.Store
	progress func(msg string)
}

type PipelineOption func(*Pipeline)

func NewPipeline(embedder provider.Embedder, store vector.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		splitter: chunk.NewSplitter(),
		embedder: embedder,
		store:    store,
		progress: func(string) {},
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithSplitter(s *chunk.Splitter) PipelineOption {
	return func(p *Pipeline) {
		p.splitter = s
	}
}

// WithProgress registers a callback invoked with human-readable stage
// updates during a run.
func WithProgress(f func(msg string)) PipelineOption {
	return func(p *Pipeline) {
		p.progress = f
	}
}

func (p *Pipeline) Process(ctx context.Context, req *Request) (*Result, error) {
	p.progress("extracting text")
	text, err := extract.Text(req.Data)
	if err != nil {
		return nil, err
	}
	slog.Info("text extracted", "id", req.ProcessingID, "length", len(text))

	return p.ProcessText(ctx, req, text)
}

// ProcessText runs the pipeline stages after extraction on already
// extracted, cleaned text.
func (p *Pipeline) ProcessText(ctx context.Context, req *Request, text string) (*Result, error) {
	p.progress("splitting text into chunks")
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	slog.Info("text split", "id", req.ProcessingID, "chunks", len(chunks))

	p.progress(fmt.Sprintf("embedding %d chunks", len(chunks)))
	embeddings, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings", ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	p.progress(fmt.Sprintf("uploading %d vectors", len(chunks)))
	uploaded, failed := p.upsertAll(ctx, req, chunks, embeddings)

	res := &Result{
		ExtractedTextLength: len(text),
		Chunks:              chunks,
		UploadedCount:       uploaded,
		FailedCount:         failed,
	}

	switch {
	case failed == 0:
		res.Success = true
		res.Message = fmt.Sprintf("document processed, %d chunks uploaded", uploaded)

	case uploaded*2 >= len(chunks):
		// accept partial uploads covering at least half the document
		res.Success = true
		res.Message = fmt.Sprintf("document partially processed, %d/%d chunks uploaded", uploaded, len(chunks))
		slog.Warn("partial upload accepted", "id", req.ProcessingID, "uploaded", uploaded, "failed", failed)

	default:
		res.Message = fmt.Sprintf("upload failed, only %d/%d chunks uploaded", uploaded, len(chunks))
		return res, fmt.Errorf("%w: %d/%d uploaded", ErrUploadFailed, uploaded, len(chunks))
	}

	return res, nil
}

// Search embeds query and runs a filtered similarity search against
// the index.
func (p *Pipeline) Search(ctx context.Context, query string, filters map[string]string, topK uint) ([]*api.ScoredChunk, error) {
	qvec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	opts := []vector.QueryParamsOption{
		vector.WithMetadata(true),
		vector.WithLimit(topK),
	}
	for k, v := range filters {
		if v != "" {
			opts = append(opts, vector.WithFilter(&vector.MetadataMatch{Key: k, Value: v}))
		}
	}

	return p.store.Query(ctx, vector.NewQueryParams(qvec, opts...))
}

// UpsertTexts pushes pre-chunked texts through the embed and upload
// stages, bypassing extraction. Used by the debug upload endpoint.
func (p *Pipeline) UpsertTexts(ctx context.Context, req *Request, texts []string) (uploaded, failed int, err error) {
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, 0, ErrEmbeddingMismatch
	}

	uploaded, failed = p.upsertAll(ctx, req, texts, embeddings)
	return uploaded, failed, nil
}

// upsertAll uploads all chunk vectors in batches, retrying failed
// batches with capped backoff. It returns the number of vectors
// uploaded and the number abandoned after retries.
func (p *Pipeline) upsertAll(ctx context.Context, req *Request, chunks []string, embeddings [][]float32) (int, int) {
	batchSize := BatchSize
	retries := maxUpsertRetries
	if len(chunks) > largeDocChunks {
		batchSize = conservativeBatchSize
		retries = largeDocUpsertRetries
		slog.Info("large document, using conservative upload batches", "id", req.ProcessingID, "chunks", len(chunks))
	}

	var uploaded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertParallelism)

	totalBatches := (len(chunks) + batchSize - 1) / batchSize
	for num := range totalBatches {
		start := num * batchSize
		end := min(start+batchSize, len(chunks))

		records := make([]*vector.Record, 0, end-start)
		for i := start; i < end; i++ {
			records = append(records, &vector.Record{
				ID:       fmt.Sprintf("%s_chunk_%d", req.ProcessingID, i),
				Values:   embeddings[i],
				Metadata: p.recordMetadata(req, chunks[i], i, len(chunks)),
			})
		}

		g.Go(func() error {
			if err := p.upsertBatch(gctx, records, num, retries); err != nil {
				slog.Error("batch abandoned", "id", req.ProcessingID, "batch", num, "err", err)
				failed.Add(int64(len(records)))
				return nil
			}
			uploaded.Add(int64(len(records)))

			if totalBatches > 5 {
				p.progress(fmt.Sprintf("upload progress: %d/%d vectors", uploaded.Load(), len(chunks)))
			}
			return nil
		})
	}
	g.Wait()

	return int(uploaded.Load()), int(failed.Load())
}

func (p *Pipeline) upsertBatch(ctx context.Context, records []*vector.Record, num int, retries int) error {
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		err = p.store.Upsert(ctx, records)
		if err == nil {
			return nil
		}

		slog.Warn("batch upsert failed", "batch", num, "attempt", attempt, "err", err)
		if attempt < retries {
			wait := min(time.Duration(attempt)*retryBaseDelay, 5*retryBaseDelay)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (p *Pipeline) recordMetadata(req *Request, text string, index, total int) map[string]any {
	content := text
	if len(content) > maxMetadataTextLength {
		cut := maxMetadataTextLength
		// back up to a rune boundary so the stored value stays valid UTF-8
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	subject := req.Meta.Subject
	if subject == "" {
		subject = "user_content"
	}

	return map[string]any{
		"source":           "user_upload",
		"user_id":          req.Meta.UserID,
		"grade":            req.Meta.Grade,
		"subject":          subject,
		"topic":            req.Meta.Topic,
		"filename":         req.Meta.Filename,
		"text":             text,
		"content":          content,
		"chunk_index":      index,
		"total_chunks":     total,
		"processing_id":    req.ProcessingID,
		"session_id":       req.SessionID,
		"upload_timestamp": time.Now().Unix(),
	}
}
