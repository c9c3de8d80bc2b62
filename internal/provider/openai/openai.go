package openai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
)

const (
	// EmbedModel must match the dimensionality of the target index.
	EmbedModel = "text-embedding-3-small"

	// maxBatchItems stays below the API limit of 2048 inputs per call.
	maxBatchItems = 1000

	// maxInputLength is the rough character budget per input before the
	// token limit of the embedding model is at risk.
	maxInputLength = 8000

	maxRetries = 3
)

type OpenAIProvider struct {
	client     *openai.Client
	vectorDims int
}

func New() *OpenAIProvider {
	c := openai.NewClient(os.Getenv("OPENAI_API_KEY"))
	return &OpenAIProvider{
		client:     c,
		vectorDims: 1536,
	}
}

func (p OpenAIProvider) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	vals, err := p.requestEmbeddings(ctx, []string{truncate(q)})
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

// EmbedTexts embeds texts in order, splitting them into batch API calls
// of at most maxBatchItems inputs. Failed calls are retried with an
// increasing delay before the whole operation is abandoned.
func (p OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxBatchItems {
		end := min(start+maxBatchItems, len(texts))

		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, truncate(t))
		}

		var vals [][]float32
		var err error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			vals, err = p.requestEmbeddings(ctx, batch)
			if err == nil {
				break
			}

			slog.Warn("embedding batch failed", "attempt", attempt, "size", len(batch), "err", err)
			if attempt < maxRetries {
				select {
				case <-time.After(time.Duration(attempt) * 2 * time.Second):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch of %d texts: %w", len(batch), err)
		}

		all = append(all, vals...)
	}

	return all, nil
}

func (p OpenAIProvider) GetDimensions() uint {
	return uint(p.vectorDims)
}

func (p OpenAIProvider) requestEmbeddings(ctx context.Context, input []string) ([][]float32, error) {
	openaiReq := &openai.EmbeddingRequestStrings{
		Input:          input,
		Model:          EmbedModel,
		EncodingFormat: "float",
		Dimensions:     p.vectorDims,
	}

	res, err := p.client.CreateEmbeddings(ctx, openaiReq)
	if err != nil {
		return nil, err
	}

	if len(res.Data) != len(input) {
		return nil, fmt.Errorf("embedding count mismatch: requested %d, received %d", len(input), len(res.Data))
	}

	vals := make([][]float32, len(res.Data))
	for _, e := range res.Data {
		vals[e.Index] = e.Embedding
	}
	return vals, nil
}

func truncate(text string) string {
	if len(text) <= maxInputLength {
		return text
	}
	slog.Warn("text truncated for embedding", "length", len(text))

	cut := maxInputLength
	// back up to a rune boundary so the API never sees invalid UTF-8
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
