package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/odev-ai/pdfproc/internal/provider/gemini"
	"github.com/odev-ai/pdfproc/internal/provider/openai"
)

var (
	ErrInvalidEmbedderType      = errors.New("no embedding provider found for given type")
	ErrFailedEmbedderInitialize = errors.New("failed to initialise embedding provider")
)

const (
	EmbedderTypeOpenAI = iota
	EmbedderTypeGemini
)

var embedderTypeMap = map[string]EmbedderType{
	"openai": EmbedderTypeOpenAI,
	"gemini": EmbedderTypeGemini,
}

type EmbedderType int

// Embedder produces fixed-length vectors for chunk texts and queries.
type Embedder interface {
	EmbedQuery(ctx context.Context, q string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	GetDimensions() uint
}

func NewEmbedder(name string) (Embedder, error) {
	embedderType, ok := embedderTypeMap[name]
	if !ok {
		return nil, ErrInvalidEmbedderType
	}

	switch embedderType {
	case EmbedderTypeOpenAI:
		return openai.New(), nil
	case EmbedderTypeGemini:
		p, err := gemini.New()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedEmbedderInitialize, err)
		}
		return p, nil
	default:
		return nil, ErrInvalidEmbedderType
	}
}
