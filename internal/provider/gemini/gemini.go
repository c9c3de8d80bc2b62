package gemini

import (
	"context"
	"os"

	"google.golang.org/genai"
)

const EmbedModel = "gemini-embedding-exp-03-07"

type GeminiProvider struct {
	client     *genai.Client
	vectorDims *int32
}

func New() (*GeminiProvider, error) {
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	p := &GeminiProvider{
		client:     c,
		vectorDims: new(int32),
	}
	*(p.vectorDims) = 1536
	return p, nil
}

func (p GeminiProvider) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	contents := genai.Text(q)

	config := &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_QUERY",
		OutputDimensionality: p.vectorDims,
	}

	res, err := p.client.Models.EmbedContent(ctx, EmbedModel, contents, config)
	if err != nil {
		return nil, err
	}

	return res.Embeddings[0].Values, nil
}

func (p GeminiProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: p.vectorDims,
	}

	res, err := p.client.Models.EmbedContent(ctx, EmbedModel, contents, config)
	if err != nil {
		return nil, err
	}

	values := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		values = append(values, e.Values)
	}
	return values, nil
}

func (p GeminiProvider) GetDimensions() uint {
	return uint(*p.vectorDims)
}
