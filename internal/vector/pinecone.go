package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/odev-ai/pdfproc/internal/api"
	"github.com/odev-ai/pdfproc/internal/http"
)

const (
	ControlPlaneEndpoint = "https://api.pinecone.io"

	// Pinecone authenticates with a dedicated header instead of a
	// bearer token.
	authHeader = "Api-Key"
)

type describeIndexResponse struct {
	Name      string `json:"name"`
	Dimension uint   `json:"dimension"`
	Host      string `json:"host"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

type indexStatsResponse struct {
	Dimension        uint    `json:"dimension"`
	IndexFullness    float64 `json:"indexFullness"`
	TotalVectorCount uint64  `json:"totalVectorCount"`
}

// PineconeStore talks to a hosted Pinecone index over its REST data
// plane. The index host is resolved once through the control plane.
type PineconeStore struct {
	client    http.Client
	indexName string
	dims      uint
}

func NewPineconeStore(apiKey string, indexName string) (*PineconeStore, error) {
	if apiKey == "" {
		apiKey = os.Getenv("PINECONE_API_KEY")
	}

	control := http.NewClient(
		ControlPlaneEndpoint,
		http.WithMaxRetries(3),
		http.WithApiKey(apiKey),
		http.WithAuthHeader(authHeader),
	)

	resp, err := control.Request(context.Background(), http.MethodGet, "/indexes/"+indexName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index '%s': %w", indexName, err)
	}

	var index describeIndexResponse
	if err := decodeInto(resp, &index); err != nil {
		return nil, err
	}
	if index.Host == "" {
		return nil, fmt.Errorf("index '%s' has no data plane host", indexName)
	}

	s := &PineconeStore{
		client: http.NewClient(
			"https://"+index.Host,
			http.WithMaxRetries(3),
			http.WithApiKey(apiKey),
			http.WithAuthHeader(authHeader),
		),
		indexName: indexName,
		dims:      index.Dimension,
	}
	return s, nil
}

func (s PineconeStore) Upsert(ctx context.Context, records []*Record) error {
	vectors := make([]map[string]any, 0, len(records))
	for _, r := range records {
		vectors = append(vectors, map[string]any{
			"id":       r.ID,
			"values":   r.Values,
			"metadata": r.Metadata,
		})
	}

	_, err := s.client.Request(ctx, http.MethodPost, "/vectors/upsert", map[string]any{
		"vectors": vectors,
	})
	return err
}

func (s PineconeStore) Query(ctx context.Context, params *QueryParams) ([]*api.ScoredChunk, error) {
	requestData := map[string]any{
		"vector":          params.vector,
		"includeMetadata": params.withMetadata,
		"includeValues":   false,
	}

	if params.limit > 0 {
		requestData["topK"] = params.limit
	}

	if len(params.filters) > 0 {
		filter := make(map[string]any, len(params.filters))
		for _, f := range params.filters {
			filter[f.Key] = map[string]any{"$eq": f.Value}
		}
		requestData["filter"] = filter
	}

	resp, err := s.client.Request(ctx, http.MethodPost, "/query", requestData)
	if err != nil {
		return nil, err
	}

	var qr queryResponse
	if err := decodeInto(resp, &qr); err != nil {
		return nil, err
	}

	chunks := make([]*api.ScoredChunk, 0, len(qr.Matches))
	for _, m := range qr.Matches {
		metadata := make(map[string]string)
		for k, v := range m.Metadata {
			if textValue, ok := v.(string); ok {
				metadata[k] = textValue
			}
		}

		content := metadata["content"]
		if content == "" {
			content = metadata["text"]
		}

		chunks = append(chunks, &api.ScoredChunk{
			ID:       m.ID,
			Score:    m.Score,
			Content:  content,
			Metadata: metadata,
		})
	}

	return chunks, nil
}

func (s PineconeStore) Stats(ctx context.Context) (*IndexStats, error) {
	resp, err := s.client.Request(ctx, http.MethodPost, "/describe_index_stats", map[string]any{})
	if err != nil {
		return nil, err
	}

	var stats indexStatsResponse
	if err := decodeInto(resp, &stats); err != nil {
		return nil, err
	}

	return &IndexStats{
		Dimension:    stats.Dimension,
		TotalVectors: stats.TotalVectorCount,
		Fullness:     stats.IndexFullness,
	}, nil
}

func (s PineconeStore) Close() error {
	return nil
}

func decodeInto(resp map[string]any, target any) error {
	jsonData, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}
