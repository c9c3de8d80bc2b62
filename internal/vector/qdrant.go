package vector

import (
	"context"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/odev-ai/pdfproc/internal/api"
)

// QdrantStore is the self-hosted alternative to the managed index.
// Chunk record ids are not UUIDs, so they are mapped to deterministic
// name-based UUIDs and the original id is kept in the payload.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dims       uint
	waitUpsert bool
}

func NewQdrantStore(host string, port int, collection string, dims uint) (*QdrantStore, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}

	s := &QdrantStore{
		client:     c,
		collection: collection,
		dims:       dims,
		waitUpsert: true,
	}
	return s, nil
}

func (s QdrantStore) Upsert(ctx context.Context, records []*Record) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload["record_id"] = r.ID

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Values...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &s.waitUpsert,
		Points:         points,
	})

	return err
}

func (s QdrantStore) Query(ctx context.Context, params *QueryParams) ([]*api.ScoredChunk, error) {
	queryPoints := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(params.vector...),
		WithPayload:    qdrant.NewWithPayload(params.withMetadata),
	}

	if params.limit > 0 {
		limit := uint64(params.limit)
		queryPoints.Limit = &limit
	}

	if len(params.filters) > 0 {
		conds := make([]*qdrant.Condition, 0, len(params.filters))
		for _, filter := range params.filters {
			conds = append(conds, qdrant.NewMatch(filter.Key, filter.Value))
		}

		queryPoints.Filter = &qdrant.Filter{
			Must: conds,
		}
	}

	res, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, err
	}

	chunks := make([]*api.ScoredChunk, 0, len(res))
	for _, sp := range res {
		metadata := make(map[string]string)
		for k, v := range sp.Payload {
			if textValue := v.GetStringValue(); textValue != "" {
				metadata[k] = textValue
			}
		}

		id := metadata["record_id"]
		if id == "" {
			id = sp.Id.GetUuid()
		}

		content := metadata["content"]
		if content == "" {
			content = metadata["text"]
		}

		chunks = append(chunks, &api.ScoredChunk{
			ID:       id,
			Score:    sp.Score,
			Content:  content,
			Metadata: metadata,
		})
	}

	return chunks, nil
}

func (s QdrantStore) Stats(ctx context.Context) (*IndexStats, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return nil, err
	}

	return &IndexStats{
		Dimension:    s.dims,
		TotalVectors: count,
	}, nil
}

func (s QdrantStore) Close() error {
	return s.client.Close()
}

func (s QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}
