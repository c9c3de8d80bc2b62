// Copyright 2025 Alan Matykiewicz
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/odev-ai/pdfproc/internal/api"
)

var (
	ErrInvalidStoreType      = errors.New("no vector store found for given type")
	ErrFailedStoreInitialize = errors.New("failed to initialise vector store")
)

const (
	StoreTypePinecone = iota
	StoreTypeQdrant
)

var storeTypeMap = map[string]StoreType{
	"pinecone": StoreTypePinecone,
	"qdrant":   StoreTypeQdrant,
}

type StoreType int

// Store is the hosted index the ingestion pipeline writes chunk
// vectors to.
type Store interface {
	Upsert(ctx context.Context, records []*Record) error

	Query(ctx context.Context, params *QueryParams) ([]*api.ScoredChunk, error)

	Stats(ctx context.Context) (*IndexStats, error)

	Close() error
}

type Config struct {
	Provider string

	PineconeAPIKey string
	PineconeIndex  string

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	Dimensions uint
}

func NewStore(conf Config) (Store, error) {
	storeType, ok := storeTypeMap[conf.Provider]
	if !ok {
		return nil, ErrInvalidStoreType
	}

	switch storeType {
	case StoreTypePinecone:
		store, err := NewPineconeStore(conf.PineconeAPIKey, conf.PineconeIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedStoreInitialize, err)
		}
		return store, nil

	case StoreTypeQdrant:
		store, err := NewQdrantStore(conf.QdrantHost, conf.QdrantPort, conf.QdrantCollection, conf.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedStoreInitialize, err)
		}
		return store, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// Record is one embedded chunk with its caller metadata.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type IndexStats struct {
	Dimension    uint
	TotalVectors uint64
	Fullness     float64
}

type MetadataMatch struct {
	Key   string
	Value string
}

type QueryParams struct {
	vector       []float32
	limit        uint
	withMetadata bool
	filters      []*MetadataMatch
}

type QueryParamsOption func(*QueryParams)

func NewQueryParams(vector []float32, opts ...QueryParamsOption) *QueryParams {
	qp := &QueryParams{
		vector:       vector,
		withMetadata: false,
		limit:        0,
		filters:      make([]*MetadataMatch, 0),
	}

	for _, opt := range opts {
		opt(qp)
	}
	return qp
}

func WithMetadata(w bool) QueryParamsOption {
	return func(qp *QueryParams) {
		qp.withMetadata = w
	}
}

func WithLimit(limit uint) QueryParamsOption {
	return func(qp *QueryParams) {
		qp.limit = limit
	}
}

func WithFilter(filter *MetadataMatch) QueryParamsOption {
	return func(qp *QueryParams) {
		qp.filters = append(qp.filters, filter)
	}
}
