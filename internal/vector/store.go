package vector

import (
	"context"
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Document is one indexed chunk. The embedding is computed over Header + " " + Text.
type Document struct {
	ChunkID   string
	Name      string
	Header    string
	Text      string
	Embedding []float32
}

type Hit struct {
	ChunkID string
	Name    string
	Header  string
	Text    string
	Score   float32
}

// Store is implemented by the qdrant and milvus packages.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error)
	Close() error
}

// CheckDimensions fails if any document embedding is not dim long.
func CheckDimensions(docs []Document, dim int) error {
	for _, d := range docs {
		if len(d.Embedding) != dim {
			return fmt.Errorf("%w: chunk %s has %d, collection has %d", ErrDimensionMismatch, d.ChunkID, len(d.Embedding), dim)
		}
	}
	return nil
}
