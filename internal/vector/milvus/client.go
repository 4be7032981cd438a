package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
)

const (
	fieldChunkID   = "chunk_id"
	fieldEmbedding = "embedding"
	fieldName      = "name"
	fieldHeader    = "header"
	fieldText      = "text"
)

var outputFields = []string{fieldChunkID, fieldName, fieldHeader, fieldText}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

var _ vector.Store = (*Client)(nil)

func NewClient(cfg config.MilvusConfig, vectorDim int) (*Client, error) {
	c, err := client.NewClient(context.Background(), client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("collection", cfg.CollectionName),
	)

	return &Client{
		client:         c,
		collectionName: cfg.CollectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return m.client.LoadCollection(ctx, m.collectionName, false)
	}

	if err := m.client.CreateCollection(ctx, Schema(m.collectionName, m.vectorDim), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

// Schema describes the chunk collection. Varchar limits are in bytes, so text leaves
// room for 1500 characters of Czech with diacritics.
func Schema(name string, dim int) *entity.Schema {
	varchar := func(field string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       field,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": fmt.Sprintf("%d", maxLen)},
		}
	}

	pk := varchar(fieldChunkID, 64)
	pk.PrimaryKey = true

	return &entity.Schema{
		CollectionName: name,
		Description:    "Czech law chunk embeddings",
		Fields: []*entity.Field{
			pk,
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
			},
			varchar(fieldName, 512),
			varchar(fieldHeader, 1024),
			varchar(fieldText, 8192),
		},
	}
}

func (m *Client) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := vector.CheckDimensions(docs, m.vectorDim); err != nil {
		return err
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	names := make([]string, len(docs))
	headers := make([]string, len(docs))
	texts := make([]string, len(docs))

	for i, d := range docs {
		ids[i] = d.ChunkID
		embeddings[i] = d.Embedding
		names[i] = d.Name
		headers[i] = d.Header
		texts[i] = d.Text
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, m.vectorDim, embeddings),
		entity.NewColumnVarChar(fieldName, names),
		entity.NewColumnVarChar(fieldHeader, headers),
		entity.NewColumnVarChar(fieldText, texts),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks upserted into milvus", zap.Int("count", len(docs)))
	return nil
}

func (m *Client) Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]vector.Hit, 0, topK)
	for _, sr := range results {
		for i := 0; i < sr.ResultCount; i++ {
			hits = append(hits, vector.Hit{
				ChunkID: stringAt(sr.Fields.GetColumn(fieldChunkID), i),
				Name:    stringAt(sr.Fields.GetColumn(fieldName), i),
				Header:  stringAt(sr.Fields.GetColumn(fieldHeader), i),
				Text:    stringAt(sr.Fields.GetColumn(fieldText), i),
				Score:   sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed", zap.Int("topK", topK), zap.Int("results", len(hits)))
	return hits, nil
}

func stringAt(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}
