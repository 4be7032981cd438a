package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/utils"
)

type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// CachedEmbedder serves single-text embeddings from the cache. Cache errors are
// logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	inner llm.Embedder
	cache EmbeddingCache
	ttl   time.Duration
}

var _ llm.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner llm.Embedder, cache EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, ttl: ttl}
}

func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(text)

	cached, ok, err := e.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := e.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, key, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	return embedding, nil
}

// GenerateBatchEmbeddings is used for indexing and bypasses the cache.
func (e *CachedEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.GenerateBatchEmbeddings(ctx, texts)
}
