package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/vector"
	"github.com/lexgraph/backend/pkg/logger"
)

type VectorRetriever struct {
	oracle   llm.Completer
	embedder llm.Embedder
	store    vector.Store
	topK     int
}

func NewVectorRetriever(oracle llm.Completer, embedder llm.Embedder, store vector.Store, topK int) *VectorRetriever {
	if topK <= 0 {
		topK = 5
	}
	return &VectorRetriever{oracle: oracle, embedder: embedder, store: store, topK: topK}
}

// Retrieve rewrites question in Czech, embeds it and returns the closest passages.
func (v *VectorRetriever) Retrieve(ctx context.Context, question string) ([]vector.Hit, error) {
	query := v.rewrite(ctx, question)

	embedding, err := v.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := v.store.Search(ctx, embedding, v.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}

	metrics.VectorResultsCount.Observe(float64(len(hits)))
	logger.Debug("Vector retrieval completed", zap.String("query", query), zap.Int("hits", len(hits)))
	return hits, nil
}

// rewrite falls back to the original question when translation fails.
func (v *VectorRetriever) rewrite(ctx context.Context, question string) string {
	resp, err := v.oracle.Complete(ctx, llm.CompletionRequest{
		UserPrompt: fill(rewriteTemplate, question),
		Operation:  "rewrite",
		MaxTokens:  512,
	})
	if err != nil {
		logger.Warn("Query rewrite failed, using original question", zap.Error(err))
		return question
	}
	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// Passages returns the passage texts of hits, in rank order.
func Passages(hits []vector.Hit) []string {
	docs := make([]string, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.Text)
	}
	return docs
}
