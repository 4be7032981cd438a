package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/pkg/logger"
)

// GraphQuerier runs a read-only Cypher query and returns flattened records.
type GraphQuerier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

type GraphResult struct {
	Cypher string           `json:"cypher"`
	Rows   []map[string]any `json:"rows"`
}

type GraphRetriever struct {
	oracle llm.Completer
	graph  GraphQuerier
}

func NewGraphRetriever(oracle llm.Completer, graph GraphQuerier) *GraphRetriever {
	return &GraphRetriever{oracle: oracle, graph: graph}
}

// Retrieve generates Cypher for question and runs it. An unanswerable question yields
// an empty result, not an error.
func (g *GraphRetriever) Retrieve(ctx context.Context, question string) (*GraphResult, error) {
	resp, err := g.oracle.Complete(ctx, llm.CompletionRequest{
		UserPrompt: fill(text2CypherTemplate, question),
		Operation:  "text2cypher",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate cypher: %w", err)
	}

	cypher, err := PrepareCypher(resp.Content)
	if err != nil {
		logger.Warn("Rejected generated cypher", zap.String("cypher", resp.Content), zap.Error(err))
		return nil, err
	}
	if cypher == "" {
		logger.Info("Question not answerable from graph")
		metrics.KGResultsCount.Observe(0)
		return &GraphResult{}, nil
	}

	rows, err := g.graph.Query(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to run graph query: %w", err)
	}

	metrics.KGResultsCount.Observe(float64(len(rows)))
	logger.Debug("Graph retrieval completed", zap.String("cypher", cypher), zap.Int("rows", len(rows)))

	return &GraphResult{Cypher: cypher, Rows: rows}, nil
}
