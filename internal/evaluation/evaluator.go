package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/logger"
)

// Asker answers one question end to end.
type Asker interface {
	Ask(ctx context.Context, question string) (*agent.Response, error)
}

type ResultStore interface {
	InsertEvaluationResult(result *models.EvaluationResult) error
}

type Evaluator struct {
	agent    Asker
	embedder llm.Embedder
	store    ResultStore
}

type DatasetItem struct {
	Query       string `json:"query"`
	GroundTruth string `json:"ground_truth"`
}

type EvaluationReport struct {
	RunID               string
	TotalQueries        int
	Answered            int
	Failed              int
	Unrouted            int
	AvgChosenVote       float64
	AvgCosineSimilarity float64
	Duration            time.Duration
}

// NewEvaluator builds an evaluator. store may be nil, in which case results are not persisted.
func NewEvaluator(asker Asker, embedder llm.Embedder, store ResultStore) *Evaluator {
	return &Evaluator{
		agent:    asker,
		embedder: embedder,
		store:    store,
	}
}

// EvaluateQuery runs one dataset item through the agent and scores the answer against
// the ground truth. An agent failure is recorded on the result, not returned.
func (e *Evaluator) EvaluateQuery(ctx context.Context, runID string, item DatasetItem) *models.EvaluationResult {
	result := &models.EvaluationResult{
		RunID:       runID,
		Query:       item.Query,
		GroundTruth: item.GroundTruth,
		CreatedAt:   time.Now(),
	}

	resp, err := e.agent.Ask(ctx, item.Query)
	if err != nil {
		logger.Warn("Agent failed during evaluation", zap.String("query", item.Query), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Answer = resp.Answer
	result.ChosenVote = resp.ChosenVote

	if item.GroundTruth != "" && resp.Answer != "" {
		sim, err := e.calculateCosineSimilarity(ctx, resp.Answer, item.GroundTruth)
		if err != nil {
			logger.Warn("Failed to calculate cosine similarity", zap.Error(err))
		}
		result.CosineSimilarity = sim
	}

	return result
}

func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, items []DatasetItem) *EvaluationReport {
	start := time.Now()
	report := &EvaluationReport{
		RunID:        uuid.New().String(),
		TotalQueries: len(items),
	}
	logger.Info("Running dataset evaluation", zap.String("run_id", report.RunID), zap.Int("items", len(items)))

	var totalVote, totalCosineSim float64
	voted := 0

	for i, item := range items {
		if ctx.Err() != nil {
			report.Failed += len(items) - i
			break
		}
		logger.Info("Evaluating item", zap.Int("index", i+1), zap.Int("total", len(items)))

		result := e.EvaluateQuery(ctx, report.RunID, item)
		if e.store != nil {
			if err := e.store.InsertEvaluationResult(result); err != nil {
				logger.Error("Failed to store evaluation result", zap.Error(err))
			}
		}

		if result.Error != "" {
			report.Failed++
			continue
		}
		report.Answered++
		totalCosineSim += result.CosineSimilarity
		// Questions routed away from retrieval carry no vote.
		if result.ChosenVote > 0 {
			totalVote += float64(result.ChosenVote)
			voted++
		} else {
			report.Unrouted++
		}
	}

	if report.Answered > 0 {
		report.AvgCosineSimilarity = totalCosineSim / float64(report.Answered)
	}
	if voted > 0 {
		report.AvgChosenVote = totalVote / float64(voted)
	}
	report.Duration = time.Since(start)

	logger.Info("Dataset evaluation completed",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.TotalQueries),
		zap.Int("answered", report.Answered),
		zap.Int("failed", report.Failed),
		zap.Float64("avg_chosen_vote", report.AvgChosenVote),
		zap.Float64("avg_cosine_similarity", report.AvgCosineSimilarity),
	)

	return report
}

func (e *Evaluator) calculateCosineSimilarity(ctx context.Context, text1, text2 string) (float64, error) {
	embs, err := e.embedder.GenerateBatchEmbeddings(ctx, []string{text1, text2})
	if err != nil {
		return 0, err
	}
	if len(embs) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(embs))
	}

	return cosineSimilarity(embs[0], embs[1]), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LoadDataset parses a JSON array of {query, ground_truth} items. Items without a query are dropped.
func LoadDataset(data []byte) ([]DatasetItem, error) {
	var items []DatasetItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}

	kept := items[:0]
	for _, item := range items {
		item.Query = strings.TrimSpace(item.Query)
		if item.Query == "" {
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}

func GenerateReport(report *EvaluationReport) string {
	return fmt.Sprintf(`
Evaluation Report
=================

Run: %s
Total Queries: %d
Answered: %d
Failed: %d
Not routed to retrieval: %d

Average chosen vote: %.2f / 10
Average cosine similarity: %.3f
Duration: %s
`,
		report.RunID,
		report.TotalQueries,
		report.Answered,
		report.Failed,
		report.Unrouted,
		report.AvgChosenVote,
		report.AvgCosineSimilarity,
		report.Duration.Round(time.Millisecond),
	)
}
