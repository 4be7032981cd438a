package extraction

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
)

// ChunkResult is the outcome of one chunk. Exactly one of Triples or Failed is meaningful:
// Failed is nil on success, and a successful chunk may still yield zero triples.
type ChunkResult struct {
	ChunkID string
	Triples []models.RawTriple
	Failed  *models.FailedChunk
}

type Extractor struct {
	oracle    llm.Completer
	workers   int
	maxTokens int
}

func NewExtractor(oracle llm.Completer, cfg config.ExtractionConfig) *Extractor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 10
	}
	return &Extractor{
		oracle:    oracle,
		workers:   workers,
		maxTokens: cfg.MaxTokens,
	}
}

// ProcessChunk asks the oracle for the triples of one chunk. It never retries on its
// own; retries and the call timeout belong to the oracle client.
func (e *Extractor) ProcessChunk(ctx context.Context, chunk models.Chunk) ChunkResult {
	resp, err := e.oracle.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(chunk.Header, chunk.Text),
		Operation:    "extraction",
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		logger.Warn("Extraction oracle call failed",
			zap.String("chunk_id", chunk.ChunkID),
			zap.Error(err),
		)
		return ChunkResult{
			ChunkID: chunk.ChunkID,
			Failed: &models.FailedChunk{
				ChunkID:  chunk.ChunkID,
				Error:    "API/Processing Error: " + err.Error(),
				Response: "",
			},
		}
	}

	raw := strings.TrimSpace(resp.Content)

	items, stage, err := decodeItems(raw)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			for _, s := range decodeErr.Stages {
				metrics.ParseStageFailures.WithLabelValues(s.Stage).Inc()
			}
		}
		logger.Warn("Extraction response could not be parsed",
			zap.String("chunk_id", chunk.ChunkID),
			zap.Error(err),
		)
		return ChunkResult{
			ChunkID: chunk.ChunkID,
			Failed: &models.FailedChunk{
				ChunkID:  chunk.ChunkID,
				Error:    "Parsing Failed: " + err.Error(),
				Response: raw,
			},
		}
	}

	if stage != StageStrict {
		logger.Debug("Extraction response recovered",
			zap.String("chunk_id", chunk.ChunkID),
			zap.String("stage", stage),
		)
	}

	triples := filterTriples(items, chunk.ChunkID)
	if dropped := len(items) - len(triples); dropped > 0 {
		logger.Debug("Dropped malformed triple items",
			zap.String("chunk_id", chunk.ChunkID),
			zap.Int("dropped", dropped),
		)
	}

	return ChunkResult{ChunkID: chunk.ChunkID, Triples: triples}
}

// filterTriples keeps objects whose subject, predicate and object are all strings.
func filterTriples(items []any, chunkID string) []models.RawTriple {
	triples := make([]models.RawTriple, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		subject, ok1 := obj["subject"].(string)
		predicate, ok2 := obj["predicate"].(string)
		object, ok3 := obj["object"].(string)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		triples = append(triples, models.RawTriple{
			Subject:   subject,
			Predicate: predicate,
			Object:    object,
			ChunkID:   chunkID,
		})
	}
	return triples
}
