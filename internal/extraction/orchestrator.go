package extraction

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/logger"
)

type Summary struct {
	Chunks       int
	Succeeded    int
	Triples      int
	FailedChunks int
	Duration     time.Duration
}

type Result struct {
	Triples []models.RawTriple
	Failed  []models.FailedChunk
	Summary Summary
}

// Run extracts every chunk with at most e.workers oracle calls in flight.
// Results are accumulated in completion order; one chunk failing never stops the run.
func (e *Extractor) Run(ctx context.Context, chunks []models.Chunk) *Result {
	start := time.Now()
	results := make(chan ChunkResult)

	go func() {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for _, chunk := range chunks {
			chunk := chunk
			g.Go(func() error {
				results <- e.processSafely(ctx, chunk)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	logger.Info("Extraction started",
		zap.Int("chunks", len(chunks)),
		zap.Int("workers", e.workers),
	)

	res := &Result{}
	done := 0
	progressEvery := progressInterval(len(chunks))

	for r := range results {
		done++
		if r.Failed != nil {
			res.Failed = append(res.Failed, *r.Failed)
			metrics.ChunksProcessed.WithLabelValues("failed").Inc()
		} else {
			res.Triples = append(res.Triples, r.Triples...)
			res.Summary.Succeeded++
			metrics.ChunksProcessed.WithLabelValues("success").Inc()
			metrics.TriplesExtracted.Add(float64(len(r.Triples)))
		}

		if done%progressEvery == 0 || done == len(chunks) {
			logger.Info("Extraction progress",
				zap.Int("done", done),
				zap.Int("total", len(chunks)),
				zap.Int("triples", len(res.Triples)),
				zap.Int("failed", len(res.Failed)),
			)
		}
	}

	res.Summary.Chunks = len(chunks)
	res.Summary.Triples = len(res.Triples)
	res.Summary.FailedChunks = len(res.Failed)
	res.Summary.Duration = time.Since(start)

	logger.Info("Extraction finished",
		zap.Int("chunks", res.Summary.Chunks),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Int("triples", res.Summary.Triples),
		zap.Int("failed_chunks", res.Summary.FailedChunks),
		zap.Duration("duration", res.Summary.Duration),
	)

	return res
}

// processSafely turns a panic while handling one chunk into a failure record for that chunk.
func (e *Extractor) processSafely(ctx context.Context, chunk models.Chunk) (result ChunkResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Extraction task panicked",
				zap.String("chunk_id", chunk.ChunkID),
				zap.Any("panic", r),
			)
			result = ChunkResult{
				ChunkID: chunk.ChunkID,
				Failed: &models.FailedChunk{
					ChunkID: chunk.ChunkID,
					Error:   fmt.Sprintf("%v", r),
				},
			}
		}
	}()

	return e.ProcessChunk(ctx, chunk)
}

func progressInterval(total int) int {
	if total < 20 {
		return 1
	}
	return total / 20
}
