package builder

import (
	"context"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/logger"
)

// GraphStore merges one normalized triple into the graph. Implementations must be
// idempotent: upserting the same triple twice leaves the graph unchanged.
type GraphStore interface {
	UpsertTriple(ctx context.Context, triple models.NormalizedTriple) error
}

type LoadStats struct {
	Rows     int
	Upserted int
	Failed   int
}

type Builder struct {
	store GraphStore
}

func NewBuilder(store GraphStore) *Builder {
	return &Builder{store: store}
}

// Load upserts triples one at a time, in order. A failing row is logged and
// skipped; the remaining rows are still loaded.
func (b *Builder) Load(ctx context.Context, triples []models.NormalizedTriple) LoadStats {
	stats := LoadStats{Rows: len(triples)}

	for i, t := range triples {
		if err := ctx.Err(); err != nil {
			logger.Warn("Graph load interrupted", zap.Int("remaining", len(triples)-i), zap.Error(err))
			stats.Failed += len(triples) - i
			metrics.GraphUpserts.WithLabelValues("failed").Add(float64(len(triples) - i))
			break
		}

		if err := b.store.UpsertTriple(ctx, t); err != nil {
			stats.Failed++
			metrics.GraphUpserts.WithLabelValues("failed").Inc()
			logger.Error("Failed to upsert triple",
				zap.String("subject", t.Subject),
				zap.String("predicate", t.Predicate),
				zap.String("object", t.Object),
				zap.String("source_chunk", t.SourceChunk),
				zap.Error(err),
			)
			continue
		}

		stats.Upserted++
		metrics.GraphUpserts.WithLabelValues("success").Inc()
	}

	logger.Info("Graph load finished",
		zap.Int("rows", stats.Rows),
		zap.Int("upserted", stats.Upserted),
		zap.Int("failed", stats.Failed),
	)

	return stats
}
