package builder

import (
	"strings"

	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/internal/storage/tables"
	"github.com/lexgraph/backend/pkg/logger"
)

const unknownSource = "unknown"

// Row is one untyped raw-triple record, as read back from the extraction table.
type Row = tables.Row

type Normalized struct {
	Triples    []models.NormalizedTriple
	Kept       int
	Duplicates int
	Invalid    int
}

type tripleKey struct {
	subject, predicate, object string
}

// Normalize lower-cases and trims every triple, collapses whitespace inside predicates,
// drops rows with a missing or non-string field and keeps the first occurrence of each
// (subject, predicate, object).
func Normalize(rows []Row) Normalized {
	var out Normalized
	seen := make(map[tripleKey]struct{}, len(rows))

	for _, row := range rows {
		subject, ok1 := row["subject"].(string)
		predicate, ok2 := row["predicate"].(string)
		object, ok3 := row["object"].(string)
		if !ok1 || !ok2 || !ok3 {
			out.Invalid++
			continue
		}

		key := tripleKey{
			subject:   strings.ToLower(strings.TrimSpace(subject)),
			predicate: strings.Join(strings.Fields(strings.ToLower(predicate)), " "),
			object:    strings.ToLower(strings.TrimSpace(object)),
		}
		if key.subject == "" || key.predicate == "" || key.object == "" {
			out.Invalid++
			continue
		}

		if _, dup := seen[key]; dup {
			out.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		out.Triples = append(out.Triples, models.NormalizedTriple{
			Subject:     key.subject,
			Predicate:   key.predicate,
			Object:      key.object,
			SourceChunk: sourceChunk(row),
		})
	}

	out.Kept = len(out.Triples)

	metrics.NormalizedTriples.WithLabelValues("kept").Add(float64(out.Kept))
	metrics.NormalizedTriples.WithLabelValues("duplicate").Add(float64(out.Duplicates))
	metrics.NormalizedTriples.WithLabelValues("invalid").Add(float64(out.Invalid))

	logger.Info("Normalization done",
		zap.Int("rows", len(rows)),
		zap.Int("kept", out.Kept),
		zap.Int("duplicates", out.Duplicates),
		zap.Int("invalid", out.Invalid),
	)

	return out
}

// RowsFromRawTriples adapts in-memory extraction output to the untyped row form.
func RowsFromRawTriples(triples []models.RawTriple) []Row {
	rows := make([]Row, 0, len(triples))
	for _, t := range triples {
		rows = append(rows, Row{
			"subject":   t.Subject,
			"predicate": t.Predicate,
			"object":    t.Object,
			"chunk_id":  t.ChunkID,
		})
	}
	return rows
}

func sourceChunk(row Row) string {
	if id, ok := row["chunk_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := row["source_chunk"].(string); ok && id != "" {
		return id
	}
	return unknownSource
}
