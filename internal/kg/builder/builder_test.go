package builder

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/internal/storage/tables"
)

func TestNormalizeCzechExample(t *testing.T) {
	got := Normalize([]Row{
		{"subject": " Stavební Zákon ", "predicate": "  upravuje   ", "object": "Stavební Řízení", "chunk_id": "c1"},
	})

	require.Len(t, got.Triples, 1)
	assert.Equal(t, models.NormalizedTriple{
		Subject:     "stavební zákon",
		Predicate:   "upravuje",
		Object:      "stavební řízení",
		SourceChunk: "c1",
	}, got.Triples[0])
	assert.Equal(t, 1, got.Kept)
}

func TestNormalizeCounters(t *testing.T) {
	rows := []Row{
		{"subject": "Zákon", "predicate": "Upravuje  Stavby", "object": "Stavby", "chunk_id": "c1"},
		{"subject": "zákon ", "predicate": "upravuje\tstavby", "object": " STAVBY", "chunk_id": "c2"},
		{"subject": "zákon", "predicate": "upravuje", "object": math.NaN(), "chunk_id": "c3"},
		{"subject": "zákon", "predicate": "upravuje", "object": nil, "chunk_id": "c4"},
		{"subject": "zákon", "predicate": "   ", "object": "stavby", "chunk_id": "c5"},
		{"subject": 12, "predicate": "upravuje", "object": "stavby", "chunk_id": "c6"},
	}

	got := Normalize(rows)

	assert.Equal(t, 1, got.Kept)
	assert.Equal(t, 1, got.Duplicates)
	assert.Equal(t, 4, got.Invalid)
	assert.Equal(t, "upravuje stavby", got.Triples[0].Predicate)
	assert.Equal(t, "c1", got.Triples[0].SourceChunk, "first occurrence wins")
}

func TestNormalizeSourceChunkFallback(t *testing.T) {
	got := Normalize([]Row{
		{"subject": "a", "predicate": "b", "object": "c", "source_chunk": "s1"},
		{"subject": "d", "predicate": "e", "object": "f", "chunk_id": nil},
		{"subject": "g", "predicate": "h", "object": "i", "chunk_id": "c3", "source_chunk": "s3"},
	})

	require.Len(t, got.Triples, 3)
	assert.Equal(t, "s1", got.Triples[0].SourceChunk)
	assert.Equal(t, "unknown", got.Triples[1].SourceChunk)
	assert.Equal(t, "c3", got.Triples[2].SourceChunk)
}

func TestNormalizeOutputInvariants(t *testing.T) {
	input := "subject,predicate,object,chunk_id\n" +
		"Obec,Vydává   Územní Plán,Územní plán,c1\n" +
		"obec,vydává územní plán,územní plán,c2\n" +
		"Kraj,NaN,Zásady,c3\n" +
		"Stavební úřad, Povoluje ,Stavbu,c4\n"
	rows, err := tables.DecodeRows(strings.NewReader(input))
	require.NoError(t, err)

	got := Normalize(rows)

	assert.Equal(t, 2, got.Kept)
	assert.Equal(t, 1, got.Duplicates)
	assert.Equal(t, 1, got.Invalid)

	seen := map[[3]string]bool{}
	for _, tr := range got.Triples {
		for _, field := range []string{tr.Subject, tr.Predicate, tr.Object} {
			assert.NotEmpty(t, field)
			assert.Equal(t, strings.ToLower(field), field)
			assert.Equal(t, strings.TrimSpace(field), field)
		}
		assert.NotContains(t, tr.Predicate, "  ")

		key := [3]string{tr.Subject, tr.Predicate, tr.Object}
		assert.False(t, seen[key], "triples must be pairwise distinct")
		seen[key] = true
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize([]Row{
		{"subject": " A ", "predicate": "B  C", "object": "D", "chunk_id": "c1"},
		{"subject": "a", "predicate": "b c", "object": "d", "chunk_id": "c2"},
		{"subject": "E", "predicate": "F", "object": "G", "chunk_id": "c3"},
	})

	rows := make([]Row, 0, len(first.Triples))
	for _, tr := range first.Triples {
		rows = append(rows, Row{
			"subject":      tr.Subject,
			"predicate":    tr.Predicate,
			"object":       tr.Object,
			"source_chunk": tr.SourceChunk,
		})
	}
	second := Normalize(rows)

	assert.Equal(t, first.Triples, second.Triples)
	assert.Zero(t, second.Duplicates)
	assert.Zero(t, second.Invalid)
}

func TestRowsFromRawTriples(t *testing.T) {
	rows := RowsFromRawTriples([]models.RawTriple{{Subject: "A", Predicate: "B", Object: "C", ChunkID: "c9"}})

	got := Normalize(rows)
	require.Len(t, got.Triples, 1)
	assert.Equal(t, "c9", got.Triples[0].SourceChunk)
}

// memGraph mirrors the MERGE semantics of the graph store: nodes by name,
// edges by (subject, object, predicate), source_chunk set on create only.
type memGraph struct {
	nodes map[string]struct{}
	edges map[[3]string]string
	fail  map[string]bool
}

func newMemGraph() *memGraph {
	return &memGraph{
		nodes: map[string]struct{}{},
		edges: map[[3]string]string{},
		fail:  map[string]bool{},
	}
}

func (g *memGraph) UpsertTriple(ctx context.Context, t models.NormalizedTriple) error {
	if g.fail[t.Subject] {
		return errors.New("constraint violation")
	}
	g.nodes[t.Subject] = struct{}{}
	g.nodes[t.Object] = struct{}{}
	key := [3]string{t.Subject, t.Object, t.Predicate}
	if _, ok := g.edges[key]; !ok {
		g.edges[key] = t.SourceChunk
	}
	return nil
}

func TestLoadIsIdempotent(t *testing.T) {
	triples := []models.NormalizedTriple{
		{Subject: "stavební zákon", Predicate: "upravuje", Object: "stavební řízení", SourceChunk: "c1"},
		{Subject: "stavební zákon", Predicate: "stanoví", Object: "stavební řízení", SourceChunk: "c2"},
		{Subject: "obec", Predicate: "vydává", Object: "územní plán", SourceChunk: "c3"},
	}
	graph := newMemGraph()
	b := NewBuilder(graph)

	first := b.Load(context.Background(), triples)
	nodes, edges := len(graph.nodes), len(graph.edges)

	second := b.Load(context.Background(), triples)

	assert.Equal(t, LoadStats{Rows: 3, Upserted: 3}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 3, edges)
	assert.Equal(t, nodes, len(graph.nodes))
	assert.Equal(t, edges, len(graph.edges))
}

func TestLoadKeepsFirstSourceChunk(t *testing.T) {
	graph := newMemGraph()
	b := NewBuilder(graph)

	b.Load(context.Background(), []models.NormalizedTriple{{Subject: "a", Predicate: "b", Object: "c", SourceChunk: "c1"}})
	b.Load(context.Background(), []models.NormalizedTriple{{Subject: "a", Predicate: "b", Object: "c", SourceChunk: "c2"}})

	assert.Equal(t, "c1", graph.edges[[3]string{"a", "c", "b"}])
}

func TestLoadSkipsFailingRows(t *testing.T) {
	graph := newMemGraph()
	graph.fail["broken"] = true
	b := NewBuilder(graph)

	stats := b.Load(context.Background(), []models.NormalizedTriple{
		{Subject: "a", Predicate: "b", Object: "c", SourceChunk: "c1"},
		{Subject: "broken", Predicate: "b", Object: "c", SourceChunk: "c2"},
		{Subject: "d", Predicate: "e", Object: "f", SourceChunk: "c3"},
	})

	assert.Equal(t, LoadStats{Rows: 3, Upserted: 2, Failed: 1}, stats)
	assert.Len(t, graph.edges, 2)
}
