package qdrant

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"

	"github.com/lexgraph/backend/internal/vector"
)

func TestPointID(t *testing.T) {
	assert.Equal(t, "0f8b4c2e-5d3a-4b1e-9c7f-2a6d8e1b3c5f", PointID("0f8b4c2e5d3a4b1e9c7f2a6d8e1b3c5f"))

	a := PointID("chunk-1")
	assert.Equal(t, a, PointID("chunk-1"))
	assert.NotEqual(t, a, PointID("chunk-2"))
	assert.Len(t, a, 36)
}

func TestPointRoundTripsPayload(t *testing.T) {
	doc := vector.Document{
		ChunkID:   "0f8b4c2e5d3a4b1e9c7f2a6d8e1b3c5f",
		Name:      "183_2006.pdf",
		Header:    "Zákon č. 183/2006 Sb., stavební zákon",
		Text:      "Obec vydává územní plán.",
		Embedding: []float32{0.1, 0.2},
	}

	p := toPoint(doc)
	assert.Equal(t, []float32{0.1, 0.2}, p.GetVectors().GetVector().GetData())

	hit := fromScoredPoint(&pb.ScoredPoint{Payload: p.GetPayload(), Score: 0.87})
	assert.Equal(t, vector.Hit{
		ChunkID: doc.ChunkID,
		Name:    doc.Name,
		Header:  doc.Header,
		Text:    doc.Text,
		Score:   0.87,
	}, hit)
}

func TestFromScoredPointMissingPayload(t *testing.T) {
	hit := fromScoredPoint(&pb.ScoredPoint{})
	assert.Empty(t, hit.ChunkID)
	assert.Empty(t, hit.Text)
}
