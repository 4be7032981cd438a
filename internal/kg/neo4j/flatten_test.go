package neo4j

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestFlattenNodeDropsEmbedding(t *testing.T) {
	node := neo4j.Node{
		ElementId: "4:abc:1",
		Labels:    []string{"Entity"},
		Props: map[string]any{
			"name":      "stavební zákon",
			"embedding": []any{0.1, 0.2},
		},
	}

	got := Flatten(node)

	assert.Equal(t, map[string]any{
		"name":    "stavební zákon",
		"_labels": []string{"Entity"},
	}, got)
}

func TestFlattenPathAndNestedValues(t *testing.T) {
	s := neo4j.Node{Labels: []string{"Entity"}, Props: map[string]any{"name": "obec"}}
	o := neo4j.Node{Labels: []string{"Entity"}, Props: map[string]any{"name": "územní plán"}}
	r := neo4j.Relationship{Type: "RELATION", Props: map[string]any{"type": "vydává", "source_chunk": "c1"}}

	got := Flatten([]any{
		neo4j.Path{Nodes: []neo4j.Node{s, o}, Relationships: []neo4j.Relationship{r}},
		map[string]any{"embedding": "x", "count": int64(3)},
	})

	items, ok := got.([]any)
	assert.True(t, ok)
	assert.Len(t, items, 2)

	path := items[0].(map[string]any)
	assert.Len(t, path["nodes"], 2)
	assert.Equal(t, []any{map[string]any{"type": "vydává", "source_chunk": "c1", "_type": "RELATION"}}, path["relationships"])

	assert.Equal(t, map[string]any{"count": int64(3)}, items[1])
}

func TestFlattenScalars(t *testing.T) {
	assert.Equal(t, "text", Flatten("text"))
	assert.Equal(t, int64(5), Flatten(int64(5)))
	assert.Nil(t, Flatten(nil))
}
