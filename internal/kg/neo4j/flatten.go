package neo4j

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const embeddingProperty = "embedding"

// Flatten converts driver graph values into plain maps and slices.
// Embedding vectors are dropped because they only bloat prompt context.
func Flatten(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		props := properties(t.Props)
		if len(t.Labels) > 0 {
			props["_labels"] = t.Labels
		}
		return props
	case neo4j.Relationship:
		props := properties(t.Props)
		props["_type"] = t.Type
		return props
	case neo4j.Path:
		nodes := make([]any, 0, len(t.Nodes))
		for _, n := range t.Nodes {
			nodes = append(nodes, Flatten(n))
		}
		rels := make([]any, 0, len(t.Relationships))
		for _, r := range t.Relationships {
			rels = append(rels, Flatten(r))
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, Flatten(item))
		}
		return out
	case map[string]any:
		return properties(t)
	default:
		return v
	}
}

func properties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == embeddingProperty {
			continue
		}
		out[k] = Flatten(v)
	}
	return out
}
