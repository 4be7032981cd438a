package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lexgraph/backend/internal/vector"
)

const noContext = "No relevant context was found."

// FormatContext renders graph rows and passages with the reference codes the
// synthesis prompt cites: kg-<n> for graph rows and the chunk id for passages.
func FormatContext(rows []map[string]any, hits []vector.Hit) string {
	var b strings.Builder

	if len(rows) > 0 {
		b.WriteString("Knowledge graph facts:\n")
		for i, row := range rows {
			fmt.Fprintf(&b, "[ref: kg-%d] %s\n", i+1, describeRow(row))
		}
	}

	if len(hits) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Law passages:\n")
		for _, h := range hits {
			ref := h.ChunkID
			if ref == "" {
				ref = "unknown"
			}
			fmt.Fprintf(&b, "[ref: %s]", ref)
			if h.Header != "" {
				fmt.Fprintf(&b, " (%s)", h.Header)
			}
			fmt.Fprintf(&b, "\n%s\n\n", strings.TrimSpace(h.Text))
		}
	}

	if b.Len() == 0 {
		return noContext
	}
	return strings.TrimSpace(b.String())
}

// describeRow renders an (a, r, b) row as a triple, and any other shape as JSON.
func describeRow(row map[string]any) string {
	a, okA := row["a"].(map[string]any)
	r, okR := row["r"].(map[string]any)
	o, okB := row["b"].(map[string]any)
	if okA && okR && okB && len(row) == 3 {
		s := fmt.Sprintf("%v -[%v]-> %v", a["name"], r["type"], o["name"])
		if src, ok := r["source_chunk"]; ok {
			s += fmt.Sprintf(" (source: %v)", src)
		}
		return s
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("%v", row)
	}
	return string(raw)
}
