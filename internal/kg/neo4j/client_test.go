package neo4j

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertTripleCypherKeysRelationOnPredicate(t *testing.T) {
	cypher := strings.Join(strings.Fields(upsertTripleCypher), " ")

	assert.Contains(t, cypher, "MERGE (s:Entity {name: $subject})")
	assert.Contains(t, cypher, "MERGE (o:Entity {name: $object})")
	assert.Contains(t, cypher, "MERGE (s)-[r:RELATION {type: $predicate}]->(o)")
	assert.Equal(t, 3, strings.Count(cypher, "MERGE "))

	// Provenance is written once, when the edge is created.
	assert.Contains(t, cypher, "ON CREATE SET r.source_chunk = $source_chunk")
	assert.NotContains(t, cypher, "ON MATCH")
	sets := regexp.MustCompile(`\bSET\b`).FindAllStringIndex(cypher, -1)
	assert.Len(t, sets, 1)
	assert.NotContains(t, cypher, "source_chunk: $source_chunk", "source_chunk must not be part of the merge key")
}
