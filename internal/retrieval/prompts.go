package retrieval

import "strings"

const unanswerableMarker = "// nelze odpovědět"

const text2CypherTemplate = `You are a Cypher query generator for a Neo4j legal knowledge graph of Czech law.
The database schema:
- Nodes: :Entity, each with a property "name" (in Czech, lower case).
- Edges: only type [:RELATION], direction can be in or out. Each edge has a "type" property with the Czech predicate.
- Ignore relation type details. Match any relation between entities.

Your task:
Given a legal question (in any language), output exactly one valid read-only Cypher query with Czech keywords that finds the entities most relevant to the question.
- Extract the main keyword (entity name or legal concept) from the question and translate it to Czech.
- Match :Entity nodes whose "name" equals the keyword, as either subject or object, and return any relation to another :Entity.
- If no query can answer the question, output: ` + unanswerableMarker + `
- Output only the Cypher code. No natural language, no explanation.

Use this pattern:
MATCH (a:Entity {name: "<keyword>"})-[r:RELATION]->(b:Entity)
WHERE a.name <> b.name
RETURN a, r, b
UNION
MATCH (a:Entity)-[r:RELATION]->(b:Entity {name: "<keyword>"})
WHERE a.name <> b.name
RETURN a, r, b

Never constrain the names of both ends at the same time. Never write to the graph.

Examples:

User: What are the requirements for electronic signatures?
Assistant:
MATCH (a:Entity {name: "elektronický podpis"})-[r:RELATION]->(b:Entity)
WHERE a.name <> b.name
RETURN a, r, b
UNION
MATCH (a:Entity)-[r:RELATION]->(b:Entity {name: "elektronický podpis"})
WHERE a.name <> b.name
RETURN a, r, b

User: Who can issue a building permit?
Assistant:
MATCH (a:Entity {name: "stavební povolení"})<-[r:RELATION]-(b:Entity)
WHERE a.name <> b.name
RETURN a, r, b
UNION
MATCH (a:Entity)<-[r:RELATION]-(b:Entity {name: "stavební povolení"})
WHERE a.name <> b.name
RETURN a, r, b

User: Tell me a joke.
Assistant:
` + unanswerableMarker + `

User: <question>
Assistant:
`

const rewriteTemplate = `You are an expert translator into Czech.
Rewrite the question below in Czech, keeping as much of its meaning as possible. If it is already in Czech, return it unchanged.

Input:
<question>

Output only the Czech question, with no explanation.`

func fill(template, question string) string {
	return strings.NewReplacer("<question>", question).Replace(template)
}
