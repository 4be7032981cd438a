package retrieval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lexgraph/backend/pkg/jsonrepair"
)

// ErrUnsafeCypher is returned for generated queries that could modify the graph or call procedures.
var ErrUnsafeCypher = errors.New("unsafe cypher query")

var (
	stringLiteralPattern = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|` + "`[^`]*`")
	lineCommentPattern   = regexp.MustCompile(`//[^\n]*`)
	blockCommentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	writeClausePattern   = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|CALL|LOAD\s+CSV|PERIODIC\s+COMMIT|GRANT|DENY|REVOKE|ALTER|RENAME|TERMINATE|START|STOP)\b`)
	readClausePattern    = regexp.MustCompile(`(?i)\b(MATCH|RETURN)\b`)
)

// PrepareCypher turns oracle output into an executable query. It returns "" for the
// unanswerable marker or an empty answer, and ErrUnsafeCypher for anything that is not
// a plain read query.
func PrepareCypher(raw string) (string, error) {
	query := strings.TrimSpace(jsonrepair.StripFences(raw))
	query = strings.TrimSuffix(query, ";")

	code := stripNonCode(query)
	if strings.TrimSpace(code) == "" {
		return "", nil
	}

	if m := writeClausePattern.FindString(code); m != "" {
		return "", fmt.Errorf("%w: contains %s", ErrUnsafeCypher, strings.ToUpper(m))
	}
	if strings.Contains(code, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrUnsafeCypher)
	}
	if !readClausePattern.MatchString(code) {
		return "", fmt.Errorf("%w: not a read query", ErrUnsafeCypher)
	}

	return strings.TrimSpace(query), nil
}

// stripNonCode blanks string literals, quoted identifiers and comments so keyword
// checks only see Cypher syntax.
func stripNonCode(q string) string {
	q = stringLiteralPattern.ReplaceAllString(q, `""`)
	q = blockCommentPattern.ReplaceAllString(q, " ")
	return lineCommentPattern.ReplaceAllString(q, " ")
}
