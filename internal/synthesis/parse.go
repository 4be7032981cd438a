package synthesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexgraph/backend/pkg/jsonrepair"
)

// ErrMalformedResponse means the oracle output does not have the critique document shape.
var ErrMalformedResponse = errors.New("malformed synthesis response")

var (
	answerKeyPattern  = regexp.MustCompile(`^a(\d+)$`)
	leadingIntPattern = regexp.MustCompile(`^\s*(\d+)`)
)

// document is the validated form of the oracle's critique output.
type document struct {
	Candidates  []Candidate
	Conclusion  string
	Chosen      string
	DeeperWider string
	// DeeperWiderNone is set when the oracle explicitly answered with the none marker.
	DeeperWiderNone bool
	Critique        string
	Question        string
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// decodeDocument parses raw strictly, then through the repair transform, and
// accepts a top-level array by taking its first element.
func decodeDocument(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		repaired, repairErr := jsonrepair.Repair(raw)
		if repairErr != nil {
			return nil, malformed("strict: %v; repair: %v", err, repairErr)
		}
		if err2 := json.Unmarshal([]byte(repaired), &v); err2 != nil {
			return nil, malformed("strict: %v; repair: %v", err, err2)
		}
	}

	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil, malformed("top-level array is empty")
		}
		v = arr[0]
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("expected a JSON object, got %T", v)
	}
	return obj, nil
}

func parseDocument(raw string, minCandidates int) (*document, error) {
	obj, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	analysis, ok := obj["analysis"].([]any)
	if !ok {
		return nil, malformed("analysis must be a list")
	}

	doc := &document{}
	seen := make(map[string]bool, len(analysis))
	for i, item := range analysis {
		c, err := parseCandidate(item)
		if err != nil {
			return nil, malformed("analysis[%d]: %v", i, err)
		}
		if seen[c.ID] {
			return nil, malformed("analysis[%d]: duplicate candidate %s", i, c.ID)
		}
		seen[c.ID] = true
		doc.Candidates = append(doc.Candidates, c)
	}

	if len(doc.Candidates) < minCandidates {
		return nil, malformed("expected at least %d candidates, got %d", minCandidates, len(doc.Candidates))
	}

	fields := []struct {
		key      string
		dst      *string
		nullable bool
	}{
		{"conclusion", &doc.Conclusion, false},
		{"chosen", &doc.Chosen, true},
		{"deeper_wider_than_chosen_answer", &doc.DeeperWider, true},
		{"critique", &doc.Critique, false},
		{"question", &doc.Question, true},
	}
	for _, f := range fields {
		s, err := optionalString(obj, f.key, f.nullable)
		if err != nil {
			return nil, malformed("%v", err)
		}
		*f.dst = s
	}
	if isNone(doc.DeeperWider) {
		_, present := obj["deeper_wider_than_chosen_answer"]
		doc.DeeperWiderNone = present
		doc.DeeperWider = ""
	}
	if isNone(doc.Question) {
		doc.Question = ""
	}

	return doc, nil
}

func parseCandidate(item any) (Candidate, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Candidate{}, fmt.Errorf("candidate must be an object")
	}

	var c Candidate
	for key, val := range obj {
		if !answerKeyPattern.MatchString(key) {
			continue
		}
		if c.ID != "" {
			return Candidate{}, fmt.Errorf("more than one answer key (%s, %s)", c.ID, key)
		}
		answer, ok := val.(string)
		if !ok {
			return Candidate{}, fmt.Errorf("answer %s must be a string", key)
		}
		c.ID = key
		c.Answer = answer
	}
	if c.ID == "" {
		return Candidate{}, fmt.Errorf("missing answer key a<N>")
	}

	critique, ok := obj["critique"].(string)
	if !ok {
		return Candidate{}, fmt.Errorf("critique must be a string")
	}
	c.Critique = critique

	question, err := optionalString(obj, "question", true)
	if err != nil {
		return Candidate{}, err
	}
	if !isNone(question) {
		c.Question = question
	}

	vote, err := parseVote(obj["vote"])
	if err != nil {
		return Candidate{}, err
	}
	c.Vote = vote

	return c, nil
}

// parseVote accepts an integer or a string starting with an integer, within 1..10.
func parseVote(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("vote %v is not an integer", t)
		}
		n = int(t)
	case string:
		m := leadingIntPattern.FindStringSubmatch(t)
		if m == nil {
			return 0, fmt.Errorf("vote %q is not a number", t)
		}
		parsed, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("vote %q: %w", t, err)
		}
		n = parsed
	case nil:
		return 0, fmt.Errorf("vote is missing")
	default:
		return 0, fmt.Errorf("vote has type %T", v)
	}

	if n < 1 || n > 10 {
		return 0, fmt.Errorf("vote %d outside 1..10", n)
	}
	return n, nil
}

// optionalString reads a string field that may be absent. Null is accepted only when nullable.
func optionalString(obj map[string]any, key string, nullable bool) (string, error) {
	v, present := obj[key]
	if !present {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		if nullable {
			return "", nil
		}
	}
	return "", fmt.Errorf("%s must be a string", key)
}

// isNone reports the oracle's "no value" marker.
func isNone(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null":
		return true
	}
	return false
}
