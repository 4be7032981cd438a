// Package jsonrepair turns near-JSON model output into parseable JSON.
//
// Model replies are cut down to the first JSON value (code fences and surrounding
// prose removed) and then handed to kaptinlin/jsonrepair, which fixes quoting,
// literals, control characters, trailing commas and truncated structures.
package jsonrepair

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var ErrNoJSONValue = errors.New("no JSON object or array found")

// Repair returns the repaired text of the first JSON object or array in raw.
// Text after the last closing bracket is discarded when that yields valid output.
func Repair(raw string) (string, error) {
	s := StripFences(raw)

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", ErrNoJSONValue
	}
	s = s[start:]

	if end := strings.LastIndexAny(s, "]}"); end >= 0 && end < len(s)-1 {
		if repaired, err := jsonrepair.JSONRepair(s[:end+1]); err == nil {
			return repaired, nil
		}
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return "", fmt.Errorf("failed to repair JSON: %w", err)
	}
	return repaired, nil
}

// StripFences returns the body of the first markdown code fence, or raw unchanged.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}

	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if !strings.ContainsAny(tag, "[{") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
