package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already valid",
			in:   `[{"subject": "a", "predicate": "b", "object": "c"}]`,
			want: `[{"subject": "a", "predicate": "b", "object": "c"}]`,
		},
		{
			name: "markdown fence",
			in:   "```json\n[{\"subject\": \"a\"}]\n```",
			want: `[{"subject": "a"}]`,
		},
		{
			name: "prose around value",
			in:   "Zde jsou trojice:\n[{\"subject\": \"a\"}]\nDoufám, že to pomůže.",
			want: `[{"subject": "a"}]`,
		},
		{
			name: "capitalized literals and single quotes",
			in:   `{'question': None, 'ok': True, 'bad': False}`,
			want: `{"question": null, "ok": true, "bad": false}`,
		},
		{
			name: "trailing commas",
			in:   `[{"a": 1, "b": 2,}]`,
			want: `[{"a": 1, "b": 2}]`,
		},
		{
			name: "truncated output",
			in:   `[{"subject": "stavební zákon", "predicate": "upravuje", "object": "územní plán`,
			want: `[{"subject": "stavební zákon", "predicate": "upravuje", "object": "územní plán"}]`,
		},
		{
			name: "dangling key",
			in:   `{"conclusion":`,
			want: `{"conclusion": null}`,
		},
		{
			name: "raw newline inside string",
			in:   "{\"answer\": \"první\ndruhý\"}",
			want: `{"answer": "první\ndruhý"}`,
		},
		{
			name: "unquoted keys and non-ASCII value",
			in:   `{subject: stavební}`,
			want: `{"subject": "stavební"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Repair(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "repaired output must be valid JSON: %s", got)
		})
	}
}

func TestRepairWithoutJSON(t *testing.T) {
	_, err := Repair("Omlouvám se, nemohu odpovědět.")
	assert.ErrorIs(t, err, ErrNoJSONValue)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `[1, 2]`, StripFences("```[1, 2]```"))
	assert.Equal(t, `{"a": 1}`, StripFences("text\n```json\n{\"a\": 1}\n```\nmore"))
	assert.Equal(t, `[]`, StripFences("  []  "))
}
