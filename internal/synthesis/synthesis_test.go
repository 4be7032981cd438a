package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/pkg/config"
)

type stubOracle struct {
	content string
	err     error
	calls   int
	last    llm.CompletionRequest
}

func (s *stubOracle) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func newTestEngine(content string) (*Engine, *stubOracle) {
	oracle := &stubOracle{content: content}
	return NewEngine(oracle, config.SynthesisConfig{MinCandidates: 3}), oracle
}

const tiedVotesResponse = `{
 "analysis": [
  {"a1": "Obec vydává územní plán [ref: c1].", "critique": "Chybí lhůta.", "question": "Jaká je lhůta?", "vote": 7},
  {"a2": "Územní plán vydává zastupitelstvo obce [ref: c1].", "critique": "Dobré.", "question": "None", "vote": 9},
  {"a3": "Zastupitelstvo obce vydává územní plán formou opatření obecné povahy [ref: c1][ref: kg-1].", "critique": "Úplné.", "question": null, "vote": 9}
 ],
 "conclusion": "a3 je nejúplnější, ale chybí lhůty.",
 "chosen": "a2",
 "chosen_answer": "Územní plán vydává zastupitelstvo obce [ref: c1].",
 "vote_chosen_answer": 9,
 "deeper_wider_than_chosen_answer": "Územní plán vydává zastupitelstvo obce formou opatření obecné povahy [ref: c1][ref: kg-1].",
 "critique": "Odpověď je podložená.",
 "question": "None"
}`

func TestSynthesizeTieGoesToLaterCandidate(t *testing.T) {
	engine, oracle := newTestEngine(tiedVotesResponse)

	res, err := engine.Synthesize(context.Background(), "Kdo vydává územní plán?", "[ref: c1] text")
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.calls)
	assert.Contains(t, oracle.last.UserPrompt, "Kdo vydává územní plán?")
	assert.Contains(t, oracle.last.UserPrompt, "[ref: c1] text")

	assert.Len(t, res.Candidates, 3)
	assert.Equal(t, "a3", res.ChosenID)
	assert.Equal(t, 9, res.ChosenVote)
	assert.Equal(t, "a2", res.OracleChosenID)
	assert.Equal(t, res.DeeperWider, res.Answer)
	assert.Empty(t, res.FollowUp)
	assert.Empty(t, res.Candidates[1].Question)
	assert.Equal(t, "Jaká je lhůta?", res.Candidates[0].Question)
}

func TestSynthesizePerfectVoteReturnsChosenVerbatim(t *testing.T) {
	raw := `{
 "analysis": [
  {"a1": "Odpověď jedna.", "critique": "Slabá.", "question": "None", "vote": 4},
  {"a2": "Odpověď dvě **se zvýrazněním** [ref: c7].", "critique": "Perfektní.", "question": "None", "vote": 10},
  {"a3": "Odpověď tři.", "critique": "Průměrná.", "question": "None", "vote": 6}
 ],
 "conclusion": "a2 je bez nedostatků.",
 "chosen": "a2",
 "deeper_wider_than_chosen_answer": "None",
 "critique": "Bez výhrad.",
 "question": "None"
}`
	engine, _ := newTestEngine(raw)

	res, err := engine.Synthesize(context.Background(), "q", "ctx")
	require.NoError(t, err)

	assert.Equal(t, "a2", res.ChosenID)
	assert.Empty(t, res.DeeperWider)
	assert.True(t, res.DeeperWiderNone)
	assert.Equal(t, "Odpověď dvě **se zvýrazněním** [ref: c7].", res.Answer)
}

func TestSynthesizeMissingDeeperWiderIsNotNone(t *testing.T) {
	raw := `{
 "analysis": [
  {"a1": "Jedna.", "critique": "c", "question": null, "vote": 5},
  {"a2": "Dvě.", "critique": "c", "question": null, "vote": 7},
  {"a3": "Tři.", "critique": "c", "question": null, "vote": 6}
 ],
 "conclusion": "a2",
 "critique": "c"
}`
	engine, _ := newTestEngine(raw)

	res, err := engine.Synthesize(context.Background(), "q", "ctx")
	require.NoError(t, err)

	assert.Empty(t, res.DeeperWider)
	assert.False(t, res.DeeperWiderNone)
	assert.Equal(t, "Dvě.", res.Answer)

	encoded, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"deeper_wider_none":false`)
}

func TestSynthesizeAcceptsTopLevelArray(t *testing.T) {
	engine, _ := newTestEngine("[" + tiedVotesResponse + "]")

	res, err := engine.Synthesize(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "a3", res.ChosenID)
}

func TestSynthesizeRepairsSloppyJSON(t *testing.T) {
	raw := "```json\n{'analysis': [" +
		"{'a1': 'x', 'critique': 'c', 'question': None, 'vote': '6'}," +
		"{'a2': 'y', 'critique': 'c', 'question': None, 'vote': '9/10'}," +
		"{'a3': 'z', 'critique': 'c', 'question': None, 'vote': 8}," +
		"], 'conclusion': 'ok', 'chosen': 'a2', 'deeper_wider_than_chosen_answer': None, 'critique': 'c', 'question': None}\n```"
	engine, _ := newTestEngine(raw)

	res, err := engine.Synthesize(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "a2", res.ChosenID)
	assert.Equal(t, 9, res.ChosenVote)
	assert.Equal(t, "y", res.Answer)
}

func TestSynthesizeMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Omlouvám se, nemohu odpovědět."},
		{"no analysis", `{"conclusion": "x"}`},
		{"too few candidates", `{"analysis": [{"a1": "x", "critique": "c", "vote": 5}, {"a2": "y", "critique": "c", "vote": 6}]}`},
		{"vote out of range", `{"analysis": [{"a1": "x", "critique": "c", "vote": 11}, {"a2": "y", "critique": "c", "vote": 6}, {"a3": "z", "critique": "c", "vote": 6}]}`},
		{"missing answer key", `{"analysis": [{"answer": "x", "critique": "c", "vote": 5}, {"a2": "y", "critique": "c", "vote": 6}, {"a3": "z", "critique": "c", "vote": 6}]}`},
		{"duplicate ids", `{"analysis": [{"a1": "x", "critique": "c", "vote": 5}, {"a1": "y", "critique": "c", "vote": 6}, {"a3": "z", "critique": "c", "vote": 6}]}`},
		{"missing critique", `{"analysis": [{"a1": "x", "vote": 5}, {"a2": "y", "critique": "c", "vote": 6}, {"a3": "z", "critique": "c", "vote": 6}]}`},
		{"empty array", `[]`},
		{"array of strings", `["a", "b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(tt.raw)

			res, err := engine.Synthesize(context.Background(), "q", "ctx")
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestSynthesizeOracleError(t *testing.T) {
	oracle := &stubOracle{err: errors.New("upstream down")}
	engine := NewEngine(oracle, config.SynthesisConfig{})

	_, err := engine.Synthesize(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestParseVote(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{float64(7), 7, false},
		{"8", 8, false},
		{" 9/10", 9, false},
		{float64(7.5), 0, true},
		{float64(0), 0, true},
		{"vysoké", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := parseVote(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildPromptSubstitutesOnce(t *testing.T) {
	p := buildPrompt("co je <context>?", "kontext")
	assert.Contains(t, p, "co je <context>?")
	assert.Contains(t, p, "Context:\nkontext")
}
