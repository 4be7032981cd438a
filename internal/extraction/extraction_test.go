package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/config"
)

type scriptedReply struct {
	content string
	err     error
	panic   bool
	delay   time.Duration
}

// fakeOracle answers by looking up the chunk marker contained in the user prompt.
type fakeOracle struct {
	mu       sync.Mutex
	replies  map[string]scriptedReply
	prompts  []llm.CompletionRequest
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeOracle(replies map[string]scriptedReply) *fakeOracle {
	return &fakeOracle{replies: replies}
}

func (f *fakeOracle) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	var reply scriptedReply
	found := false
	for marker, r := range f.replies {
		if strings.Contains(req.UserPrompt, marker) {
			reply, found = r, true
			break
		}
	}
	f.mu.Unlock()

	if !found {
		return &llm.CompletionResponse{Content: "[]"}, nil
	}
	if reply.delay > 0 {
		time.Sleep(reply.delay)
	}
	if reply.panic {
		panic("oracle exploded")
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &llm.CompletionResponse{Content: reply.content}, nil
}

func chunk(id string) models.Chunk {
	return models.Chunk{ChunkID: id, Header: "Zákon č. 183/2006 Sb.", Text: "text " + id + ";", Name: "zakon.pdf"}
}

func TestProcessChunkDecodeStages(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantCount int
	}{
		{
			name:      "strict array",
			response:  `[{"subject": "stavební zákon", "predicate": "upravuje", "object": "územní plánování"}]`,
			wantCount: 1,
		},
		{
			name:      "single list wrapper",
			response:  `{"triples": [{"subject": "a", "predicate": "b", "object": "c"}, {"subject": "d", "predicate": "e", "object": "f"}]}`,
			wantCount: 2,
		},
		{
			name:      "repaired fenced output",
			response:  "```json\n[{'subject': 'a', 'predicate': 'b', 'object': 'c'},]\n```",
			wantCount: 1,
		},
		{
			name:      "bracket fallback",
			response:  `Poznámka {viz níže}: [{"subject": "a", "predicate": "b", "object": "c"}]`,
			wantCount: 1,
		},
		{
			name:      "empty array is a success",
			response:  `[]`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newFakeOracle(map[string]scriptedReply{"text c1;": {content: tt.response}})
			ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 1})

			res := ex.ProcessChunk(context.Background(), chunk("c1"))

			require.Nil(t, res.Failed)
			assert.Len(t, res.Triples, tt.wantCount)
			for _, tr := range res.Triples {
				assert.Equal(t, "c1", tr.ChunkID)
			}
		})
	}
}

func TestProcessChunkTwoListWrapperIsParseError(t *testing.T) {
	response := `{"a": [{"subject": "x", "predicate": "y", "object": "z"}], "b": [{"subject": "x", "predicate": "y", "object": "z"}]}`
	oracle := newFakeOracle(map[string]scriptedReply{"text c1;": {content: response}})
	ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 1})

	res := ex.ProcessChunk(context.Background(), chunk("c1"))

	require.NotNil(t, res.Failed)
	assert.Empty(t, res.Triples)
	assert.True(t, strings.HasPrefix(res.Failed.Error, "Parsing Failed: "))
	assert.Contains(t, res.Failed.Error, "strict: ")
	assert.Contains(t, res.Failed.Error, "repair: ")
	assert.Contains(t, res.Failed.Error, "bracket: ")
	assert.Equal(t, response, res.Failed.Response)
}

func TestDecodeItemsReportsEveryStage(t *testing.T) {
	_, _, err := decodeItems(`{"a": [], "b": []}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrapperShape)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Len(t, decodeErr.Stages, 3)
	assert.Equal(t, StageStrict, decodeErr.Stages[0].Stage)
	assert.Equal(t, StageRepair, decodeErr.Stages[1].Stage)
	assert.Equal(t, StageBracket, decodeErr.Stages[2].Stage)

	_, _, err = decodeItems("žádné trojice")
	assert.ErrorIs(t, err, ErrNoBracketedArray)

	_, _, err = decodeItems(`"jen text"`)
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestProcessChunkFiltersItems(t *testing.T) {
	response := `[
		{"subject": "a", "predicate": "b", "object": "c"},
		{"subject": "a", "predicate": "b"},
		{"subject": "a", "predicate": "b", "object": 7},
		"not an object",
		{"subject": "d", "predicate": "e", "object": "f", "extra": true}
	]`
	oracle := newFakeOracle(map[string]scriptedReply{"text c1;": {content: response}})
	ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 1})

	res := ex.ProcessChunk(context.Background(), chunk("c1"))

	require.Nil(t, res.Failed)
	assert.Equal(t, []models.RawTriple{
		{Subject: "a", Predicate: "b", Object: "c", ChunkID: "c1"},
		{Subject: "d", Predicate: "e", Object: "f", ChunkID: "c1"},
	}, res.Triples)
}

func TestProcessChunkOracleFailure(t *testing.T) {
	oracle := newFakeOracle(map[string]scriptedReply{"text c1;": {err: errors.New("request timed out")}})
	ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 1})

	res := ex.ProcessChunk(context.Background(), chunk("c1"))

	require.NotNil(t, res.Failed)
	assert.Equal(t, "API/Processing Error: request timed out", res.Failed.Error)
	assert.Empty(t, res.Failed.Response)
	assert.Len(t, oracle.prompts, 1, "the worker must not retry on its own")
}

func TestProcessChunkPromptCarriesHeaderAndText(t *testing.T) {
	oracle := newFakeOracle(nil)
	ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 1})

	ex.ProcessChunk(context.Background(), chunk("c1"))

	require.Len(t, oracle.prompts, 1)
	assert.Contains(t, oracle.prompts[0].UserPrompt, "Zákon č. 183/2006 Sb. text c1;")
	assert.Equal(t, systemPrompt, oracle.prompts[0].SystemPrompt)
}

func TestRunAccountsForEveryChunk(t *testing.T) {
	valid := `[{"subject": "a", "predicate": "b", "object": "c"}]`
	replies := map[string]scriptedReply{
		"text c0;": {content: valid},
		"text c1;": {err: errors.New("quota exceeded")},
		"text c2;": {content: "not json at all"},
		"text c3;": {panic: true},
		"text c4;": {content: valid, delay: 20 * time.Millisecond},
	}
	oracle := newFakeOracle(replies)
	ex := NewExtractor(oracle, config.ExtractionConfig{Workers: 3})

	chunks := make([]models.Chunk, 0, 12)
	for i := 0; i < 12; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("c%d", i)))
	}

	res := ex.Run(context.Background(), chunks)

	assert.Equal(t, len(chunks), res.Summary.Succeeded+len(res.Failed))
	assert.Equal(t, 12, res.Summary.Chunks)
	assert.Equal(t, 3, res.Summary.FailedChunks)
	assert.Equal(t, 9, res.Summary.Succeeded)
	assert.Equal(t, 2, res.Summary.Triples)
	assert.Len(t, res.Triples, 2)

	failedIDs := make([]string, 0, len(res.Failed))
	for _, f := range res.Failed {
		failedIDs = append(failedIDs, f.ChunkID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, failedIDs)

	assert.LessOrEqual(t, oracle.maxSeen.Load(), int32(3))
}

func TestRunEmptyInput(t *testing.T) {
	ex := NewExtractor(newFakeOracle(nil), config.ExtractionConfig{Workers: 2})

	res := ex.Run(context.Background(), nil)

	assert.Zero(t, res.Summary.Chunks)
	assert.Empty(t, res.Triples)
	assert.Empty(t, res.Failed)
}
