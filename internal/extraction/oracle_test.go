package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/backend/internal/llm"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/config"
)

// flakyOpenAI answers the first failFirst chat requests with 503 and every later one
// with a single valid triple.
func flakyOpenAI(t *testing.T, failFirst int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	content, err := json.Marshal(`[{"subject": "obec", "predicate": "vydává", "object": "územní plán"}]`)
	require.NoError(t, err)
	body := fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %s}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunKeepsCallingOracleAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := flakyOpenAI(t, 5, &hits)

	client, err := llm.NewClient(config.LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		APIKey:     "test",
		BaseURL:    server.URL + "/v1",
		TimeoutSec: 5,
		MaxRetries: 0,
	}, llm.WithoutCircuitBreaker())
	require.NoError(t, err)

	chunks := make([]models.Chunk, 20)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("c%d", i))
	}

	res := NewExtractor(client, config.ExtractionConfig{Workers: 10}).Run(context.Background(), chunks)

	assert.Equal(t, int32(20), hits.Load(), "every chunk must reach the oracle")
	assert.Len(t, res.Failed, 5)
	assert.Equal(t, 15, res.Summary.Succeeded)
	assert.Len(t, res.Triples, 15)
	for _, f := range res.Failed {
		assert.NotContains(t, f.Error, "circuit breaker")
	}
}
