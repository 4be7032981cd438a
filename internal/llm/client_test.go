package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgraph/backend/pkg/circuitbreaker"
	"github.com/lexgraph/backend/pkg/config"
)

const chatResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.LLMConfig{
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		APIKey:         "test",
		BaseURL:        server.URL + "/v1",
		EmbeddingModel: "text-embedding-3-large",
		TimeoutSec:     5,
		MaxRetries:     2,
	})
	require.NoError(t, err)
	return client
}

func newUnavailableClient(t *testing.T, hits *atomic.Int32, opts ...Option) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(config.LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		APIKey:     "test",
		BaseURL:    server.URL + "/v1",
		TimeoutSec: 5,
	}, opts...)
	require.NoError(t, err)
	return client
}

func TestCompleteTripsBreakerAfterConsecutiveServerErrors(t *testing.T) {
	var hits atomic.Int32
	client := newUnavailableClient(t, &hits)

	var err error
	for i := 0; i < 7; i++ {
		_, err = client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
		require.Error(t, err)
	}

	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(5), hits.Load())
}

func TestCompleteWithoutCircuitBreakerKeepsCalling(t *testing.T) {
	var hits atomic.Int32
	client := newUnavailableClient(t, &hits, WithoutCircuitBreaker())

	for i := 0; i < 7; i++ {
		_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	}

	assert.Equal(t, int32(7), hits.Load())
}

func TestCompleteSendsNonZeroTemperature(t *testing.T) {
	var temperature float64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temperature, _ = body["temperature"].(float64)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse))
	})

	resp, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Operation:    "test",
	})
	require.NoError(t, err)

	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Greater(t, temperature, 0.0)
	assert.Less(t, temperature, 0.001)
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		w.Write([]byte(chatResponse))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "user"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateEmbedding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
			"model": "text-embedding-3-large",
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`))
	})

	vec, err := client.GenerateEmbedding(context.Background(), "stavební zákon")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, want: true},
		{name: "bad request", err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, want: false},
		{name: "unauthorized", err: &openai.RequestError{HTTPStatusCode: http.StatusUnauthorized}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
