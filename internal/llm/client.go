package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/metrics"
	"github.com/lexgraph/backend/pkg/circuitbreaker"
	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/retry"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Completer is the single-shot text oracle used by extraction, routing and synthesis.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// Operation labels the call in metrics and logs.
	Operation string
	MaxTokens int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Option adjusts a Client at construction.
type Option func(*Client)

// WithoutCircuitBreaker sends every call straight to retry. Batch jobs use it so that
// a run of failures on some units never fails the units still queued behind them.
func WithoutCircuitBreaker() Option {
	return func(c *Client) { c.cb = nil }
}

func NewClient(cfg config.LLMConfig, opts ...Option) (*Client, error) {
	var clientConfig openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("failed to configure azure client: endpoint is empty")
		}
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			clientConfig.APIVersion = cfg.AzureAPIVersion
		}
		deployments := cfg.AzureDeployments
		clientConfig.AzureModelMapperFunc = func(model string) string {
			if d, ok := deployments[strings.ToLower(model)]; ok {
				return d
			}
			return model
		}
	default:
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		IgnoreError:      func(err error) bool { return !isRetryable(err) },
		Logger:           logger.Named("llm"),
	})

	retryConfig := retry.Config{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      isRetryable,
		Logger:         logger.Named("llm"),
	}

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Duration("timeout", timeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	c := &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		cb:             cb,
		retryConfig:    retryConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) execute(ctx context.Context, fn func() error) error {
	if c.cb == nil {
		return fn()
	}
	return c.cb.Execute(ctx, fn)
}

// Complete sends one system+user exchange. Timeout and retries apply per attempt.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := c.client.CreateChatCompletion(
				attemptCtx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: wireTemperature(c.temperature),
					MaxTokens:   maxTokens,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return retry.Permanent(ErrEmptyResponse)
			}

			logger.Debug("LLM completion generated",
				zap.String("operation", req.Operation),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		metrics.LLMCalls.WithLabelValues(req.Operation, "error").Inc()
		return nil, err
	}

	metrics.LLMCalls.WithLabelValues(req.Operation, "success").Inc()
	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.GenerateBatchEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("failed to generate embedding: %w", ErrEmptyResponse)
	}
	return embeddings[0], nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
				attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
				defer cancel()

				resp, err := c.client.CreateEmbeddings(
					attemptCtx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)
				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}
				if len(resp.Data) != len(batch) {
					return retry.Permanent(fmt.Errorf("failed to generate batch embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch)))
				}

				metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			metrics.LLMCalls.WithLabelValues("embedding", "error").Inc()
			return nil, err
		}
	}

	metrics.LLMCalls.WithLabelValues("embedding", "success").Inc()
	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// wireTemperature keeps a configured zero on the wire; the request encoder drops a literal 0.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}
