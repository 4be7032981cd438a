package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/pkg/config"
	"github.com/lexgraph/backend/pkg/logger"
)

const (
	answerPrefix    = "lexgraph:answer:"
	embeddingPrefix = "lexgraph:embedding:"
)

type Client struct {
	client *redis.Client
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func AnswerKey(questionHash string) string { return answerPrefix + questionHash }

func EmbeddingKey(textHash string) string { return embeddingPrefix + textHash }

func (c *Client) SetAnswer(ctx context.Context, questionHash string, answer any, ttl time.Duration) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	if err := c.client.Set(ctx, AnswerKey(questionHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set answer cache: %w", err)
	}

	logger.Debug("Answer cached", zap.String("question_hash", questionHash), zap.Duration("ttl", ttl))
	return nil
}

// GetAnswer decodes a cached answer into out and reports whether one was found.
func (c *Client) GetAnswer(ctx context.Context, questionHash string, out any) (bool, error) {
	data, err := c.client.Get(ctx, AnswerKey(questionHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get answer cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal answer: %w", err)
	}

	logger.Debug("Answer cache hit", zap.String("question_hash", questionHash))
	return true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, EmbeddingKey(textHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, EmbeddingKey(textHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return embedding, true, nil
}

// InvalidateAnswers drops every cached answer. Run it after the graph is reloaded.
func (c *Client) InvalidateAnswers(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, answerPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Answer cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}
