package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable decides whether a failed attempt is worth repeating.
	// Nil means every error except context cancellation is retried.
	Retryable func(error) bool
	Logger    *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         zap.NewNop(),
	}
}

// Permanent marks err as not retryable regardless of the configured predicate.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func Do(ctx context.Context, cfg Config, operation func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				cfg.Logger.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		lastErr = err

		if !isRetryable(ctx, err, cfg.Retryable) {
			cfg.Logger.Debug("Error not retryable",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			var p *permanentError
			if errors.As(err, &p) {
				return p.err
			}
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		cfg.Logger.Warn("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(addJitter(delay, cfg.JitterFraction))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}

		delay = time.Duration(math.Min(float64(cfg.MaxDelay), float64(delay)*cfg.Multiplier))
	}

	return lastErr
}

func DoWithResult[T any](ctx context.Context, cfg Config, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})
	return result, err
}

func isRetryable(ctx context.Context, err error, predicate func(error) bool) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return false
	}
	if predicate == nil {
		return true
	}
	return predicate(err)
}

func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}

	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	if rand.Intn(2) == 0 {
		return duration - jitter
	}
	return duration + jitter
}
