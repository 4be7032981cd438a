package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	// IgnoreError reports errors that should not count against the breaker,
	// such as a rejected request that says nothing about the remote's health.
	IgnoreError   func(err error) bool
	OnStateChange func(name string, from, to string)
	Logger        *zap.Logger
}

type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	breaker := &CircuitBreaker{name: name, logger: cfg.Logger}
	breaker.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if cfg.IgnoreError != nil && cfg.IgnoreError(err) {
				return true
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cfg.Logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})

	return breaker
}

func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		b.logger.Debug("Circuit breaker rejected call", zap.String("name", b.name))
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyRequests
	}
	return err
}

func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns "closed", "half-open" or "open".
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
