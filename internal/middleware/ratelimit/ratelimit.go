package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key (X-Client-ID header, else IP).
type RateLimiter struct {
	clients       map[string]*client
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	idleTTL       time.Duration
	logger        *zap.Logger
	cleanupTicker *time.Ticker
	done          chan struct{}
	stopOnce      sync.Once
}

type Config struct {
	MaxRequestsPerMinute int
	Burst                int
	IdleTTL              time.Duration
	Logger               *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.MaxRequestsPerMinute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		clients:       make(map[string]*client),
		limit:         rate.Every(time.Minute / time.Duration(cfg.MaxRequestsPerMinute)),
		burst:         cfg.Burst,
		idleTTL:       cfg.IdleTTL,
		logger:        cfg.Logger,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if id := c.Get("X-Client-ID"); id != "" {
			key = id
		}

		if !rl.Allow(key) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.done:
			return
		case now := <-rl.cleanupTicker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
			evicted++
		}
	}
	return evicted
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.done)
	})
}
