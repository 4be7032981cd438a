package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLimitsPerClient(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2, Burst: 2})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	do := func(clientID string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Client-ID", clientID)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("a"))
	assert.Equal(t, fiber.StatusOK, do("b"))
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{IdleTTL: time.Minute})
	defer rl.Stop()

	rl.Allow("old")
	rl.Allow("fresh")
	rl.clients["old"].lastSeen = time.Now().Add(-2 * time.Minute)

	assert.Equal(t, 1, rl.evictIdle(time.Now()))
	assert.Contains(t, rl.clients, "fresh")
	assert.NotContains(t, rl.clients, "old")
}

func TestStopIsIdempotent(t *testing.T) {
	rl := New(Config{})
	rl.Stop()
	rl.Stop()
}
