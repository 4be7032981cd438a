package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/pkg/logger"
)

// Check pings one dependency for readiness.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []Check
	timeout time.Duration
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports 503 when any dependency fails its ping.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	status := fiber.StatusOK
	deps := fiber.Map{}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", check.Name), zap.Error(err))
			deps[check.Name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		deps[check.Name] = "ok"
	}

	state := "ready"
	if status != fiber.StatusOK {
		state = "not ready"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":       state,
		"dependencies": deps,
	})
}
