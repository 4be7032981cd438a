package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/retrieval"
	"github.com/lexgraph/backend/internal/synthesis"
	"github.com/lexgraph/backend/pkg/circuitbreaker"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		return fiber.StatusBadRequest
	case errors.Is(err, retrieval.ErrUnsafeCypher):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, synthesis.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
