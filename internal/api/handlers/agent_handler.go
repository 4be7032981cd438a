package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/middleware/validation"
	"github.com/lexgraph/backend/internal/storage/models"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/utils"
)

type AgentService interface {
	Ask(ctx context.Context, question string) (*agent.Response, error)
	AskWithProgress(ctx context.Context, question string, progress func(stage string)) (*agent.Response, error)
}

type HistoryReader interface {
	GetQueryHistory(limit int) ([]models.QueryRecord, error)
}

type AgentHandler struct {
	agent   AgentService
	history HistoryReader
}

func NewAgentHandler(agent AgentService, history HistoryReader) *AgentHandler {
	return &AgentHandler{
		agent:   agent,
		history: history,
	}
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
}

func (h *AgentHandler) Ask(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Question = validation.Sanitize(req.Question)
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := h.agent.Ask(c.UserContext(), req.Question)
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"query_id":    resp.QueryID,
		"answer":      resp.Answer,
		"route":       resp.Route,
		"cached":      resp.Cached,
		"chosen_vote": resp.ChosenVote,
		"follow_up":   resp.FollowUp,
		"latency_ms":  resp.LatencyMS,
	})
}

type historyQuery struct {
	Limit int `query:"limit" validate:"min=0,max=500"`
}

func (h *AgentHandler) History(c *fiber.Ctx) error {
	q := historyQuery{Limit: 50}
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid query parameters"})
	}
	if err := utils.ValidateStruct(q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	records, err := h.history.GetQueryHistory(q.Limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return errorResponse(c, err)
	}

	items := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		items = append(items, fiber.Map{
			"id":          r.ID,
			"question":    r.QueryText,
			"route":       r.Route,
			"answer":      r.Response,
			"chosen_vote": r.ChosenVote,
			"kg_rows":     r.KGRowCount,
			"passages":    r.PassageCount,
			"cached":      r.Cached,
			"error":       r.Error,
			"latency_ms":  r.LatencyMS,
			"created_at":  r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"history": items})
}
