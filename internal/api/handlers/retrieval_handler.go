package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/agent"
	"github.com/lexgraph/backend/internal/middleware/validation"
	"github.com/lexgraph/backend/internal/retrieval"
	"github.com/lexgraph/backend/pkg/logger"
	"github.com/lexgraph/backend/pkg/utils"
)

// RetrievalHandler exposes the two retrieval sources on their own.
type RetrievalHandler struct {
	graph    agent.GraphRetriever
	passages agent.PassageRetriever
}

func NewRetrievalHandler(graph agent.GraphRetriever, passages agent.PassageRetriever) *RetrievalHandler {
	return &RetrievalHandler{graph: graph, passages: passages}
}

type retrievalRequest struct {
	Query string `json:"query" validate:"required"`
}

func parseRetrievalRequest(c *fiber.Ctx) (*retrievalRequest, error) {
	var req retrievalRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Query = validation.Sanitize(req.Query)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return &req, nil
}

func (h *RetrievalHandler) VectorRAG(c *fiber.Ctx) error {
	req, respErr := parseRetrievalRequest(c)
	if req == nil {
		return respErr
	}

	hits, err := h.passages.Retrieve(c.UserContext(), req.Query)
	if err != nil {
		logger.Error("Vector retrieval failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"docs": retrieval.Passages(hits)})
}

func (h *RetrievalHandler) KGGraph(c *fiber.Ctx) error {
	req, respErr := parseRetrievalRequest(c)
	if req == nil {
		return respErr
	}

	res, err := h.graph.Retrieve(c.UserContext(), req.Query)
	if err != nil {
		logger.Error("Graph retrieval failed", zap.Error(err))
		return errorResponse(c, err)
	}

	rows := res.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"result": rows, "cypher": res.Cypher})
}
