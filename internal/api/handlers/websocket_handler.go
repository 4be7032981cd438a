package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/lexgraph/backend/internal/middleware/validation"
	"github.com/lexgraph/backend/pkg/logger"
)

// Message is both the inbound question envelope and every outbound event.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`

	QueryID    string `json:"query_id,omitempty"`
	Route      string `json:"route,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	ChosenVote int    `json:"chosen_vote,omitempty"`
	LatencyMS  int    `json:"latency_ms,omitempty"`
}

type WebSocketHandler struct {
	agent   AgentService
	timeout time.Duration
}

func NewWebSocketHandler(agent AgentService, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WebSocketHandler{
		agent:   agent,
		timeout: timeout,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg Message
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "question" {
			h.send(c, Message{Type: "error", Error: "unsupported message type: " + msg.Type})
			continue
		}

		if err := h.streamAnswer(c, validation.Sanitize(msg.Content)); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.send(c, Message{Type: "error", Error: err.Error()})
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp, err := h.agent.AskWithProgress(ctx, question, func(stage string) {
		h.send(c, Message{Type: "status", Stage: stage})
	})
	if err != nil {
		return err
	}

	for _, piece := range SplitForStreaming(resp.Answer) {
		if err := c.WriteJSON(Message{Type: "chunk", Content: piece}); err != nil {
			return err
		}
	}

	return c.WriteJSON(Message{
		Type:       "complete",
		QueryID:    resp.QueryID,
		Route:      resp.Route,
		Cached:     resp.Cached,
		ChosenVote: resp.ChosenVote,
		LatencyMS:  resp.LatencyMS,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg Message) {
	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("WebSocket write failed", zap.Error(err))
	}
}

// SplitForStreaming cuts an answer into word pieces that concatenate back to the
// original text. Each piece keeps its trailing whitespace.
func SplitForStreaming(text string) []string {
	var pieces []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
