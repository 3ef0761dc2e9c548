package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/query"
	"github.com/mortgage-agent/backend/pkg/logger"
)

type ChatHandler struct {
	engine *query.Engine
}

func NewChatHandler(engine *query.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	start := time.Now()
	response, err := h.engine.ProcessChat(c.Context(), query.ChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	metrics.ChatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Failed to process chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	if response.Rejected {
		status := fiber.StatusTooManyRequests
		if response.RejectReason == query.ReasonCharLimit {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error":      "Request rejected",
			"reason":     response.RejectReason,
			"request_id": response.RequestID,
			"session_id": response.SessionID,
		})
	}

	return c.JSON(response)
}
