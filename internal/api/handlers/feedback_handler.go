package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/metrics"
	"github.com/mortgage-agent/backend/internal/storage/models"
	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/pkg/logger"
)

type FeedbackHandler struct {
	db *sqlite.Client
}

func NewFeedbackHandler(db *sqlite.Client) *FeedbackHandler {
	return &FeedbackHandler{db: db}
}

func (h *FeedbackHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		RequestID string `json:"request_id"`
		SessionID string `json:"session_id"`
		Helpful   *bool  `json:"helpful"`
		Comment   string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse feedback body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.RequestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "request_id is required",
		})
	}
	if req.Helpful == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "helpful is required",
		})
	}

	err := h.db.StoreFeedback(&models.Feedback{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Helpful:   *req.Helpful,
		Comment:   req.Comment,
	})
	if err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	metrics.FeedbackTotal.WithLabelValues(strconv.FormatBool(*req.Helpful)).Inc()

	return c.JSON(fiber.Map{
		"status": "recorded",
	})
}
