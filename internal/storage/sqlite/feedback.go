package sqlite

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/storage/models"
	"github.com/mortgage-agent/backend/pkg/logger"
)

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(
		"INSERT INTO feedback (request_id, session_id, helpful, comment, created_at) VALUES (?, ?, ?, ?, ?)",
		feedback.RequestID,
		nullable(feedback.SessionID),
		helpful,
		nullable(feedback.Comment),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("request_id", feedback.RequestID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}
