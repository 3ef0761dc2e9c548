package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mortgage-agent/backend/internal/storage/models"
)

// Usage check outcomes. These are policy decisions, not errors.
const (
	UsageAllowed               = "OK"
	UsageDayLimit              = "DAY_LIMIT"
	UsageSessionLimit          = "SESSION_LIMIT"
	UsageSessionNotInitialized = "SESSION_NOT_INITIALIZED"
)

// EnsureSession inserts a session row with a zero counter if none exists.
// An existing session's counter is never overwritten.
func (c *Client) EnsureSession(sessionID, userIDHash string) error {
	query := `
		INSERT INTO sessions (session_id, user_id_hash, created_at, question_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(session_id) DO NOTHING
	`

	_, err := c.db.Exec(query, sessionID, userIDHash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

func (c *Client) GetSession(sessionID string) (*models.Session, error) {
	var s models.Session
	var createdAt string

	err := c.db.QueryRow(
		"SELECT session_id, user_id_hash, created_at, question_count FROM sessions WHERE session_id = ?",
		sessionID,
	).Scan(&s.SessionID, &s.UserIDHash, &createdAt, &s.QuestionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}

// CheckAndIncrementUsage performs the quota read-then-write as one immediate
// transaction, so two concurrent requests cannot both pass the same limit
// check and push a counter past its cap.
func (c *Client) CheckAndIncrementUsage(usageDate, userIDHash, sessionID string, dayLimit, sessionLimit int) (bool, string, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return false, "", fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	var dailyCount int
	err = tx.QueryRow(
		"SELECT question_count FROM daily_usage WHERE usage_date = ? AND user_id_hash = ?",
		usageDate, userIDHash,
	).Scan(&dailyCount)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, "", fmt.Errorf("failed to read daily usage: %w", err)
	}
	if dailyCount >= dayLimit {
		return false, UsageDayLimit, nil
	}

	var sessionCount int
	err = tx.QueryRow("SELECT question_count FROM sessions WHERE session_id = ?", sessionID).Scan(&sessionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, UsageSessionNotInitialized, nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to read session usage: %w", err)
	}
	if sessionCount >= sessionLimit {
		return false, UsageSessionLimit, nil
	}

	_, err = tx.Exec(`
		INSERT INTO daily_usage (usage_date, user_id_hash, question_count)
		VALUES (?, ?, 1)
		ON CONFLICT(usage_date, user_id_hash)
		DO UPDATE SET question_count = question_count + 1
	`, usageDate, userIDHash)
	if err != nil {
		return false, "", fmt.Errorf("failed to upsert daily usage: %w", err)
	}

	_, err = tx.Exec("UPDATE sessions SET question_count = question_count + 1 WHERE session_id = ?", sessionID)
	if err != nil {
		return false, "", fmt.Errorf("failed to increment session usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("failed to commit usage transaction: %w", err)
	}

	return true, UsageAllowed, nil
}

func (c *Client) GetDailyUsage(usageDate, userIDHash string) (*models.DailyUsage, error) {
	usage := models.DailyUsage{UsageDate: usageDate, UserIDHash: userIDHash}

	err := c.db.QueryRow(
		"SELECT question_count FROM daily_usage WHERE usage_date = ? AND user_id_hash = ?",
		usageDate, userIDHash,
	).Scan(&usage.QuestionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return &usage, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}

	return &usage, nil
}
