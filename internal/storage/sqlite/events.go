package sqlite

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogEvent appends one row to the event log. Event logging is best-effort
// observability; callers decide whether a failure matters.
func (c *Client) LogEvent(eventType, requestID, sessionID, userIDHash string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT INTO events (timestamp, event_type, request_id, session_id, user_id_hash, payload_json) VALUES (?, ?, ?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339),
		eventType,
		nullable(requestID),
		nullable(sessionID),
		nullable(userIDHash),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (c *Client) CountEvents(eventType string) (int, error) {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM events WHERE event_type = ?", eventType).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
