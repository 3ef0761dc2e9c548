// Package quota enforces the per-user-per-day and per-session question caps.
package quota

import (
	"fmt"
	"time"

	"github.com/mortgage-agent/backend/internal/storage/sqlite"
	"github.com/mortgage-agent/backend/pkg/utils"
)

// Rejection reasons surfaced to callers. Policy outcomes, not errors.
const (
	ReasonAllowed               = sqlite.UsageAllowed
	ReasonDayLimit              = sqlite.UsageDayLimit
	ReasonSessionLimit          = sqlite.UsageSessionLimit
	ReasonSessionNotInitialized = sqlite.UsageSessionNotInitialized
)

type Tracker struct {
	db           *sqlite.Client
	salt         string
	dayLimit     int
	sessionLimit int

	// now is swappable so tests can pin the usage date.
	now func() time.Time
}

func NewTracker(db *sqlite.Client, salt string, dayLimit, sessionLimit int) *Tracker {
	return &Tracker{
		db:           db,
		salt:         salt,
		dayLimit:     dayLimit,
		sessionLimit: sessionLimit,
		now:          time.Now,
	}
}

// HashIdentity maps a raw user identifier to the digest under which quotas
// are tracked.
func (t *Tracker) HashIdentity(rawID string) string {
	return utils.HashIdentity(rawID, t.salt)
}

func (t *Tracker) EnsureSession(sessionID, userIDHash string) error {
	if err := t.db.EnsureSession(sessionID, userIDHash); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	return nil
}

// CheckAndIncrement admits or rejects one question. On admission both the
// daily and the session counter have already been incremented atomically.
func (t *Tracker) CheckAndIncrement(userIDHash, sessionID string) (bool, string, error) {
	today := t.now().UTC().Format("2006-01-02")

	allowed, reason, err := t.db.CheckAndIncrementUsage(today, userIDHash, sessionID, t.dayLimit, t.sessionLimit)
	if err != nil {
		return false, "", fmt.Errorf("quota: %w", err)
	}
	return allowed, reason, nil
}
