package quota

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortgage-agent/backend/internal/storage/sqlite"
)

func newTestTracker(t *testing.T, dayLimit, sessionLimit int) *Tracker {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "quota.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewTracker(db, "test-salt", dayLimit, sessionLimit)
}

func TestHashIdentity(t *testing.T) {
	tracker := newTestTracker(t, 10, 10)

	h1 := tracker.HashIdentity("user@example.com")
	h2 := tracker.HashIdentity("user@example.com")
	h3 := tracker.HashIdentity("other@example.com")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.NotContains(t, h1, "user@example.com")

	other := NewTracker(nil, "different-salt", 10, 10)
	assert.NotEqual(t, h1, other.HashIdentity("user@example.com"))
}

func TestCheckAndIncrement(t *testing.T) {
	t.Run("allows up to session limit", func(t *testing.T) {
		tracker := newTestTracker(t, 10, 3)
		userHash := tracker.HashIdentity("user-a")
		require.NoError(t, tracker.EnsureSession("sess-1", userHash))

		for i := 0; i < 3; i++ {
			allowed, reason, err := tracker.CheckAndIncrement(userHash, "sess-1")
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, ReasonAllowed, reason)
		}

		allowed, reason, err := tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, ReasonSessionLimit, reason)
	})

	t.Run("day limit spans sessions", func(t *testing.T) {
		tracker := newTestTracker(t, 2, 10)
		userHash := tracker.HashIdentity("user-a")
		require.NoError(t, tracker.EnsureSession("sess-1", userHash))
		require.NoError(t, tracker.EnsureSession("sess-2", userHash))

		allowed, _, err := tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, _, err = tracker.CheckAndIncrement(userHash, "sess-2")
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, reason, err := tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, ReasonDayLimit, reason)
	})

	t.Run("unknown session rejected", func(t *testing.T) {
		tracker := newTestTracker(t, 10, 10)
		userHash := tracker.HashIdentity("user-a")

		allowed, reason, err := tracker.CheckAndIncrement(userHash, "sess-none")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, ReasonSessionNotInitialized, reason)
	})

	t.Run("quota resets at utc midnight", func(t *testing.T) {
		tracker := newTestTracker(t, 1, 10)
		userHash := tracker.HashIdentity("user-a")
		require.NoError(t, tracker.EnsureSession("sess-1", userHash))

		day1 := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
		tracker.now = func() time.Time { return day1 }

		allowed, _, err := tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, reason, err := tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		require.False(t, allowed)
		require.Equal(t, ReasonDayLimit, reason)

		tracker.now = func() time.Time { return day1.Add(2 * time.Minute) }

		allowed, _, err = tracker.CheckAndIncrement(userHash, "sess-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}
