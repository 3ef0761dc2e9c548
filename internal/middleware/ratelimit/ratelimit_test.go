package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(maxRequests int, windowSize time.Duration) (*RateLimiter, *time.Time) {
	rl := New(Config{MaxRequests: maxRequests, WindowSize: windowSize})
	rl.Stop()

	current := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }
	return rl, &current
}

func TestAllow(t *testing.T) {
	t.Run("allows up to the limit", func(t *testing.T) {
		rl, _ := newTestLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("1.2.3.4|/chat"))
		}
		assert.False(t, rl.Allow("1.2.3.4|/chat"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(1, time.Minute)

		assert.True(t, rl.Allow("1.2.3.4|/chat"))
		assert.False(t, rl.Allow("1.2.3.4|/chat"))

		assert.True(t, rl.Allow("5.6.7.8|/chat"))
		assert.True(t, rl.Allow("1.2.3.4|/feedback"))
	})

	t.Run("window slides", func(t *testing.T) {
		rl, now := newTestLimiter(2, time.Minute)

		assert.True(t, rl.Allow("k"))
		*now = now.Add(30 * time.Second)
		assert.True(t, rl.Allow("k"))
		assert.False(t, rl.Allow("k"))

		// First request falls out of the window; the second is still inside.
		*now = now.Add(31 * time.Second)
		assert.True(t, rl.Allow("k"))
		assert.False(t, rl.Allow("k"))
	})

	t.Run("rejected requests are not recorded", func(t *testing.T) {
		rl, now := newTestLimiter(1, time.Minute)

		assert.True(t, rl.Allow("k"))
		for i := 0; i < 5; i++ {
			assert.False(t, rl.Allow("k"))
		}

		// Only the admitted request occupies the window, so one slot frees
		// up exactly one window after it.
		*now = now.Add(time.Minute + time.Second)
		assert.True(t, rl.Allow("k"))
	})
}

func TestDefaults(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	assert.Equal(t, 30, rl.maxRequests)
	assert.Equal(t, time.Minute, rl.windowSize)
}

func TestStopTerminatesCleanup(t *testing.T) {
	rl := New(Config{})

	finished := make(chan struct{})
	go func() {
		rl.cleanup()
		close(finished)
	}()

	rl.Stop()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine still running after Stop")
	}
}

func TestRemoveStale(t *testing.T) {
	rl, now := newTestLimiter(5, time.Minute)

	assert.True(t, rl.Allow("stale"))
	*now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("fresh"))

	rl.removeStale()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.NotContains(t, rl.windows, "stale")
	assert.Contains(t, rl.windows, "fresh")
}
