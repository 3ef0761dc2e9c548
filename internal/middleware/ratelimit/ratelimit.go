package ratelimit

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mortgage-agent/backend/internal/metrics"
)

// window tracks request timestamps for one (client, path) pair. Timestamps
// older than the window duration are pruned on each check.
type window struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter enforces a sliding-window limit per client IP and path.
type RateLimiter struct {
	windows       map[string]*window
	mu            sync.RWMutex
	maxRequests   int
	windowSize    time.Duration
	logger        *zap.Logger
	cleanupTicker *time.Ticker
	done          chan struct{}
	now           func() time.Time
}

type Config struct {
	MaxRequests int
	WindowSize  time.Duration
	Logger      *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 30
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		windows:       make(map[string]*window),
		maxRequests:   cfg.MaxRequests,
		windowSize:    cfg.WindowSize,
		logger:        cfg.Logger,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := ClientIP(c)
		path := c.Path()

		if !rl.Allow(ip + "|" + path) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", path),
			)
			metrics.RateLimitRejections.WithLabelValues(path).Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

// Allow records one request for key and reports whether it stays within the
// window limit. Rejected requests are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	w, exists := rl.windows[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		w, exists = rl.windows[key]
		if !exists {
			w = &window{}
			rl.windows[key] = w
		}
		rl.mu.Unlock()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.windowSize)

	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= rl.maxRequests {
		return false
	}

	w.timestamps = append(w.timestamps, now)
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanupTicker.C:
			rl.removeStale()
		}
	}
}

// removeStale drops windows whose newest timestamp has aged out.
func (rl *RateLimiter) removeStale() {
	cutoff := rl.now().Add(-rl.windowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		w.mu.Lock()
		stale := len(w.timestamps) == 0 || !w.timestamps[len(w.timestamps)-1].After(cutoff)
		w.mu.Unlock()
		if stale {
			delete(rl.windows, key)
		}
	}
}

// Stop tears down the cleanup goroutine. Stopping the ticker alone would
// leave it parked on the channel forever.
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
	close(rl.done)
}

// ClientIP resolves the caller's address, preferring the first entry of
// X-Forwarded-For when a proxy sits in front.
func ClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.IP()
}
