package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
)

// RateLimitedError reports an admission rejection and how long the
// caller has to wait before the window admits again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// RateLimiter admits or rejects per-user requests.
type RateLimiter interface {
	// Admit reports whether the user may proceed. When it rejects,
	// retryAfter is the time until the oldest retained request leaves
	// the sliding window.
	Admit(userID int64) (allowed bool, retryAfter time.Duration)
	Reset(userID int64)
}

// UserRateLimiter implements sliding-window admission per user: on each
// call timestamps older than the window are purged, the request is
// admitted iff fewer than limit remain, and admission appends now.
type UserRateLimiter struct {
	enabled bool
	windows map[int64]*slidingWindow
	mu      sync.RWMutex
	limit   int
	window  time.Duration
	logger  *logrus.Logger

	cleanupInterval time.Duration
	now             func() time.Time
}

type slidingWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.Config, logger *logrus.Logger) RateLimiter {
	if !cfg.RateLimit.Enabled {
		return &UserRateLimiter{enabled: false}
	}

	rl := &UserRateLimiter{
		enabled:         true,
		windows:         make(map[int64]*slidingWindow),
		limit:           cfg.RateLimit.Requests,
		window:          cfg.RateLimit.Window,
		logger:          logger,
		cleanupInterval: 1 * time.Hour,
		now:             time.Now,
	}

	// Drop windows of users idle for a full cleanup interval
	go rl.cleanup()

	return rl
}

// Admit checks the user's window and records the request when allowed
func (r *UserRateLimiter) Admit(userID int64) (bool, time.Duration) {
	if !r.enabled {
		return true, 0
	}

	w := r.getWindow(userID)
	now := r.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.purge(now, r.window)

	if len(w.stamps) < r.limit {
		w.stamps = append(w.stamps, now)
		return true, 0
	}

	retryAfter := w.stamps[0].Add(r.window).Sub(now)
	r.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"retry_after": retryAfter.Round(time.Second),
	}).Debug("Rate limit exceeded")

	return false, retryAfter
}

// Reset clears the window for a user
func (r *UserRateLimiter) Reset(userID int64) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.windows, userID)
	r.mu.Unlock()
}

// purge drops timestamps that have left the window. Caller holds w.mu.
func (w *slidingWindow) purge(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// getWindow gets or creates the window for a user
func (r *UserRateLimiter) getWindow(userID int64) *slidingWindow {
	r.mu.RLock()
	w, exists := r.windows[userID]
	r.mu.RUnlock()

	if exists {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists := r.windows[userID]; exists {
		return w
	}

	w = &slidingWindow{}
	r.windows[userID] = w

	return w
}

// cleanup removes windows whose every timestamp has expired
func (r *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := r.now()

		r.mu.Lock()
		for userID, w := range r.windows {
			w.mu.Lock()
			w.purge(now, r.window)
			empty := len(w.stamps) == 0
			w.mu.Unlock()
			if empty {
				delete(r.windows, userID)
			}
		}
		size := len(r.windows)
		r.mu.Unlock()

		r.logger.WithField("active_windows", size).Debug("Rate limiter cleanup finished")
	}
}

// SecurityMiddleware provides inbound message checks
type SecurityMiddleware struct {
	maxBytes int
	logger   *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(maxBytes int, logger *logrus.Logger) *SecurityMiddleware {
	if maxBytes <= 0 {
		maxBytes = 4096
	}
	return &SecurityMiddleware{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// ValidateInput performs input validation
func (s *SecurityMiddleware) ValidateInput(text string) error {
	if len(text) > s.maxBytes {
		return fmt.Errorf("message too long: %d bytes", len(text))
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty message")
	}
	return nil
}
