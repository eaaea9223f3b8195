package middleware

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestLimiter returns a limiter on a frozen clock plus a function
// that advances it.
func newTestLimiter(t *testing.T, requests int, window time.Duration) (*UserRateLimiter, func(time.Duration)) {
	t.Helper()

	cfg := &config.Config{}
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: requests, Window: window}

	rl := NewRateLimiter(cfg, testLogger()).(*UserRateLimiter)
	clock := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, func(d time.Duration) { clock = clock.Add(d) }
}

func TestRateLimiterAdmitsUnderLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Admit(1)
		require.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, retryAfter := rl.Admit(1)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	rl, advance := newTestLimiter(t, 2, time.Minute)

	allowed, _ := rl.Admit(7)
	require.True(t, allowed)

	advance(30 * time.Second)
	allowed, _ = rl.Admit(7)
	require.True(t, allowed)

	// Full: retry-after counts down to when the oldest stamp expires
	allowed, retryAfter := rl.Admit(7)
	require.False(t, allowed)
	assert.Equal(t, 30*time.Second, retryAfter)

	advance(31 * time.Second)
	allowed, _ = rl.Admit(7)
	assert.True(t, allowed, "oldest stamp left the window")
}

func TestRateLimiterRejectionDoesNotConsume(t *testing.T) {
	rl, advance := newTestLimiter(t, 1, time.Minute)

	allowed, _ := rl.Admit(3)
	require.True(t, allowed)

	// Rejected attempts do not extend the penalty
	for i := 0; i < 5; i++ {
		advance(time.Second)
		allowed, _ = rl.Admit(3)
		require.False(t, allowed)
	}

	advance(56 * time.Second)
	allowed, _ = rl.Admit(3)
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	allowed, _ := rl.Admit(1)
	require.True(t, allowed)
	allowed, _ = rl.Admit(1)
	require.False(t, allowed)

	allowed, _ = rl.Admit(2)
	assert.True(t, allowed, "another user has an independent window")
}

func TestRateLimiterReset(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	rl.Admit(5)
	allowed, _ := rl.Admit(5)
	require.False(t, allowed)

	rl.Reset(5)
	allowed, _ = rl.Admit(5)
	assert.True(t, allowed)
}

func TestRateLimiterDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.RateLimit = config.RateLimitConfig{Enabled: false}
	rl := NewRateLimiter(cfg, testLogger())

	for i := 0; i < 100; i++ {
		allowed, retryAfter := rl.Admit(1)
		require.True(t, allowed)
		require.Zero(t, retryAfter)
	}
}

func TestSecurityValidateInput(t *testing.T) {
	sec := NewSecurityMiddleware(16, testLogger())

	assert.NoError(t, sec.ValidateInput("hola"))
	assert.Error(t, sec.ValidateInput(strings.Repeat("a", 17)), "oversized message")
	assert.Error(t, sec.ValidateInput("   "), "whitespace-only message")
}

func TestSecurityDefaultMaxBytes(t *testing.T) {
	sec := NewSecurityMiddleware(0, testLogger())

	assert.NoError(t, sec.ValidateInput(strings.Repeat("a", 4096)))
	assert.Error(t, sec.ValidateInput(strings.Repeat("a", 4097)))
}
