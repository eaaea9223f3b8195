package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("provider down")

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*CircuitBreaker, func(time.Duration)) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Breaker = config.BreakerConfig{Threshold: threshold, Cooldown: cooldown}

	cb := NewCircuitBreaker(cfg, testLogger())
	clock := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	return cb, func(d time.Duration) { clock = clock.Add(d) }
}

func fail(cb *CircuitBreaker) error {
	return cb.Call(context.Background(), func(context.Context) error { return errProviderDown })
}

func succeed(cb *CircuitBreaker) error {
	return cb.Call(context.Background(), func(context.Context) error { return nil })
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, 30*time.Second)

	require.Equal(t, BreakerClosed, cb.State())
	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}

	assert.Equal(t, BreakerOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	cb, advance := newTestBreaker(t, 1, 30*time.Second)
	require.Error(t, fail(cb))

	advance(10 * time.Second)
	invoked := false
	err := cb.Call(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 20*time.Second, openErr.RetryAfter)
	assert.False(t, invoked, "wrapped call must not run while open")
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(t, 3, 30*time.Second)

	require.Error(t, fail(cb))
	require.Error(t, fail(cb))
	require.NoError(t, succeed(cb))
	assert.Zero(t, cb.Failures())

	require.Error(t, fail(cb))
	require.Error(t, fail(cb))
	assert.Equal(t, BreakerClosed, cb.State(), "streak restarted after success")
}

func TestBreakerHalfOpenTrialCloses(t *testing.T) {
	cb, advance := newTestBreaker(t, 1, 30*time.Second)
	require.Error(t, fail(cb))
	require.Equal(t, BreakerOpen, cb.State())

	advance(31 * time.Second)
	require.NoError(t, succeed(cb))

	assert.Equal(t, BreakerClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestBreakerHalfOpenTrialReopens(t *testing.T) {
	cb, advance := newTestBreaker(t, 1, 30*time.Second)
	require.Error(t, fail(cb))

	advance(31 * time.Second)
	require.Error(t, fail(cb))
	require.Equal(t, BreakerOpen, cb.State())

	// The failed trial restarted the cooldown
	err := succeed(cb)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 30*time.Second, openErr.RetryAfter)
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	cb, advance := newTestBreaker(t, 1, 30*time.Second)
	require.Error(t, fail(cb))
	advance(31 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	require.Equal(t, BreakerHalfOpen, cb.State())

	err := succeed(cb)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr, "second call must not ride along with the trial")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half_open", BreakerHalfOpen.String())
}
