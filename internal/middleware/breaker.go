package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned without invoking the wrapped call while
// the breaker refuses traffic.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open, retry in %s", e.RetryAfter.Round(time.Second))
}

// CircuitBreaker guards calls to the AI provider. After threshold
// consecutive failures it opens and rejects calls for the cooldown;
// the first call after the cooldown runs as a single half-open trial
// whose outcome closes or re-opens the circuit.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastFailure   time.Time
	openedAt      time.Time
	trialInFlight bool

	threshold int
	cooldown  time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCircuitBreaker creates a closed breaker from config
func NewCircuitBreaker(cfg *config.Config, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		state:     BreakerClosed,
		threshold: cfg.Breaker.Threshold,
		cooldown:  cfg.Breaker.Cooldown,
		logger:    logger,
		now:       time.Now,
	}
}

// Call runs fn under the breaker. While open it fails with
// *CircuitOpenError without invoking fn; otherwise it propagates fn's
// error after updating breaker state. Context cancellation inside fn
// counts as a failure like any other.
func (b *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	// fn runs without the breaker lock held; provider calls are slow.
	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the current state for observability.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *CircuitBreaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cooldown {
			return &CircuitOpenError{RetryAfter: b.cooldown - elapsed}
		}
		// Cooldown elapsed: this call becomes the half-open trial.
		b.state = BreakerHalfOpen
		b.trialInFlight = true
		b.logger.Debug("Circuit breaker half-open, allowing trial call")
		return nil
	case BreakerHalfOpen:
		if b.trialInFlight {
			return &CircuitOpenError{RetryAfter: b.cooldown}
		}
		b.trialInFlight = true
		return nil
	default:
		return nil
	}
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			b.logger.WithField("state", b.state.String()).Info("Circuit breaker closed after successful call")
		}
		b.state = BreakerClosed
		b.failures = 0
		b.trialInFlight = false
		return
	}

	b.lastFailure = b.now()

	if b.state == BreakerHalfOpen {
		// Failed trial: back to open, cooldown restarts.
		b.state = BreakerOpen
		b.openedAt = b.lastFailure
		b.trialInFlight = false
		b.logger.WithError(err).Warn("Circuit breaker trial failed, reopening")
		return
	}

	b.failures++
	if b.failures >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.openedAt = b.lastFailure
		b.logger.WithFields(logrus.Fields{
			"failures": b.failures,
			"cooldown": b.cooldown,
		}).Warn("Circuit breaker opened")
	}
}
