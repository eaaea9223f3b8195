package session

import (
	"context"
	"sync"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Store keeps per-user conversation history in memory. History is
// bounded (oldest turns dropped beyond maxTurns) and never persisted
// anywhere: a restart starts every user with an empty session, which is
// intended behavior, not data loss.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*models.Session

	maxTurns      int
	oversize      int
	staleAfter    time.Duration
	sweepInterval time.Duration

	metrics *middleware.Metrics
	logger  *logrus.Logger
}

// NewStore creates an empty session store
func NewStore(cfg *config.SessionConfig, metrics *middleware.Metrics, logger *logrus.Logger) *Store {
	return &Store{
		sessions:      make(map[int64]*models.Session),
		maxTurns:      cfg.MaxTurns,
		oversize:      cfg.Oversize,
		staleAfter:    cfg.StaleAfter,
		sweepInterval: cfg.SweepInterval,
		metrics:       metrics,
		logger:        logger,
	}
}

// Append adds a turn to the user's session, creating it on first use.
// When the history exceeds maxTurns the oldest turns are dropped.
func (s *Store) Append(userID int64, turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &models.Session{UserID: userID}
		s.sessions[userID] = sess
	}

	sess.Turns = append(sess.Turns, turn)
	if overflow := len(sess.Turns) - s.maxTurns; overflow > 0 {
		trimmed := make([]models.Turn, s.maxTurns)
		copy(trimmed, sess.Turns[overflow:])
		sess.Turns = trimmed
	}
	sess.LastActive = time.Now()
}

// History returns a copied snapshot of the user's turns. The copy lets
// callers build provider requests without holding the store lock.
func (s *Store) History(userID int64) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}

	out := make([]models.Turn, len(sess.Turns))
	copy(out, sess.Turns)
	return out
}

// Clear removes the user's session
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// Len returns the user's history length
func (s *Store) Len(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[userID]; ok {
		return len(sess.Turns)
	}
	return 0
}

// Size returns the number of live sessions
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions that have gone stale or oversized and returns
// how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, sess := range s.sessions {
		if now.Sub(sess.LastActive) > s.staleAfter || len(sess.Turns) > s.oversize {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// Start runs the sweep job on its interval until ctx is done
func (s *Store) Start(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(time.Now())
			s.metrics.RecordSessionsSwept(removed)
			s.metrics.SetActiveSessions(float64(s.Size()))
			if removed > 0 {
				s.logger.WithField("removed", removed).Info("Session sweep finished")
			}
		}
	}
}
