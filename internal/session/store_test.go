package session

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(maxTurns, oversize int, staleAfter time.Duration) *Store {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewStore(&config.SessionConfig{
		MaxTurns:      maxTurns,
		Oversize:      oversize,
		StaleAfter:    staleAfter,
		SweepInterval: time.Hour,
	}, middleware.NewMetrics(), logger)
}

func userTurn(text string) models.Turn {
	return models.Turn{Role: models.RoleUser, Content: text}
}

func TestStoreAppendAndHistory(t *testing.T) {
	s := newTestStore(10, 20, time.Hour)

	s.Append(1, userTurn("hola"))
	s.Append(1, models.Turn{Role: models.RoleAssistant, Content: "¡Hola!"})

	turns := s.History(1)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, "hola", turns[0].Content)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)

	assert.Equal(t, 2, s.Len(1))
	assert.Equal(t, 1, s.Size())
}

func TestStoreHistoryReturnsCopy(t *testing.T) {
	s := newTestStore(10, 20, time.Hour)
	s.Append(1, userTurn("original"))

	turns := s.History(1)
	turns[0].Content = "mutated"

	assert.Equal(t, "original", s.History(1)[0].Content)
}

func TestStoreDropsOldestBeyondMaxTurns(t *testing.T) {
	s := newTestStore(4, 20, time.Hour)

	for i := 1; i <= 6; i++ {
		s.Append(1, userTurn(fmt.Sprintf("m%d", i)))
	}

	turns := s.History(1)
	require.Len(t, turns, 4)
	assert.Equal(t, "m3", turns[0].Content, "oldest turns are dropped first")
	assert.Equal(t, "m6", turns[3].Content)
}

func TestStoreUnknownUser(t *testing.T) {
	s := newTestStore(10, 20, time.Hour)

	assert.Nil(t, s.History(99))
	assert.Zero(t, s.Len(99))
}

func TestStoreClear(t *testing.T) {
	s := newTestStore(10, 20, time.Hour)
	s.Append(1, userTurn("hola"))
	s.Append(2, userTurn("buenas"))

	s.Clear(1)

	assert.Zero(t, s.Len(1))
	assert.Equal(t, 1, s.Len(2), "other sessions survive a clear")
	assert.Equal(t, 1, s.Size())
}

func TestStoreSweepRemovesStale(t *testing.T) {
	s := newTestStore(10, 20, 2*time.Hour)
	s.Append(1, userTurn("vieja"))
	s.Append(2, userTurn("fresca"))

	s.mu.Lock()
	s.sessions[1].LastActive = time.Now().Add(-3 * time.Hour)
	s.mu.Unlock()

	removed := s.Sweep(time.Now())

	assert.Equal(t, 1, removed)
	assert.Zero(t, s.Len(1))
	assert.Equal(t, 1, s.Len(2))
}

func TestStoreSweepRemovesOversized(t *testing.T) {
	s := newTestStore(10, 3, time.Hour)

	for i := 0; i < 4; i++ {
		s.Append(1, userTurn("x"))
	}

	removed := s.Sweep(time.Now())

	assert.Equal(t, 1, removed)
	assert.Zero(t, s.Size())
}

func TestStoreSweepKeepsFresh(t *testing.T) {
	s := newTestStore(10, 20, time.Hour)
	s.Append(1, userTurn("hola"))

	assert.Zero(t, s.Sweep(time.Now()))
	assert.Equal(t, 1, s.Size())
}
