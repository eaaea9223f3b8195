package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/dispatch"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/fin-ai-tgbot-go/internal/services/ai"
	"github.com/fin-ai-tgbot-go/internal/session"
	"github.com/sirupsen/logrus"
)

// The system prompt always speaks Spanish regardless of the UI
// language, so the date header uses fixed Spanish names.
var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// Orchestrator runs one conversation turn end to end: admission,
// history append, provider call through the circuit breaker, tool
// dispatch rounds, final response assembly. Turns for the same user
// serialize on a per-user mutex; different users run concurrently.
type Orchestrator struct {
	cfg        *config.Config
	sessions   *session.Store
	limiter    middleware.RateLimiter
	breaker    *middleware.CircuitBreaker
	provider   ai.Service
	dispatcher *dispatch.Dispatcher
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
	loc        *time.Location
	tools      []models.ToolDef

	mu        sync.RWMutex
	turnLocks map[int64]*sync.Mutex

	now func() time.Time
}

// NewOrchestrator creates a turn orchestrator
func NewOrchestrator(
	cfg *config.Config,
	sessions *session.Store,
	limiter middleware.RateLimiter,
	breaker *middleware.CircuitBreaker,
	provider ai.Service,
	dispatcher *dispatch.Dispatcher,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	loc *time.Location,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		sessions:   sessions,
		limiter:    limiter,
		breaker:    breaker,
		provider:   provider,
		dispatcher: dispatcher,
		localizer:  localizer,
		metrics:    metrics,
		logger:     logger,
		loc:        loc,
		tools:      dispatch.ToolDefs(),
		turnLocks:  make(map[int64]*sync.Mutex),
		now:        time.Now,
	}
}

// HandleTurn processes one user message and returns the reply text.
// Every failure mode maps to a localized message; the caller only has
// to send what it gets back.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID int64, text string) string {
	lock := o.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	start := o.now()

	if allowed, retryAfter := o.limiter.Admit(userID); !allowed {
		o.metrics.RecordRateLimitExceeded()
		o.metrics.RecordTurnProcessed("rate_limited")
		return o.localizer.Get(o.lang(), i18n.MsgRateLimited, map[string]interface{}{
			"Seconds": retrySeconds(retryAfter),
		})
	}

	o.sessions.Append(userID, models.Turn{Role: models.RoleUser, Content: text})

	reply, err := o.chat(ctx, o.sessions.History(userID))
	if err != nil {
		return o.failureReply(userID, err)
	}

	rounds := 0
	for reply.HasToolCalls() {
		if rounds >= o.cfg.Provider.MaxToolRounds {
			o.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"rounds":  rounds,
			}).Warn("Tool round limit reached, stopping dispatch")
			break
		}
		rounds++

		o.sessions.Append(userID, models.Turn{
			Role:      models.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})

		for _, res := range o.dispatcher.DispatchAll(ctx, userID, reply.ToolCalls) {
			o.sessions.Append(userID, models.Turn{
				Role:       models.RoleTool,
				Content:    res.Payload,
				ToolCallID: res.CallID,
				Name:       res.Name,
			})
		}

		reply, err = o.chat(ctx, o.sessions.History(userID))
		if err != nil {
			return o.failureReply(userID, err)
		}
	}

	content := strings.TrimSpace(reply.Content)
	if content == "" {
		o.logger.WithField("user_id", userID).Warn("Provider returned empty final reply")
		o.metrics.RecordTurnProcessed("provider_error")
		return o.localizer.Get(o.lang(), i18n.MsgError, nil)
	}

	o.sessions.Append(userID, models.Turn{Role: models.RoleAssistant, Content: content})
	o.metrics.RecordTurnProcessed("ok")

	o.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"rounds":   rounds,
		"duration": o.now().Sub(start).Round(time.Millisecond),
		"history":  o.sessions.Len(userID),
	}).Info("Turn processed")

	return content
}

// chat runs one provider round through the breaker and records the
// round-trip metric. A breaker rejection never reached the provider,
// so no duration is recorded for it.
func (o *Orchestrator) chat(ctx context.Context, turns []models.Turn) (*ai.ChatReply, error) {
	var reply *ai.ChatReply
	start := o.now()

	err := o.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		reply, callErr = o.provider.Chat(ctx, &ai.ChatRequest{
			System: o.systemPrompt(),
			Turns:  turns,
			Tools:  o.tools,
		})
		return callErr
	})
	o.metrics.SetCircuitState(o.breaker.State())

	var openErr *middleware.CircuitOpenError
	switch {
	case errors.As(err, &openErr):
	case err != nil:
		o.metrics.RecordProviderRequest("error", o.now().Sub(start))
	default:
		o.metrics.RecordProviderRequest("success", o.now().Sub(start))
	}

	return reply, err
}

// failureReply converts a turn failure into the message the user sees.
func (o *Orchestrator) failureReply(userID int64, err error) string {
	var openErr *middleware.CircuitOpenError
	if errors.As(err, &openErr) {
		o.metrics.RecordTurnProcessed("circuit_open")
		o.logger.WithField("user_id", userID).Debug("Turn rejected, circuit open")
		return o.localizer.Get(o.lang(), i18n.MsgServiceBusy, map[string]interface{}{
			"Seconds": retrySeconds(openErr.RetryAfter),
		})
	}

	o.metrics.RecordTurnProcessed("provider_error")
	o.logger.WithError(err).WithField("user_id", userID).Error("Provider call failed")
	return o.localizer.Get(o.lang(), i18n.MsgError, nil)
}

// systemPrompt combines the configured instruction with a current-date
// header so "este mes" and relative dates resolve correctly.
func (o *Orchestrator) systemPrompt() string {
	now := o.now().In(o.loc)
	header := fmt.Sprintf(
		"Hoy es %s %d de %s de %d (%s, hora %s). Cuando el usuario hable de \"este mes\" se refiere a %s de %d. Todas las cifras son pesos colombianos (COP).",
		weekdaysES[now.Weekday()], now.Day(), monthsES[now.Month()], now.Year(),
		now.Format("2006-01-02"), now.Format("15:04"),
		monthsES[now.Month()], now.Year(),
	)
	return o.cfg.Provider.SystemPrompt + "\n\n" + header
}

func (o *Orchestrator) lang() string {
	return o.cfg.I18n.DefaultLanguage
}

// userLock returns the mutex serializing this user's turns. Locks are
// never removed; the map grows with the distinct-user count, which for
// a personal bot stays tiny.
func (o *Orchestrator) userLock(userID int64) *sync.Mutex {
	o.mu.RLock()
	lock, ok := o.turnLocks[userID]
	o.mu.RUnlock()

	if ok {
		return lock
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Double-check after acquiring write lock
	if lock, ok := o.turnLocks[userID]; ok {
		return lock
	}

	lock = &sync.Mutex{}
	o.turnLocks[userID] = lock

	return lock
}

func retrySeconds(d time.Duration) int {
	s := int(d.Round(time.Second) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
