package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/dispatch"
	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/fin-ai-tgbot-go/internal/services/ai"
	"github.com/fin-ai-tgbot-go/internal/services/storage"
	"github.com/fin-ai-tgbot-go/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider pops one canned reply per Chat call and records
// every request it saw. When the script runs out it returns repeat if
// set, else a plain acknowledgement.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []*ai.ChatReply
	repeat   *ai.ChatReply
	err      error
	requests []*ai.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req *ai.ChatRequest) (*ai.ChatReply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.replies) == 0 {
		if p.repeat != nil {
			return p.repeat, nil
		}
		return &ai.ChatReply{Content: "ok"}, nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			SystemPrompt:  "Eres un asistente financiero.",
			MaxToolRounds: 3,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 10, Window: time.Minute},
		Breaker:   config.BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second},
		Session: config.SessionConfig{
			MaxTurns:      40,
			Oversize:      50,
			StaleAfter:    2 * time.Hour,
			SweepInterval: 2 * time.Hour,
		},
		I18n: config.I18nConfig{
			DefaultLanguage: "es",
			Languages:       []string{"es", "en"},
			Path:            "../../configs/i18n",
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, provider ai.Service) (*Orchestrator, *session.Store) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	require.NoError(t, err)

	metrics := middleware.NewMetrics()
	sessions := session.NewStore(&cfg.Session, metrics, logger)
	limiter := middleware.NewRateLimiter(cfg, logger)
	breaker := middleware.NewCircuitBreaker(cfg, logger)

	ledger := finance.NewLedger(storage.NewMemoryStore(), time.UTC, logger)
	dispatcher := dispatch.NewDispatcher(ledger, time.UTC, metrics, logger)

	o := NewOrchestrator(cfg, sessions, limiter, breaker, provider, dispatcher, localizer, metrics, time.UTC, logger)
	return o, sessions
}

func localized(t *testing.T, cfg *config.Config, id string, data map[string]interface{}) string {
	t.Helper()
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	require.NoError(t, err)
	return localizer.Get(cfg.I18n.DefaultLanguage, id, data)
}

func TestHandleTurnPlainReply(t *testing.T) {
	provider := &scriptedProvider{replies: []*ai.ChatReply{{Content: "Hola, ¿en qué te ayudo?"}}}
	o, sessions := newTestOrchestrator(t, testConfig(), provider)

	reply := o.HandleTurn(context.Background(), 7, "hola")
	assert.Equal(t, "Hola, ¿en qué te ayudo?", reply)
	assert.Equal(t, 2, sessions.Len(7), "user turn and assistant turn")

	require.Equal(t, 1, provider.calls())
	req := provider.requests[0]
	assert.Contains(t, req.System, "Eres un asistente financiero.")
	assert.Contains(t, req.System, "Hoy es", "system prompt carries the date header")
	assert.NotEmpty(t, req.Tools)
	require.Len(t, req.Turns, 1)
	assert.Equal(t, "hola", req.Turns[0].Content)
}

func TestHandleTurnRunsToolRound(t *testing.T) {
	provider := &scriptedProvider{replies: []*ai.ChatReply{
		{ToolCalls: []models.ToolCall{{
			ID:        "call_1",
			Name:      "add_expense",
			Arguments: json.RawMessage(`{"description":"café","amount":8000,"category":"comida"}`),
		}}},
		{Content: "Anotado ✅"},
	}}
	o, sessions := newTestOrchestrator(t, testConfig(), provider)

	reply := o.HandleTurn(context.Background(), 7, "gasté 8 mil en café")
	assert.Equal(t, "Anotado ✅", reply)

	history := sessions.History(7)
	require.Len(t, history, 4)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, models.RoleTool, history[2].Role)
	assert.Equal(t, "call_1", history[2].ToolCallID)
	assert.Equal(t, "add_expense", history[2].Name)
	assert.Contains(t, history[2].Content, `"ok":true`)
	assert.Equal(t, models.RoleAssistant, history[3].Role)

	// The second provider round must see the tool result
	require.Equal(t, 2, provider.calls())
	turns := provider.requests[1].Turns
	require.NotEmpty(t, turns)
	assert.Equal(t, models.RoleTool, turns[len(turns)-1].Role)
}

func TestHandleTurnStopsAtRoundLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.MaxToolRounds = 2

	// The model keeps asking for tools and never produces text
	provider := &scriptedProvider{repeat: &ai.ChatReply{
		ToolCalls: []models.ToolCall{{ID: "call_1", Name: "list_goals"}},
	}}
	o, _ := newTestOrchestrator(t, cfg, provider)

	reply := o.HandleTurn(context.Background(), 7, "hola")
	assert.Equal(t, 3, provider.calls(), "initial round plus two tool rounds")
	assert.Equal(t, localized(t, cfg, i18n.MsgError, nil), reply,
		"an endless tool loop degrades to the generic error")
}

func TestHandleTurnRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Requests = 1

	provider := &scriptedProvider{}
	o, sessions := newTestOrchestrator(t, cfg, provider)
	ctx := context.Background()

	first := o.HandleTurn(ctx, 7, "hola")
	assert.Equal(t, "ok", first)

	second := o.HandleTurn(ctx, 7, "sigues ahí?")
	want := localized(t, cfg, i18n.MsgRateLimited, map[string]interface{}{"Seconds": 60})
	assert.Equal(t, want, second)

	assert.Equal(t, 2, sessions.Len(7), "rejected turns never touch the history")
	assert.Equal(t, 1, provider.calls())
}

func TestHandleTurnCircuitOpenReply(t *testing.T) {
	cfg := testConfig()
	cfg.Breaker.Threshold = 1

	provider := &scriptedProvider{err: errors.New("provider down")}
	o, sessions := newTestOrchestrator(t, cfg, provider)
	ctx := context.Background()

	first := o.HandleTurn(ctx, 7, "hola")
	assert.Equal(t, localized(t, cfg, i18n.MsgError, nil), first)

	// The breaker is open now, the provider must not be called again
	second := o.HandleTurn(ctx, 7, "hola?")
	want := localized(t, cfg, i18n.MsgServiceBusy, map[string]interface{}{"Seconds": 30})
	assert.Equal(t, want, second)
	assert.Equal(t, 1, provider.calls())

	history := sessions.History(7)
	require.Len(t, history, 2)
	for _, turn := range history {
		assert.Equal(t, models.RoleUser, turn.Role, "failed turns leave no assistant text behind")
	}
}

func TestSystemPromptIncludesDateHeader(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(), &scriptedProvider{})
	o.now = func() time.Time {
		return time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)
	}

	prompt := o.systemPrompt()
	assert.True(t, strings.HasPrefix(prompt, "Eres un asistente financiero."))
	assert.Contains(t, prompt, "Hoy es sábado 15 de marzo de 2025")
	assert.Contains(t, prompt, "hora 14:30")
	assert.Contains(t, prompt, "se refiere a marzo de 2025")
	assert.Contains(t, prompt, "(COP)")
}

// gateProvider measures how many Chat calls overlap.
type gateProvider struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (p *gateProvider) Chat(_ context.Context, _ *ai.ChatRequest) (*ai.ChatReply, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return &ai.ChatReply{Content: "ok"}, nil
}

func TestHandleTurnSerializesSameUser(t *testing.T) {
	provider := &gateProvider{}
	o, _ := newTestOrchestrator(t, testConfig(), provider)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.HandleTurn(context.Background(), 7, "hola")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.maxActive, "turns for one user must not interleave")
}
