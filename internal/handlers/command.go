package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/session"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// How many entries /gastos shows.
const recentExpensesLimit = 10

// CommandHandler handles telegram commands
type CommandHandler struct {
	config    *config.Config
	ledger    *finance.Ledger
	sessions  *session.Store
	sender    *Sender
	localizer *i18n.Localizer
	logger    *logrus.Logger
	loc       *time.Location

	now func() time.Time
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	cfg *config.Config,
	ledger *finance.Ledger,
	sessions *session.Store,
	sender *Sender,
	localizer *i18n.Localizer,
	loc *time.Location,
	logger *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		config:    cfg,
		ledger:    ledger,
		sessions:  sessions,
		sender:    sender,
		localizer: localizer,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// HandleCommand processes telegram commands
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID
	lang := h.config.I18n.DefaultLanguage

	switch message.Command() {
	case "start":
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgWelcome, nil))
	case "help":
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgHelp, nil))
	case "clear":
		h.sessions.Clear(userID)
		h.logger.WithField("user_id", userID).Info("Session cleared by command")
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgContextCleared, nil))
	case "gastos":
		return h.handleExpenses(ctx, chatID, userID, lang)
	case "resumen":
		return h.handleSummary(ctx, chatID, userID, lang)
	case "facturas":
		return h.handlePendingBills(ctx, chatID, userID, lang)
	case "metas":
		return h.handleGoals(ctx, chatID, userID, lang)
	case "stats":
		return h.handleStats(ctx, chatID, userID, lang)
	default:
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgUnknownCommand, nil))
	}
}

// handleExpenses renders the current month's latest expenses
func (h *CommandHandler) handleExpenses(ctx context.Context, chatID, userID int64, lang string) error {
	month, year := h.currentPeriod()

	expenses, err := h.ledger.ListExpenses(ctx, userID, month, year, "")
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}
	if len(expenses) == 0 {
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgSummaryNoSpend, nil))
	}

	if len(expenses) > recentExpensesLimit {
		expenses = expenses[len(expenses)-recentExpensesLimit:]
	}

	lines := []string{h.localizer.Get(lang, i18n.MsgExpensesHeader, map[string]interface{}{
		"Month": h.localizer.MonthName(lang, month),
	})}
	for _, e := range expenses {
		lines = append(lines, h.localizer.Get(lang, i18n.MsgExpenseLine, map[string]interface{}{
			"Description": e.Description,
			"Amount":      h.localizer.Money(e.Amount),
			"Category":    e.Category,
		}))
	}

	return h.sender.Send(ctx, chatID, strings.Join(lines, "\n"))
}

// handleSummary renders the per-category breakdown for the month
func (h *CommandHandler) handleSummary(ctx context.Context, chatID, userID int64, lang string) error {
	month, year := h.currentPeriod()

	summary, err := h.ledger.SummarizeExpenses(ctx, userID, month, year)
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}
	if summary.Count == 0 {
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgSummaryNoSpend, nil))
	}

	lines := []string{h.localizer.Get(lang, i18n.MsgSummaryHeader, map[string]interface{}{
		"Month": h.localizer.MonthName(lang, month),
	})}
	for _, cat := range summary.ByCategory {
		lines = append(lines, h.localizer.Get(lang, i18n.MsgSummaryLine, map[string]interface{}{
			"Category": cat.Category,
			"Amount":   h.localizer.Money(cat.Total),
		}))
	}
	lines = append(lines, h.localizer.Get(lang, i18n.MsgSummaryTotal, map[string]interface{}{
		"Total": h.localizer.Money(summary.Total),
		"Count": summary.Count,
	}))

	return h.sender.Send(ctx, chatID, strings.Join(lines, "\n"))
}

// handlePendingBills renders this month's unpaid bills with the total
func (h *CommandHandler) handlePendingBills(ctx context.Context, chatID, userID int64, lang string) error {
	month, year := h.currentPeriod()

	pending, err := h.ledger.PendingBills(ctx, userID, month, year)
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}
	if len(pending) == 0 {
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgNoPendingBills, nil))
	}

	lines := []string{h.localizer.Get(lang, i18n.MsgPendingHeader, map[string]interface{}{
		"Month": h.localizer.MonthName(lang, month),
	})}
	total := decimal.Zero
	for _, bill := range pending {
		total = total.Add(bill.Amount)
		lines = append(lines, h.localizer.Get(lang, i18n.MsgPendingLine, map[string]interface{}{
			"Description": bill.Description,
			"Amount":      h.localizer.Money(bill.Amount),
			"Day":         bill.DayOfMonth,
		}))
	}
	lines = append(lines, h.localizer.Get(lang, i18n.MsgPendingTotal, map[string]interface{}{
		"Total": h.localizer.Money(total),
	}))

	return h.sender.Send(ctx, chatID, strings.Join(lines, "\n"))
}

// handleGoals renders active savings goals and their progress
func (h *CommandHandler) handleGoals(ctx context.Context, chatID, userID int64, lang string) error {
	goals, err := h.ledger.ListGoals(ctx, userID, true)
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}
	if len(goals) == 0 {
		return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgNoGoals, nil))
	}

	lines := []string{h.localizer.Get(lang, i18n.MsgGoalsHeader, nil)}
	for _, goal := range goals {
		lines = append(lines, h.localizer.Get(lang, i18n.MsgGoalLine, map[string]interface{}{
			"Name":     goal.Name,
			"Current":  h.localizer.Money(goal.CurrentAmount),
			"Target":   h.localizer.Money(goal.TargetAmount),
			"Progress": fmt.Sprintf("%.1f%%", goal.DisplayProgress()),
		}))
	}

	return h.sender.Send(ctx, chatID, strings.Join(lines, "\n"))
}

// handleStats reports conversation and account counters
func (h *CommandHandler) handleStats(ctx context.Context, chatID, userID int64, lang string) error {
	bills, err := h.ledger.ListBills(ctx, userID, true)
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}
	goals, err := h.ledger.ListGoals(ctx, userID, true)
	if err != nil {
		return h.sendError(ctx, chatID, lang, err)
	}

	return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgStats, map[string]interface{}{
		"Turns": h.sessions.Len(userID),
		"Bills": len(bills),
		"Goals": len(goals),
	}))
}

func (h *CommandHandler) sendError(ctx context.Context, chatID int64, lang string, err error) error {
	h.logger.WithError(err).WithField("chat_id", chatID).Error("Command failed")
	return h.sender.Send(ctx, chatID, h.localizer.Get(lang, i18n.MsgError, nil))
}

func (h *CommandHandler) currentPeriod() (int, int) {
	now := h.now().In(h.loc)
	return int(now.Month()), now.Year()
}
