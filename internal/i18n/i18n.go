package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
	printer         *message.Printer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	path := cfg.Path
	if path == "" {
		path = "configs/i18n"
	}

	// Load language files
	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(filepath.Join(path, lang+".json")); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	tag, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		tag = language.Spanish
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
		printer:         message.NewPrinter(tag),
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// MonthName returns the localized name of a month (1-12).
func (l *Localizer) MonthName(lang string, month int) string {
	return l.Get(lang, fmt.Sprintf("month_%d", month), nil)
}

// Money renders an amount as Colombian pesos with locale digit grouping,
// e.g. 1234567 -> "$1.234.567" under the default (es) locale.
func (l *Localizer) Money(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	if amount.IsInteger() {
		return l.printer.Sprintf("$%.0f", f)
	}
	return l.printer.Sprintf("$%.2f", f)
}

// Message IDs
const (
	MsgWelcome        = "welcome"
	MsgHelp           = "help"
	MsgContextCleared = "context_cleared"
	MsgStats          = "stats"
	MsgUnknownCommand = "unknown_command"
	MsgError          = "error"
	MsgMessageTooLong = "message_too_long"
	MsgTextOnly       = "text_only"
	MsgRateLimited    = "rate_limited"
	MsgServiceBusy    = "service_busy"

	MsgPendingHeader  = "pending_header"
	MsgPendingLine    = "pending_line"
	MsgPendingTotal   = "pending_total"
	MsgNoPendingBills = "no_pending_bills"

	MsgSummaryHeader  = "summary_header"
	MsgSummaryLine    = "summary_line"
	MsgSummaryTotal   = "summary_total"
	MsgSummaryNoSpend = "summary_no_spend"

	MsgExpensesHeader = "expenses_header"
	MsgExpenseLine    = "expense_line"

	MsgGoalsHeader = "goals_header"
	MsgGoalLine    = "goal_line"
	MsgNoGoals     = "no_goals"

	MsgBillsDueHeader = "bills_due_header"
	MsgBillsDueLine   = "bills_due_line"
	MsgBillsDueTotal  = "bills_due_total"
	MsgReminder       = "reminder"
)
