package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Turn roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Income kinds
const (
	IncomeSalary = "salary"
	IncomeExtra  = "extra"
)

// ExpenseCategories is the closed category set for variable expenses.
// Unknown categories are normalized to "general".
var ExpenseCategories = []string{
	"comida", "transporte", "entretenimiento", "servicios", "salud", "mercado", "general",
}

// GoalCategories is the closed category set for savings goals.
var GoalCategories = []string{
	"general", "viaje", "tecnología", "emergencia", "educación",
}

// ToolCall is a structured operation request emitted by the AI provider.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDef describes one operation in the provider-facing tool schema.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Turn is a single conversation entry. Assistant turns may carry tool
// calls; tool turns carry the call id and operation name they answer.
type Turn struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Session holds one user's bounded conversation history.
type Session struct {
	UserID     int64     `json:"user_id"`
	Turns      []Turn    `json:"turns"`
	LastActive time.Time `json:"last_active"`
}

// RecurringBill is a monthly obligation with a fixed due day. Bills are
// deactivated, never deleted, so payment history stays intact.
type RecurringBill struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	DayOfMonth  int             `json:"day_of_month"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PaymentRecord proves a recurring bill was paid for one (month, year).
// At most one record exists per (bill, month, year); the store enforces it.
type PaymentRecord struct {
	ID     int64           `json:"id"`
	UserID int64           `json:"user_id"`
	BillID int64           `json:"bill_id"`
	Month  int             `json:"month"`
	Year   int             `json:"year"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt time.Time       `json:"paid_at"`
}

// SavingsGoal tracks progress toward a target amount. CurrentAmount is
// stored unclamped; over-contribution is legal.
type SavingsGoal struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	Category      string          `json:"category"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Progress returns completion as a percentage, unclamped.
func (g *SavingsGoal) Progress() float64 {
	if g.TargetAmount.IsZero() {
		return 0
	}
	p, _ := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	return p
}

// DisplayProgress clamps Progress at 100 for rendering.
func (g *SavingsGoal) DisplayProgress() float64 {
	if p := g.Progress(); p < 100 {
		return p
	}
	return 100
}

// Contribution is an append-only deposit toward a savings goal.
type Contribution struct {
	ID     int64           `json:"id"`
	UserID int64           `json:"user_id"`
	GoalID int64           `json:"goal_id"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	At     time.Time       `json:"at"`
}

// Expense is a one-off variable expense. Month and Year are assigned
// from the configured timezone when the expense is recorded, so period
// queries do not depend on how timestamps are stored.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	At          time.Time       `json:"at"`
}

// Income is a salary or extra income entry for one (month, year).
// Salary is unique per period (upserted); extras accumulate.
type Income struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	Description string          `json:"description,omitempty"`
}

// Reminder is a user-scheduled message, deleted after delivery.
type Reminder struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeExpenseCategory maps unknown categories to "general".
func NormalizeExpenseCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range ExpenseCategories {
		if c == known {
			return c
		}
	}
	return "general"
}

// NormalizeGoalCategory maps unknown categories to "general".
func NormalizeGoalCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range GoalCategories {
		if c == known {
			return c
		}
	}
	return "general"
}
