package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const reasonUnknownOp = "unknown operation"

// Dispatcher parses model tool calls, runs them against the ledger and
// renders the outcomes as JSON tool results for the next provider turn.
type Dispatcher struct {
	ledger  *finance.Ledger
	metrics *middleware.Metrics
	logger  *logrus.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewDispatcher creates a dispatcher bound to the given ledger
func NewDispatcher(ledger *finance.Ledger, loc *time.Location, metrics *middleware.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
		loc:     loc,
		now:     time.Now,
	}
}

// Result is one tool call's outcome, ready for the provider round-trip.
type Result struct {
	CallID  string
	Name    string
	Payload string
}

// DispatchAll runs every call in order. A failing call becomes a
// structured failure payload and the remaining calls still run;
// nothing here aborts the turn.
func (d *Dispatcher) DispatchAll(ctx context.Context, userID int64, calls []models.ToolCall) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		payload, err := d.run(ctx, userID, call)

		label := call.Name
		status := "ok"
		if err != nil {
			status = "error"
			var vErr *ValidationError
			if errors.As(err, &vErr) && vErr.Reason == reasonUnknownOp {
				label = "unknown"
			}
			payload = failurePayload(err)
			d.logDispatchError(userID, call.Name, err)
		}
		d.metrics.RecordIntentDispatched(label, status)

		results = append(results, Result{CallID: call.ID, Name: call.Name, Payload: payload})
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, userID int64, call models.ToolCall) (string, error) {
	intent, err := d.Parse(call)
	if err != nil {
		return "", err
	}

	data, err := d.Dispatch(ctx, userID, intent)
	if err != nil {
		return "", err
	}

	body := struct {
		OK   bool `json:"ok"`
		Data any  `json:"data,omitempty"`
	}{OK: true, Data: data}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(encoded), nil
}

// Dispatch executes one validated intent and returns its data payload.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, intent Intent) (any, error) {
	switch in := intent.(type) {
	case CreateBill:
		bill, err := d.ledger.CreateBill(ctx, userID, in.Description, in.Amount, in.Category, in.DayOfMonth)
		if err != nil {
			return nil, err
		}
		return d.billPayload(bill), nil

	case PayBill:
		payment, bill, err := d.ledger.MarkPaid(ctx, userID, in.Ref, in.Amount, in.Month, in.Year)
		if err != nil {
			return nil, err
		}
		return paymentPayload{
			BillID:      bill.ID,
			Description: bill.Description,
			Amount:      payment.Amount,
			Month:       payment.Month,
			Year:        payment.Year,
		}, nil

	case ListBills:
		statuses, err := d.ledger.BillsStatus(ctx, userID, 0, 0)
		if err != nil {
			return nil, err
		}

		now := d.now()
		pendingTotal := decimal.Zero
		bills := make([]billStatusPayload, 0, len(statuses))
		for _, status := range statuses {
			if !status.Paid {
				pendingTotal = pendingTotal.Add(status.Bill.Amount)
			}
			if status.Paid && !in.IncludePaid {
				continue
			}
			bills = append(bills, billStatusPayload{
				BillStatus: status,
				NextDue:    d.ledger.NextDueDate(status.Bill.DayOfMonth, now).Format("2006-01-02"),
			})
		}
		return listBillsPayload{Bills: bills, PendingTotal: pendingTotal}, nil

	case DeactivateBill:
		bill, err := d.ledger.DeactivateBill(ctx, userID, in.Ref)
		if err != nil {
			return nil, err
		}
		return d.billPayload(bill), nil

	case UnmarkPayment:
		bill, err := d.ledger.UnmarkPaid(ctx, userID, in.Ref, in.Month, in.Year)
		if err != nil {
			return nil, err
		}
		return d.billPayload(bill), nil

	case AddExpense:
		expense, err := d.ledger.AddExpense(ctx, userID, in.Description, in.Amount, in.Category)
		if err != nil {
			return nil, err
		}
		return expense, nil

	case ListExpenses:
		expenses, err := d.ledger.ListExpenses(ctx, userID, in.Month, in.Year, in.Category)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, e := range expenses {
			total = total.Add(e.Amount)
		}
		return listExpensesPayload{Expenses: expenses, Total: total}, nil

	case SummarizeExpenses:
		return d.ledger.SummarizeExpenses(ctx, userID, in.Month, in.Year)

	case AddIncome:
		income, err := d.ledger.AddIncome(ctx, userID, in.Amount, in.Kind, in.Description, in.Month, in.Year)
		if err != nil {
			return nil, err
		}
		return income, nil

	case SummarizeIncome:
		return d.ledger.SummarizeIncome(ctx, userID, in.Month, in.Year)

	case CreateGoal:
		goal, err := d.ledger.CreateGoal(ctx, userID, in.Name, in.Target, in.Deadline, in.Category)
		if err != nil {
			return nil, err
		}
		return goalPayload(goal), nil

	case ContributeGoal:
		goal, err := d.ledger.Contribute(ctx, userID, in.Ref, in.Amount, in.Note)
		if err != nil {
			return nil, err
		}
		return goalPayload(goal), nil

	case ListGoals:
		goals, err := d.ledger.ListGoals(ctx, userID, true)
		if err != nil {
			return nil, err
		}
		out := make([]goalInfo, 0, len(goals))
		for _, goal := range goals {
			out = append(out, goalPayload(goal))
		}
		return listGoalsPayload{Goals: out}, nil

	case ProjectSpending:
		return d.ledger.ProjectSpending(ctx, userID, in.Months)

	case CompareMonths:
		return d.ledger.CompareMonths(ctx, userID, in.Month1, in.Year1, in.Month2, in.Year2)

	case GetInsights:
		return d.ledger.GetInsights(ctx, userID)

	case CreateReminder:
		reminder, err := d.ledger.CreateReminder(ctx, userID, in.Message, in.DueAt)
		if err != nil {
			return nil, err
		}
		return reminder, nil

	case ListReminders:
		reminders, err := d.ledger.ListReminders(ctx, userID)
		if err != nil {
			return nil, err
		}
		return listRemindersPayload{Reminders: reminders}, nil
	}

	// Unreachable while Parse and this switch stay in lockstep.
	return nil, &ValidationError{Op: fmt.Sprintf("%T", intent), Reason: reasonUnknownOp}
}

type billInfo struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	DayOfMonth  int             `json:"day_of_month"`
	Active      bool            `json:"active"`
	NextDue     string          `json:"next_due,omitempty"`
}

func (d *Dispatcher) billPayload(bill *models.RecurringBill) billInfo {
	info := billInfo{
		ID:          bill.ID,
		Description: bill.Description,
		Amount:      bill.Amount,
		Category:    bill.Category,
		DayOfMonth:  bill.DayOfMonth,
		Active:      bill.Active,
	}
	if bill.Active {
		info.NextDue = d.ledger.NextDueDate(bill.DayOfMonth, d.now()).Format("2006-01-02")
	}
	return info
}

type billStatusPayload struct {
	finance.BillStatus
	NextDue string `json:"next_due"`
}

type listBillsPayload struct {
	Bills        []billStatusPayload `json:"bills"`
	PendingTotal decimal.Decimal     `json:"pending_total"`
}

type paymentPayload struct {
	BillID      int64           `json:"bill_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
}

type listExpensesPayload struct {
	Expenses []*models.Expense `json:"expenses"`
	Total    decimal.Decimal   `json:"total"`
}

type goalInfo struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Target   decimal.Decimal `json:"target_amount"`
	Current  decimal.Decimal `json:"current_amount"`
	Progress string          `json:"progress"`
	Deadline string          `json:"deadline,omitempty"`
	Category string          `json:"category"`
}

func goalPayload(goal *models.SavingsGoal) goalInfo {
	info := goalInfo{
		ID:       goal.ID,
		Name:     goal.Name,
		Target:   goal.TargetAmount,
		Current:  goal.CurrentAmount,
		Progress: fmt.Sprintf("%.1f%%", goal.DisplayProgress()),
		Category: goal.Category,
	}
	if goal.Deadline != nil {
		info.Deadline = goal.Deadline.Format("2006-01-02")
	}
	return info
}

type listGoalsPayload struct {
	Goals []goalInfo `json:"goals"`
}

type listRemindersPayload struct {
	Reminders []*models.Reminder `json:"reminders"`
}

// failurePayload renders an error as a structured tool result so the
// model can react instead of the turn dying.
func failurePayload(err error) string {
	code := "internal"
	var (
		vErr       *ValidationError
		dupErr     *finance.DuplicatePaymentError
		billErr    *finance.BillNotFoundError
		payErr     *finance.PaymentNotFoundError
		goalErr    *finance.GoalNotFoundError
		inactive   *finance.GoalInactiveError
		persistErr *finance.PersistenceError
	)
	switch {
	case errors.As(err, &vErr):
		code = "invalid_arguments"
	case errors.As(err, &dupErr):
		code = "duplicate_payment"
	case errors.As(err, &billErr), errors.As(err, &payErr), errors.As(err, &goalErr):
		code = "not_found"
	case errors.As(err, &inactive):
		code = "goal_inactive"
	case errors.Is(err, finance.ErrInsufficientData):
		code = "insufficient_data"
	case errors.As(err, &persistErr):
		code = "storage_unavailable"
	}

	body := struct {
		OK    bool `json:"ok"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	body.Error.Code = code
	body.Error.Message = err.Error()

	encoded, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return `{"ok":false,"error":{"code":"internal","message":"unrenderable error"}}`
	}
	return string(encoded)
}

func (d *Dispatcher) logDispatchError(userID int64, op string, err error) {
	entry := d.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"op":      op,
	})

	var persistErr *finance.PersistenceError
	if errors.As(err, &persistErr) {
		entry.WithError(err).Error("Tool dispatch hit storage failure")
		return
	}
	entry.WithError(err).Debug("Tool dispatch rejected")
}
