package dispatch

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/fin-ai-tgbot-go/internal/services/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cop(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *storage.MemoryStore) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStore()
	ledger := finance.NewLedger(store, time.UTC, logger)
	return NewDispatcher(ledger, time.UTC, middleware.NewMetrics(), logger), store
}

func call(name, args string) models.ToolCall {
	tc := models.ToolCall{ID: "call_1", Name: name}
	if args != "" {
		tc.Arguments = json.RawMessage(args)
	}
	return tc
}

func TestParseCreateBill(t *testing.T) {
	d, _ := newTestDispatcher(t)

	intent, err := d.Parse(call("create_bill",
		`{"description":" Luz ","amount":120000,"category":"servicios","day_of_month":5}`))
	require.NoError(t, err)

	bill, ok := intent.(CreateBill)
	require.True(t, ok, "got %T", intent)
	assert.Equal(t, "Luz", bill.Description)
	assert.True(t, bill.Amount.Equal(cop(120000)))
	assert.Equal(t, "servicios", bill.Category)
	assert.Equal(t, 5, bill.DayOfMonth)
}

func TestParseQuotedNumbers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Some models quote every number; json.Number tolerates that.
	intent, err := d.Parse(call("create_bill",
		`{"description":"luz","amount":"120000","day_of_month":"5"}`))
	require.NoError(t, err)

	bill := intent.(CreateBill)
	assert.True(t, bill.Amount.Equal(cop(120000)))
	assert.Equal(t, 5, bill.DayOfMonth)
}

func TestParseDayOfMonthBounds(t *testing.T) {
	d, _ := newTestDispatcher(t)

	for _, day := range []string{"0", "32"} {
		_, err := d.Parse(call("create_bill",
			`{"description":"luz","amount":120000,"day_of_month":`+day+`}`))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "day_of_month", vErr.Field)
	}
}

func TestParseAmountValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	cases := []struct {
		name   string
		args   string
		reason string
	}{
		{"missing", `{"description":"café"}`, "required"},
		{"negative", `{"description":"café","amount":-5000}`, "must be positive"},
		{"zero", `{"description":"café","amount":0}`, "must be positive"},
		{"word", `{"description":"café","amount":"veinte mil"}`, "malformed JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Parse(call("add_expense", tc.args))
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.reason, vErr.Reason)
		})
	}
}

func TestParsePayBillRef(t *testing.T) {
	d, _ := newTestDispatcher(t)

	intent, err := d.Parse(call("pay_bill", `{"bill_id":3}`))
	require.NoError(t, err)
	assert.Equal(t, "3", intent.(PayBill).Ref)

	intent, err = d.Parse(call("pay_bill", `{"description":"luz"}`))
	require.NoError(t, err)
	assert.Equal(t, "luz", intent.(PayBill).Ref, "description works as fallback reference")

	_, err = d.Parse(call("pay_bill", `{"amount":120000}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "bill_id", vErr.Field)
	assert.Equal(t, "id or name required", vErr.Reason)
}

func TestParsePeriodValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Parse(call("summarize_expenses", `{"month":13,"year":2025}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "month", vErr.Field)

	_, err = d.Parse(call("summarize_expenses", `{"month":1,"year":2019}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "year", vErr.Field)

	// compare_months cannot default its periods
	_, err = d.Parse(call("compare_months", `{"month1":1,"year1":2025,"month2":2}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "year2", vErr.Field)
	assert.Equal(t, "required", vErr.Reason)
}

func TestParseAddIncomeKind(t *testing.T) {
	d, _ := newTestDispatcher(t)

	intent, err := d.Parse(call("add_income", `{"amount":2000000,"kind":" SALARY "}`))
	require.NoError(t, err)
	assert.Equal(t, models.IncomeSalary, intent.(AddIncome).Kind)

	_, err = d.Parse(call("add_income", `{"amount":2000000,"kind":"loan"}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "kind", vErr.Field)
}

func TestParseCreateGoalDeadline(t *testing.T) {
	d, _ := newTestDispatcher(t)

	intent, err := d.Parse(call("create_goal",
		`{"name":"viaje","target_amount":5000000,"deadline":"2026-12-31"}`))
	require.NoError(t, err)
	goal := intent.(CreateGoal)
	require.NotNil(t, goal.Deadline)
	assert.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), *goal.Deadline)

	intent, err = d.Parse(call("create_goal", `{"name":"viaje","target_amount":5000000}`))
	require.NoError(t, err)
	assert.Nil(t, intent.(CreateGoal).Deadline)

	_, err = d.Parse(call("create_goal",
		`{"name":"viaje","target_amount":5000000,"deadline":"31/12/2026"}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "deadline", vErr.Field)
}

func TestParseCreateReminderDueAt(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.now = func() time.Time {
		return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	}

	intent, err := d.Parse(call("create_reminder",
		`{"message":"pagar tarjeta","due_at":"2025-03-16T09:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 16, 9, 0, 0, 0, time.UTC),
		intent.(CreateReminder).DueAt)

	intent, err = d.Parse(call("create_reminder",
		`{"message":"pagar tarjeta","due_at":"2025-03-16 09:00"}`))
	require.NoError(t, err)
	assert.Equal(t, 16, intent.(CreateReminder).DueAt.Day(), "local format accepted")

	var vErr *ValidationError
	_, err = d.Parse(call("create_reminder",
		`{"message":"pagar tarjeta","due_at":"2025-03-14 09:00"}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "must be in the future", vErr.Reason)

	_, err = d.Parse(call("create_reminder",
		`{"message":"pagar tarjeta","due_at":"mañana temprano"}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "due_at", vErr.Field)

	_, err = d.Parse(call("create_reminder", `{"message":"pagar tarjeta"}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "required", vErr.Reason)
}

func TestParseUnknownOperation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Parse(call("transfer_funds", `{}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "transfer_funds", vErr.Op)
	assert.Equal(t, "unknown operation", vErr.Reason)
}

func TestParseMalformedArguments(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Parse(call("pay_bill", `{"bill_id":`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "arguments", vErr.Field)
	assert.Equal(t, "malformed JSON", vErr.Reason)
}

func TestParseEmptyArgumentsAllowed(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Argument-free operations arrive with no arguments at all
	for _, op := range []string{"list_bills", "list_goals", "get_insights", "list_reminders"} {
		intent, err := d.Parse(call(op, ""))
		require.NoError(t, err, op)
		require.NotNil(t, intent)
	}
}
