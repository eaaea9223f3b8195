package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
)

// minYear rejects obviously wrong years the model sometimes invents.
const minYear = 2020

// ValidationError reports a tool call whose arguments the dispatcher
// refuses to act on. It flows back to the model as a structured tool
// failure, never raw to the user.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Reason)
}

// Intent is one validated operation parsed out of a model tool call.
// The set is closed: Parse is the only place operation names are
// interpreted, everything downstream type-switches over the variants.
type Intent interface {
	isIntent()
}

type CreateBill struct {
	Description string
	Amount      decimal.Decimal
	Category    string
	DayOfMonth  int
}

// PayBill marks a bill paid for a period. A zero Amount means the
// bill's own amount, zero Month/Year the current period.
type PayBill struct {
	Ref    string
	Amount decimal.Decimal
	Month  int
	Year   int
}

type ListBills struct {
	IncludePaid bool
}

type DeactivateBill struct {
	Ref string
}

type UnmarkPayment struct {
	Ref   string
	Month int
	Year  int
}

type AddExpense struct {
	Description string
	Amount      decimal.Decimal
	Category    string
}

type ListExpenses struct {
	Month    int
	Year     int
	Category string
}

type SummarizeExpenses struct {
	Month int
	Year  int
}

type AddIncome struct {
	Amount      decimal.Decimal
	Kind        string
	Month       int
	Year        int
	Description string
}

type SummarizeIncome struct {
	Month int
	Year  int
}

type CreateGoal struct {
	Name     string
	Target   decimal.Decimal
	Deadline *time.Time
	Category string
}

type ContributeGoal struct {
	Ref    string
	Amount decimal.Decimal
	Note   string
}

type ListGoals struct{}

type ProjectSpending struct {
	Months int
}

type CompareMonths struct {
	Month1 int
	Year1  int
	Month2 int
	Year2  int
}

type GetInsights struct{}

type CreateReminder struct {
	Message string
	DueAt   time.Time
}

type ListReminders struct{}

func (CreateBill) isIntent()        {}
func (PayBill) isIntent()           {}
func (ListBills) isIntent()         {}
func (DeactivateBill) isIntent()    {}
func (UnmarkPayment) isIntent()     {}
func (AddExpense) isIntent()        {}
func (ListExpenses) isIntent()      {}
func (SummarizeExpenses) isIntent() {}
func (AddIncome) isIntent()         {}
func (SummarizeIncome) isIntent()   {}
func (CreateGoal) isIntent()        {}
func (ContributeGoal) isIntent()    {}
func (ListGoals) isIntent()         {}
func (ProjectSpending) isIntent()   {}
func (CompareMonths) isIntent()     {}
func (GetInsights) isIntent()       {}
func (CreateReminder) isIntent()    {}
func (ListReminders) isIntent()     {}

// Parse turns a raw tool call into a validated Intent. Numeric wire
// fields are json.Number so models that quote their numbers still
// parse.
func (d *Dispatcher) Parse(call models.ToolCall) (Intent, error) {
	op := call.Name

	switch op {
	case "create_bill":
		var args struct {
			Description string      `json:"description"`
			Amount      json.Number `json:"amount"`
			Category    string      `json:"category"`
			DayOfMonth  json.Number `json:"day_of_month"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		description, err := requireString(op, "description", args.Description)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(op, "amount", args.Amount, true)
		if err != nil {
			return nil, err
		}
		day, err := parseInt(op, "day_of_month", args.DayOfMonth)
		if err != nil {
			return nil, err
		}
		if day < 1 || day > 31 {
			return nil, &ValidationError{Op: op, Field: "day_of_month", Reason: "must be between 1 and 31"}
		}
		return CreateBill{Description: description, Amount: amount, Category: args.Category, DayOfMonth: day}, nil

	case "pay_bill":
		var args struct {
			BillID      json.Number `json:"bill_id"`
			Description string      `json:"description"`
			Amount      json.Number `json:"amount"`
			Month       json.Number `json:"month"`
			Year        json.Number `json:"year"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		ref, err := requireRef(op, "bill_id", args.BillID, args.Description)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(op, "amount", args.Amount, false)
		if err != nil {
			return nil, err
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return PayBill{Ref: ref, Amount: amount, Month: month, Year: year}, nil

	case "list_bills":
		var args struct {
			IncludePaid bool `json:"include_paid"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		return ListBills{IncludePaid: args.IncludePaid}, nil

	case "deactivate_bill":
		var args struct {
			BillID      json.Number `json:"bill_id"`
			Description string      `json:"description"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		ref, err := requireRef(op, "bill_id", args.BillID, args.Description)
		if err != nil {
			return nil, err
		}
		return DeactivateBill{Ref: ref}, nil

	case "unmark_payment":
		var args struct {
			BillID      json.Number `json:"bill_id"`
			Description string      `json:"description"`
			Month       json.Number `json:"month"`
			Year        json.Number `json:"year"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		ref, err := requireRef(op, "bill_id", args.BillID, args.Description)
		if err != nil {
			return nil, err
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return UnmarkPayment{Ref: ref, Month: month, Year: year}, nil

	case "add_expense":
		var args struct {
			Description string      `json:"description"`
			Amount      json.Number `json:"amount"`
			Category    string      `json:"category"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		description, err := requireString(op, "description", args.Description)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(op, "amount", args.Amount, true)
		if err != nil {
			return nil, err
		}
		return AddExpense{Description: description, Amount: amount, Category: args.Category}, nil

	case "list_expenses":
		var args struct {
			Month    json.Number `json:"month"`
			Year     json.Number `json:"year"`
			Category string      `json:"category"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return ListExpenses{Month: month, Year: year, Category: args.Category}, nil

	case "summarize_expenses":
		var args struct {
			Month json.Number `json:"month"`
			Year  json.Number `json:"year"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return SummarizeExpenses{Month: month, Year: year}, nil

	case "add_income":
		var args struct {
			Amount      json.Number `json:"amount"`
			Kind        string      `json:"kind"`
			Month       json.Number `json:"month"`
			Year        json.Number `json:"year"`
			Description string      `json:"description"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		amount, err := parseAmount(op, "amount", args.Amount, true)
		if err != nil {
			return nil, err
		}
		kind := strings.ToLower(strings.TrimSpace(args.Kind))
		if kind != models.IncomeSalary && kind != models.IncomeExtra {
			return nil, &ValidationError{Op: op, Field: "kind", Reason: "must be salary or extra"}
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return AddIncome{Amount: amount, Kind: kind, Month: month, Year: year, Description: args.Description}, nil

	case "summarize_income":
		var args struct {
			Month json.Number `json:"month"`
			Year  json.Number `json:"year"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		month, year, err := parsePeriod(op, args.Month, args.Year, false)
		if err != nil {
			return nil, err
		}
		return SummarizeIncome{Month: month, Year: year}, nil

	case "create_goal":
		var args struct {
			Name     string      `json:"name"`
			Target   json.Number `json:"target_amount"`
			Deadline string      `json:"deadline"`
			Category string      `json:"category"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		name, err := requireString(op, "name", args.Name)
		if err != nil {
			return nil, err
		}
		target, err := parseAmount(op, "target_amount", args.Target, true)
		if err != nil {
			return nil, err
		}
		var deadline *time.Time
		if strings.TrimSpace(args.Deadline) != "" {
			due, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(args.Deadline), d.loc)
			if err != nil {
				return nil, &ValidationError{Op: op, Field: "deadline", Reason: "must be YYYY-MM-DD"}
			}
			deadline = &due
		}
		return CreateGoal{Name: name, Target: target, Deadline: deadline, Category: args.Category}, nil

	case "contribute_goal":
		var args struct {
			GoalID json.Number `json:"goal_id"`
			Name   string      `json:"name"`
			Amount json.Number `json:"amount"`
			Note   string      `json:"note"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		ref, err := requireRef(op, "goal_id", args.GoalID, args.Name)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(op, "amount", args.Amount, true)
		if err != nil {
			return nil, err
		}
		return ContributeGoal{Ref: ref, Amount: amount, Note: args.Note}, nil

	case "list_goals":
		return ListGoals{}, nil

	case "project_spending":
		var args struct {
			Months json.Number `json:"months"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		months, err := parseInt(op, "months", args.Months)
		if err != nil {
			return nil, err
		}
		if months != 0 && (months < 1 || months > 12) {
			return nil, &ValidationError{Op: op, Field: "months", Reason: "must be between 1 and 12"}
		}
		return ProjectSpending{Months: months}, nil

	case "compare_months":
		var args struct {
			Month1 json.Number `json:"month1"`
			Year1  json.Number `json:"year1"`
			Month2 json.Number `json:"month2"`
			Year2  json.Number `json:"year2"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		month1, year1, err := parsePeriodFields(op, "month1", "year1", args.Month1, args.Year1, true)
		if err != nil {
			return nil, err
		}
		month2, year2, err := parsePeriodFields(op, "month2", "year2", args.Month2, args.Year2, true)
		if err != nil {
			return nil, err
		}
		return CompareMonths{Month1: month1, Year1: year1, Month2: month2, Year2: year2}, nil

	case "get_insights":
		return GetInsights{}, nil

	case "create_reminder":
		var args struct {
			Message string `json:"message"`
			DueAt   string `json:"due_at"`
		}
		if err := decodeArgs(op, call.Arguments, &args); err != nil {
			return nil, err
		}
		message, err := requireString(op, "message", args.Message)
		if err != nil {
			return nil, err
		}
		dueAt, err := d.parseDueAt(op, args.DueAt)
		if err != nil {
			return nil, err
		}
		return CreateReminder{Message: message, DueAt: dueAt}, nil

	case "list_reminders":
		return ListReminders{}, nil
	}

	return nil, &ValidationError{Op: op, Reason: "unknown operation"}
}

func decodeArgs(op string, raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &ValidationError{Op: op, Field: "arguments", Reason: "malformed JSON"}
	}
	return nil
}

func requireString(op, field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &ValidationError{Op: op, Field: field, Reason: "required"}
	}
	return value, nil
}

// requireRef accepts either a numeric id or a name/description and
// folds them into one reference string.
func requireRef(op, idField string, id json.Number, name string) (string, error) {
	if ref := strings.TrimSpace(id.String()); ref != "" {
		return ref, nil
	}
	if ref := strings.TrimSpace(name); ref != "" {
		return ref, nil
	}
	return "", &ValidationError{Op: op, Field: idField, Reason: "id or name required"}
}

func parseAmount(op, field string, raw json.Number, required bool) (decimal.Decimal, error) {
	if raw == "" {
		if required {
			return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "required"}
		}
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "not a number"}
	}
	if !amount.GreaterThan(decimal.Zero) {
		return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "must be positive"}
	}
	return amount, nil
}

func parseInt(op, field string, raw json.Number) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := raw.Int64()
	if err != nil {
		return 0, &ValidationError{Op: op, Field: field, Reason: "not an integer"}
	}
	return int(n), nil
}

// parsePeriodFields validates a month/year pair. Zero values are
// allowed unless the period is required; they mean the current period.
func parsePeriodFields(op, monthField, yearField string, rawMonth, rawYear json.Number, required bool) (int, int, error) {
	month, err := parseInt(op, monthField, rawMonth)
	if err != nil {
		return 0, 0, err
	}
	year, err := parseInt(op, yearField, rawYear)
	if err != nil {
		return 0, 0, err
	}

	if required && month == 0 {
		return 0, 0, &ValidationError{Op: op, Field: monthField, Reason: "required"}
	}
	if required && year == 0 {
		return 0, 0, &ValidationError{Op: op, Field: yearField, Reason: "required"}
	}
	if month != 0 && (month < 1 || month > 12) {
		return 0, 0, &ValidationError{Op: op, Field: monthField, Reason: "must be between 1 and 12"}
	}
	if year != 0 && year < minYear {
		return 0, 0, &ValidationError{Op: op, Field: yearField, Reason: fmt.Sprintf("must be %d or later", minYear)}
	}
	return month, year, nil
}

func parsePeriod(op string, rawMonth, rawYear json.Number, required bool) (int, int, error) {
	return parsePeriodFields(op, "month", "year", rawMonth, rawYear, required)
}

// parseDueAt accepts RFC3339 or a local "YYYY-MM-DD HH:MM" and insists
// the moment is still ahead.
func (d *Dispatcher) parseDueAt(op, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &ValidationError{Op: op, Field: "due_at", Reason: "required"}
	}

	dueAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		dueAt, err = time.ParseInLocation("2006-01-02 15:04", raw, d.loc)
	}
	if err != nil {
		return time.Time{}, &ValidationError{Op: op, Field: "due_at", Reason: "must be RFC3339 or YYYY-MM-DD HH:MM"}
	}
	if !dueAt.After(d.now()) {
		return time.Time{}, &ValidationError{Op: op, Field: "due_at", Reason: "must be in the future"}
	}
	return dueAt, nil
}
