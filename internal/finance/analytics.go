package finance

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// projectionMonths is how many closed months feed the spending average
// when the caller does not ask for a different window.
const projectionMonths = 3

var hundred = decimal.NewFromInt(100)

// MonthTotal is one sampled month inside a projection.
type MonthTotal struct {
	Month int             `json:"month"`
	Year  int             `json:"year"`
	Total decimal.Decimal `json:"total"`
}

// Projection estimates next month's spending from recent history.
type Projection struct {
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	Estimate     decimal.Decimal `json:"estimate"`
	Samples      []MonthTotal    `json:"samples"`
	CurrentSpent decimal.Decimal `json:"current_spent"`
	Pace         decimal.Decimal `json:"pace"`
}

// ProjectSpending averages the previous months' totals (empty months
// are skipped, the running month never counts) and extrapolates the
// running month linearly as a second signal. A months value of zero or
// less means the default window. With no closed-month history at all
// it returns ErrInsufficientData.
func (l *Ledger) ProjectSpending(ctx context.Context, userID int64, months int) (*Projection, error) {
	if months <= 0 {
		months = projectionMonths
	}

	now := l.now().In(l.loc)
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, l.loc)

	total := decimal.Zero
	var samples []MonthTotal
	for k := 1; k <= months; k++ {
		period := anchor.AddDate(0, -k, 0)
		expenses, err := l.store.ExpensesForMonth(ctx, userID, int(period.Month()), period.Year())
		if err != nil {
			return nil, &PersistenceError{Op: "project spending", Err: err}
		}
		if len(expenses) == 0 {
			continue
		}
		monthTotal := decimal.Zero
		for _, e := range expenses {
			monthTotal = monthTotal.Add(e.Amount)
		}
		total = total.Add(monthTotal)
		samples = append(samples, MonthTotal{Month: int(period.Month()), Year: period.Year(), Total: monthTotal})
	}
	if len(samples) == 0 {
		return nil, ErrInsufficientData
	}
	estimate := total.Div(decimal.NewFromInt(int64(len(samples))))

	current, err := l.store.ExpensesForMonth(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return nil, &PersistenceError{Op: "project spending", Err: err}
	}
	spent := decimal.Zero
	for _, e := range current {
		spent = spent.Add(e.Amount)
	}

	daysElapsed := decimal.NewFromInt(int64(now.Day()))
	daysInMonth := decimal.NewFromInt(int64(lastDayOfMonth(now.Year(), now.Month(), l.loc)))
	pace := spent.Div(daysElapsed).Mul(daysInMonth)

	next := anchor.AddDate(0, 1, 0)
	return &Projection{
		Month:        int(next.Month()),
		Year:         next.Year(),
		Estimate:     estimate,
		Samples:      samples,
		CurrentSpent: spent,
		Pace:         pace,
	}, nil
}

// CategoryDelta is one category's movement between two periods.
type CategoryDelta struct {
	Category string          `json:"category"`
	Total1   decimal.Decimal `json:"total1"`
	Total2   decimal.Decimal `json:"total2"`
	Diff     decimal.Decimal `json:"diff"`
}

// MonthComparison contrasts total and per-category spending of two periods.
type MonthComparison struct {
	Month1     int             `json:"month1"`
	Year1      int             `json:"year1"`
	Month2     int             `json:"month2"`
	Year2      int             `json:"year2"`
	Total1     decimal.Decimal `json:"total1"`
	Total2     decimal.Decimal `json:"total2"`
	Count1     int             `json:"count1"`
	Count2     int             `json:"count2"`
	Diff       decimal.Decimal `json:"diff"`
	PctChange  decimal.Decimal `json:"pct_change"`
	PctDefined bool            `json:"pct_defined"`
	ByCategory []CategoryDelta `json:"by_category,omitempty"`
}

// CompareMonths reports how spending moved from the first period to the
// second. The percent change is undefined when the first period has no
// spending.
func (l *Ledger) CompareMonths(ctx context.Context, userID int64, month1, year1, month2, year2 int) (*MonthComparison, error) {
	first, err := l.SummarizeExpenses(ctx, userID, month1, year1)
	if err != nil {
		return nil, err
	}
	second, err := l.SummarizeExpenses(ctx, userID, month2, year2)
	if err != nil {
		return nil, err
	}

	cmp := &MonthComparison{
		Month1: first.Month, Year1: first.Year,
		Month2: second.Month, Year2: second.Year,
		Total1: first.Total,
		Total2: second.Total,
		Count1: first.Count,
		Count2: second.Count,
		Diff:   second.Total.Sub(first.Total),
	}
	if !first.Total.IsZero() {
		cmp.PctChange = cmp.Diff.Div(first.Total).Mul(hundred)
		cmp.PctDefined = true
	}

	totals1 := make(map[string]decimal.Decimal)
	for _, c := range first.ByCategory {
		totals1[c.Category] = c.Total
	}
	totals2 := make(map[string]decimal.Decimal)
	for _, c := range second.ByCategory {
		totals2[c.Category] = c.Total
	}

	seen := make(map[string]bool)
	for category := range totals1 {
		seen[category] = true
	}
	for category := range totals2 {
		seen[category] = true
	}
	for category := range seen {
		t1, t2 := totals1[category], totals2[category]
		cmp.ByCategory = append(cmp.ByCategory, CategoryDelta{
			Category: category,
			Total1:   t1,
			Total2:   t2,
			Diff:     t2.Sub(t1),
		})
	}
	sort.Slice(cmp.ByCategory, func(i, j int) bool {
		a, b := cmp.ByCategory[i], cmp.ByCategory[j]
		if !a.Diff.Abs().Equal(b.Diff.Abs()) {
			return a.Diff.Abs().GreaterThan(b.Diff.Abs())
		}
		return a.Category < b.Category
	})
	return cmp, nil
}

// Insights is the monthly health snapshot: where the money went, how
// the month compares to the last one, what is still unpaid and how much
// of the income survived.
type Insights struct {
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	ExpenseCount   int             `json:"expense_count"`
	TopCategory    string          `json:"top_category,omitempty"`
	TopAmount      decimal.Decimal `json:"top_amount"`
	TopShare       decimal.Decimal `json:"top_share"`
	HasTop         bool            `json:"has_top"`
	PrevTotal      decimal.Decimal `json:"prev_total"`
	Delta          decimal.Decimal `json:"delta"`
	DeltaPct       decimal.Decimal `json:"delta_pct"`
	DeltaDefined   bool            `json:"delta_pct_defined"`
	PendingBills   int             `json:"pending_bills"`
	PendingTotal   decimal.Decimal `json:"pending_total"`
	Income         decimal.Decimal `json:"income"`
	SavingsRate    decimal.Decimal `json:"savings_rate"`
	SavingsDefined bool            `json:"savings_rate_defined"`
}

// GetInsights assembles the current month's snapshot.
func (l *Ledger) GetInsights(ctx context.Context, userID int64) (*Insights, error) {
	now := l.now().In(l.loc)
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, l.loc)
	prev := anchor.AddDate(0, -1, 0)

	current, err := l.SummarizeExpenses(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return nil, err
	}
	previous, err := l.SummarizeExpenses(ctx, userID, int(prev.Month()), prev.Year())
	if err != nil {
		return nil, err
	}
	statuses, err := l.BillsStatus(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return nil, err
	}
	income, err := l.SummarizeIncome(ctx, userID, int(now.Month()), now.Year())
	if err != nil {
		return nil, err
	}

	insights := &Insights{
		Month:        current.Month,
		Year:         current.Year,
		TotalSpent:   current.Total,
		ExpenseCount: current.Count,
		PrevTotal:    previous.Total,
		Delta:        current.Total.Sub(previous.Total),
		PendingTotal: decimal.Zero,
		Income:       income.Total,
	}

	if len(current.ByCategory) > 0 && current.Total.GreaterThan(decimal.Zero) {
		top := current.ByCategory[0]
		insights.TopCategory = top.Category
		insights.TopAmount = top.Total
		insights.TopShare = top.Total.Div(current.Total).Mul(hundred)
		insights.HasTop = true
	}

	if !previous.Total.IsZero() {
		insights.DeltaPct = insights.Delta.Div(previous.Total).Mul(hundred)
		insights.DeltaDefined = true
	}

	for _, status := range statuses {
		if status.Paid {
			continue
		}
		insights.PendingBills++
		insights.PendingTotal = insights.PendingTotal.Add(status.Bill.Amount)
	}

	if income.Total.GreaterThan(decimal.Zero) {
		saved := income.Total.Sub(current.Total)
		insights.SavingsRate = saved.Div(income.Total).Mul(hundred)
		insights.SavingsDefined = true
	}
	return insights, nil
}
