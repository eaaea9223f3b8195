package finance

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/fin-ai-tgbot-go/internal/services/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Ledger implements the bookkeeping operations: recurring bills and
// their monthly payments, one-off expenses, income, savings goals and
// reminders. All period arithmetic happens in the configured timezone
// so a late-night expense lands in the right month.
type Ledger struct {
	store  storage.Store
	logger *logrus.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewLedger creates a ledger on top of the given store
func NewLedger(store storage.Store, loc *time.Location, logger *logrus.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// period fills missing month/year with the current period.
func (l *Ledger) period(month, year int) (int, int) {
	now := l.now().In(l.loc)
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return month, year
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	// Day zero of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Bills

// CreateBill registers a recurring bill due on the given day of every month.
func (l *Ledger) CreateBill(ctx context.Context, userID int64, description string, amount decimal.Decimal, category string, dayOfMonth int) (*models.RecurringBill, error) {
	bill := &models.RecurringBill{
		UserID:      userID,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Category:    models.NormalizeExpenseCategory(category),
		DayOfMonth:  dayOfMonth,
		Active:      true,
		CreatedAt:   l.now(),
	}
	if err := l.store.CreateBill(ctx, bill); err != nil {
		return nil, &PersistenceError{Op: "create bill", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bill_id": bill.ID,
		"day":     dayOfMonth,
	}).Info("Recurring bill created")
	return bill, nil
}

// ListBills returns the user's bills, oldest first.
func (l *Ledger) ListBills(ctx context.Context, userID int64, activeOnly bool) ([]*models.RecurringBill, error) {
	bills, err := l.store.BillsByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, &PersistenceError{Op: "list bills", Err: err}
	}
	return bills, nil
}

// DeactivateBill soft-deletes a bill so history stays intact.
func (l *Ledger) DeactivateBill(ctx context.Context, userID int64, ref string) (*models.RecurringBill, error) {
	bill, err := l.resolveBill(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	bill.Active = false
	if err := l.store.UpdateBill(ctx, bill); err != nil {
		return nil, &PersistenceError{Op: "deactivate bill", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bill_id": bill.ID,
	}).Info("Recurring bill deactivated")
	return bill, nil
}

// MarkPaid records a payment for the bill in the given period. A zero
// amount means the bill's own amount, a zero month or year means the
// current period. Paying the same bill twice for one period fails with
// DuplicatePaymentError and writes nothing.
func (l *Ledger) MarkPaid(ctx context.Context, userID int64, ref string, amount decimal.Decimal, month, year int) (*models.PaymentRecord, *models.RecurringBill, error) {
	bill, err := l.resolveBill(ctx, userID, ref)
	if err != nil {
		return nil, nil, err
	}

	month, year = l.period(month, year)
	if amount.IsZero() {
		amount = bill.Amount
	}

	payment := &models.PaymentRecord{
		UserID: userID,
		BillID: bill.ID,
		Month:  month,
		Year:   year,
		Amount: amount,
		PaidAt: l.now(),
	}
	if err := l.store.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, storage.ErrDuplicatePayment) {
			return nil, nil, &DuplicatePaymentError{Bill: bill.Description, Month: month, Year: year}
		}
		return nil, nil, &PersistenceError{Op: "record payment", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bill_id": bill.ID,
		"month":   month,
		"year":    year,
	}).Info("Payment recorded")
	return payment, bill, nil
}

// UnmarkPaid removes the payment record for the bill in the given period.
func (l *Ledger) UnmarkPaid(ctx context.Context, userID int64, ref string, month, year int) (*models.RecurringBill, error) {
	bill, err := l.resolveBill(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	month, year = l.period(month, year)
	removed, err := l.store.DeletePayment(ctx, userID, bill.ID, month, year)
	if err != nil {
		return nil, &PersistenceError{Op: "unmark payment", Err: err}
	}
	if !removed {
		return nil, &PaymentNotFoundError{Bill: bill.Description, Month: month, Year: year}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bill_id": bill.ID,
		"month":   month,
		"year":    year,
	}).Info("Payment removed")
	return bill, nil
}

// BillStatus pairs a bill with its payment state for one period.
type BillStatus struct {
	Bill    *models.RecurringBill `json:"bill"`
	Paid    bool                  `json:"paid"`
	Payment *models.PaymentRecord `json:"payment,omitempty"`
}

// BillsStatus reports every active bill with whether it has been paid
// in the given period.
func (l *Ledger) BillsStatus(ctx context.Context, userID int64, month, year int) ([]BillStatus, error) {
	month, year = l.period(month, year)

	bills, err := l.store.BillsByUser(ctx, userID, true)
	if err != nil {
		return nil, &PersistenceError{Op: "list bills", Err: err}
	}
	payments, err := l.store.PaymentsForPeriod(ctx, userID, month, year)
	if err != nil {
		return nil, &PersistenceError{Op: "list payments", Err: err}
	}

	paid := make(map[int64]*models.PaymentRecord, len(payments))
	for _, p := range payments {
		paid[p.BillID] = p
	}

	out := make([]BillStatus, 0, len(bills))
	for _, bill := range bills {
		payment := paid[bill.ID]
		out = append(out, BillStatus{Bill: bill, Paid: payment != nil, Payment: payment})
	}
	return out, nil
}

// PendingBills returns the active bills with no payment recorded for
// the given period.
func (l *Ledger) PendingBills(ctx context.Context, userID int64, month, year int) ([]*models.RecurringBill, error) {
	statuses, err := l.BillsStatus(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}

	var pending []*models.RecurringBill
	for _, status := range statuses {
		if !status.Paid {
			pending = append(pending, status.Bill)
		}
	}
	return pending, nil
}

// DueTomorrow returns active bills that fall due tomorrow and are not
// yet paid for tomorrow's period. A due day past the end of a short
// month counts as due on that month's last day.
func (l *Ledger) DueTomorrow(ctx context.Context, userID int64) ([]*models.RecurringBill, error) {
	tomorrow := l.now().In(l.loc).AddDate(0, 0, 1)
	targetDay := tomorrow.Day()
	lastDay := lastDayOfMonth(tomorrow.Year(), tomorrow.Month(), l.loc)

	bills, err := l.store.BillsByUser(ctx, userID, true)
	if err != nil {
		return nil, &PersistenceError{Op: "list bills", Err: err}
	}
	payments, err := l.store.PaymentsForPeriod(ctx, userID, int(tomorrow.Month()), tomorrow.Year())
	if err != nil {
		return nil, &PersistenceError{Op: "list payments", Err: err}
	}

	paid := make(map[int64]bool, len(payments))
	for _, p := range payments {
		paid[p.BillID] = true
	}

	var due []*models.RecurringBill
	for _, bill := range bills {
		if paid[bill.ID] {
			continue
		}
		if bill.DayOfMonth == targetDay || (bill.DayOfMonth > lastDay && targetDay == lastDay) {
			due = append(due, bill)
		}
	}
	return due, nil
}

// NextDueDate returns the next date a bill with the given due day falls
// on, counting from the given moment. Due days past the end of a month
// clamp to its last day.
func (l *Ledger) NextDueDate(dayOfMonth int, from time.Time) time.Time {
	from = from.In(l.loc)

	day := dayOfMonth
	if last := lastDayOfMonth(from.Year(), from.Month(), l.loc); day > last {
		day = last
	}
	if day >= from.Day() {
		return time.Date(from.Year(), from.Month(), day, 0, 0, 0, 0, l.loc)
	}

	next := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, l.loc).AddDate(0, 1, 0)
	day = dayOfMonth
	if last := lastDayOfMonth(next.Year(), next.Month(), l.loc); day > last {
		day = last
	}
	return time.Date(next.Year(), next.Month(), day, 0, 0, 0, 0, l.loc)
}

// Expenses

// AddExpense records a one-off expense in the current period.
func (l *Ledger) AddExpense(ctx context.Context, userID int64, description string, amount decimal.Decimal, category string) (*models.Expense, error) {
	now := l.now().In(l.loc)
	expense := &models.Expense{
		UserID:      userID,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Category:    models.NormalizeExpenseCategory(category),
		Month:       int(now.Month()),
		Year:        now.Year(),
		At:          now,
	}
	if err := l.store.CreateExpense(ctx, expense); err != nil {
		return nil, &PersistenceError{Op: "add expense", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"category": expense.Category,
	}).Info("Expense recorded")
	return expense, nil
}

// ListExpenses returns the expenses of the given period, oldest first.
// A non-empty category narrows the list to that category.
func (l *Ledger) ListExpenses(ctx context.Context, userID int64, month, year int, category string) ([]*models.Expense, error) {
	month, year = l.period(month, year)
	expenses, err := l.store.ExpensesForMonth(ctx, userID, month, year)
	if err != nil {
		return nil, &PersistenceError{Op: "list expenses", Err: err}
	}

	filter := strings.ToLower(strings.TrimSpace(category))
	if filter == "" {
		return expenses, nil
	}
	filtered := expenses[:0]
	for _, e := range expenses {
		if e.Category == filter {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// CategoryTotal is one category's slice of a monthly summary.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// ExpenseSummary aggregates one period's expenses by category.
type ExpenseSummary struct {
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category,omitempty"`
}

// SummarizeExpenses totals the period's expenses per category, largest
// category first.
func (l *Ledger) SummarizeExpenses(ctx context.Context, userID int64, month, year int) (*ExpenseSummary, error) {
	month, year = l.period(month, year)
	expenses, err := l.store.ExpensesForMonth(ctx, userID, month, year)
	if err != nil {
		return nil, &PersistenceError{Op: "summarize expenses", Err: err}
	}

	summary := &ExpenseSummary{Month: month, Year: year, Total: decimal.Zero, Count: len(expenses)}
	buckets := make(map[string]*CategoryTotal)
	for _, e := range expenses {
		summary.Total = summary.Total.Add(e.Amount)
		bucket, ok := buckets[e.Category]
		if !ok {
			bucket = &CategoryTotal{Category: e.Category, Total: decimal.Zero}
			buckets[e.Category] = bucket
		}
		bucket.Total = bucket.Total.Add(e.Amount)
		bucket.Count++
	}

	for _, bucket := range buckets {
		summary.ByCategory = append(summary.ByCategory, *bucket)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		a, b := summary.ByCategory[i], summary.ByCategory[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Category < b.Category
	})
	return summary, nil
}

// Income

// AddIncome records income for the given period. Salary upserts, so
// registering a salary twice for one month overwrites instead of
// stacking; extra income always appends.
func (l *Ledger) AddIncome(ctx context.Context, userID int64, amount decimal.Decimal, kind, description string, month, year int) (*models.Income, error) {
	month, year = l.period(month, year)
	income := &models.Income{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Month:       month,
		Year:        year,
		Description: strings.TrimSpace(description),
	}

	var err error
	if kind == models.IncomeSalary {
		err = l.store.UpsertSalary(ctx, income)
	} else {
		income.Kind = models.IncomeExtra
		err = l.store.CreateIncome(ctx, income)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "add income", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    income.Kind,
		"month":   month,
		"year":    year,
	}).Info("Income recorded")
	return income, nil
}

// IncomeSummary aggregates one period's income.
type IncomeSummary struct {
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Total     decimal.Decimal `json:"total"`
	Salary    decimal.Decimal `json:"salary"`
	HasSalary bool            `json:"has_salary"`
	Extras    decimal.Decimal `json:"extras"`
	Count     int             `json:"count"`
}

// SummarizeIncome totals the period's income, salary split out.
func (l *Ledger) SummarizeIncome(ctx context.Context, userID int64, month, year int) (*IncomeSummary, error) {
	month, year = l.period(month, year)
	incomes, err := l.store.IncomesForMonth(ctx, userID, month, year)
	if err != nil {
		return nil, &PersistenceError{Op: "summarize income", Err: err}
	}

	summary := &IncomeSummary{
		Month: month, Year: year,
		Total: decimal.Zero, Salary: decimal.Zero, Extras: decimal.Zero,
		Count: len(incomes),
	}
	for _, in := range incomes {
		summary.Total = summary.Total.Add(in.Amount)
		if in.Kind == models.IncomeSalary {
			summary.Salary = summary.Salary.Add(in.Amount)
			summary.HasSalary = true
		} else {
			summary.Extras = summary.Extras.Add(in.Amount)
		}
	}
	return summary, nil
}

// Goals

// CreateGoal registers a savings goal starting at zero.
func (l *Ledger) CreateGoal(ctx context.Context, userID int64, name string, target decimal.Decimal, deadline *time.Time, category string) (*models.SavingsGoal, error) {
	goal := &models.SavingsGoal{
		UserID:        userID,
		Name:          strings.TrimSpace(name),
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		Category:      models.NormalizeGoalCategory(category),
		Active:        true,
		CreatedAt:     l.now(),
	}
	if err := l.store.CreateGoal(ctx, goal); err != nil {
		return nil, &PersistenceError{Op: "create goal", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"goal_id": goal.ID,
	}).Info("Savings goal created")
	return goal, nil
}

// Contribute adds money to an active goal and returns the updated goal.
func (l *Ledger) Contribute(ctx context.Context, userID int64, ref string, amount decimal.Decimal, note string) (*models.SavingsGoal, error) {
	goal, err := l.resolveGoal(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if !goal.Active {
		return nil, &GoalInactiveError{Name: goal.Name}
	}

	contribution := &models.Contribution{
		UserID: userID,
		GoalID: goal.ID,
		Amount: amount,
		Note:   strings.TrimSpace(note),
		At:     l.now(),
	}
	updated, err := l.store.AddContribution(ctx, contribution)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &GoalNotFoundError{Ref: ref}
		}
		return nil, &PersistenceError{Op: "contribute to goal", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"goal_id": goal.ID,
	}).Info("Goal contribution recorded")
	return updated, nil
}

// ListGoals returns the user's savings goals, oldest first.
func (l *Ledger) ListGoals(ctx context.Context, userID int64, activeOnly bool) ([]*models.SavingsGoal, error) {
	goals, err := l.store.GoalsByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, &PersistenceError{Op: "list goals", Err: err}
	}
	return goals, nil
}

// Reminders

// CreateReminder schedules a one-shot reminder message.
func (l *Ledger) CreateReminder(ctx context.Context, userID int64, message string, dueAt time.Time) (*models.Reminder, error) {
	reminder := &models.Reminder{
		UserID:    userID,
		Message:   strings.TrimSpace(message),
		DueAt:     dueAt,
		CreatedAt: l.now(),
	}
	if err := l.store.CreateReminder(ctx, reminder); err != nil {
		return nil, &PersistenceError{Op: "create reminder", Err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"due_at":  dueAt.Format(time.RFC3339),
	}).Info("Reminder scheduled")
	return reminder, nil
}

// ListReminders returns the user's pending reminders, soonest first.
func (l *Ledger) ListReminders(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	reminders, err := l.store.RemindersByUser(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list reminders", Err: err}
	}
	return reminders, nil
}

// DueReminders returns reminders across all users that are due at or
// before the given moment.
func (l *Ledger) DueReminders(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	reminders, err := l.store.DueReminders(ctx, before)
	if err != nil {
		return nil, &PersistenceError{Op: "list due reminders", Err: err}
	}
	return reminders, nil
}

// DeleteReminder removes a delivered reminder.
func (l *Ledger) DeleteReminder(ctx context.Context, userID, reminderID int64) error {
	if _, err := l.store.DeleteReminder(ctx, userID, reminderID); err != nil {
		return &PersistenceError{Op: "delete reminder", Err: err}
	}
	return nil
}

// UserIDsWithActiveBills lists the users the daily bill scan visits.
func (l *Ledger) UserIDsWithActiveBills(ctx context.Context) ([]int64, error) {
	userIDs, err := l.store.UserIDsWithActiveBills(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list bill users", Err: err}
	}
	return userIDs, nil
}

// Reference resolution

// resolveBill accepts a numeric id or a case-insensitive substring of
// the description. The oldest matching bill wins.
func (l *Ledger) resolveBill(ctx context.Context, userID int64, ref string) (*models.RecurringBill, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		bill, err := l.store.BillByID(ctx, userID, id)
		if err != nil {
			return nil, &PersistenceError{Op: "resolve bill", Err: err}
		}
		if bill != nil {
			return bill, nil
		}
	}

	bills, err := l.store.BillsByUser(ctx, userID, false)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve bill", Err: err}
	}
	needle := strings.ToLower(ref)
	for _, bill := range bills {
		if strings.Contains(strings.ToLower(bill.Description), needle) {
			return bill, nil
		}
	}
	return nil, &BillNotFoundError{Ref: ref}
}

// resolveGoal mirrors resolveBill for savings goals.
func (l *Ledger) resolveGoal(ctx context.Context, userID int64, ref string) (*models.SavingsGoal, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		goal, err := l.store.GoalByID(ctx, userID, id)
		if err != nil {
			return nil, &PersistenceError{Op: "resolve goal", Err: err}
		}
		if goal != nil {
			return goal, nil
		}
	}

	goals, err := l.store.GoalsByUser(ctx, userID, false)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve goal", Err: err}
	}
	needle := strings.ToLower(ref)
	for _, goal := range goals {
		if strings.Contains(strings.ToLower(goal.Name), needle) {
			return goal, nil
		}
	}
	return nil, &GoalNotFoundError{Ref: ref}
}
