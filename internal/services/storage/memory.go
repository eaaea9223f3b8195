package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps every collection in a process-local go-cache. It
// backs tests and single-node development runs; payment uniqueness is
// still enforced here (atomic Add on the triple key), so ledger
// behavior is identical across backends.
type MemoryStore struct {
	bills         *cache.Cache
	payments      *cache.Cache
	goals         *cache.Cache
	contributions *cache.Cache
	expenses      *cache.Cache
	incomes       *cache.Cache
	salaries      *cache.Cache
	reminders     *cache.Cache

	seq    int64
	goalMu sync.Mutex // serializes goal read-modify-write
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	collection := func() *cache.Cache {
		return cache.New(cache.NoExpiration, cache.NoExpiration)
	}

	return &MemoryStore{
		bills:         collection(),
		payments:      collection(),
		goals:         collection(),
		contributions: collection(),
		expenses:      collection(),
		incomes:       collection(),
		salaries:      collection(),
		reminders:     collection(),
	}
}

func (m *MemoryStore) nextID() int64 {
	return atomic.AddInt64(&m.seq, 1)
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func paymentKey(billID int64, month, year int) string {
	return fmt.Sprintf("%d:%d:%d", billID, month, year)
}

func salaryKey(userID int64, month, year int) string {
	return fmt.Sprintf("%d:%d:%d", userID, month, year)
}

// Bills

func (m *MemoryStore) CreateBill(ctx context.Context, bill *models.RecurringBill) error {
	bill.ID = m.nextID()
	stored := *bill
	m.bills.Set(idKey(bill.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) BillByID(ctx context.Context, userID, billID int64) (*models.RecurringBill, error) {
	val, found := m.bills.Get(idKey(billID))
	if !found {
		return nil, nil
	}
	bill := val.(*models.RecurringBill)
	if bill.UserID != userID {
		return nil, nil
	}
	out := *bill
	return &out, nil
}

func (m *MemoryStore) BillsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.RecurringBill, error) {
	var out []*models.RecurringBill
	for _, item := range m.bills.Items() {
		bill := item.Object.(*models.RecurringBill)
		if bill.UserID != userID {
			continue
		}
		if activeOnly && !bill.Active {
			continue
		}
		cp := *bill
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateBill(ctx context.Context, bill *models.RecurringBill) error {
	if _, found := m.bills.Get(idKey(bill.ID)); !found {
		return ErrNotFound
	}
	stored := *bill
	m.bills.Set(idKey(bill.ID), &stored, cache.NoExpiration)
	return nil
}

// Payments

func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.PaymentRecord) error {
	id := m.nextID()
	stored := *payment
	stored.ID = id

	// Add is atomic and fails when the key exists: the uniqueness check.
	if err := m.payments.Add(paymentKey(payment.BillID, payment.Month, payment.Year), &stored, cache.NoExpiration); err != nil {
		return ErrDuplicatePayment
	}
	payment.ID = id
	return nil
}

func (m *MemoryStore) DeletePayment(ctx context.Context, userID, billID int64, month, year int) (bool, error) {
	key := paymentKey(billID, month, year)
	val, found := m.payments.Get(key)
	if !found {
		return false, nil
	}
	if val.(*models.PaymentRecord).UserID != userID {
		return false, nil
	}
	m.payments.Delete(key)
	return true, nil
}

func (m *MemoryStore) PaymentsForPeriod(ctx context.Context, userID int64, month, year int) ([]*models.PaymentRecord, error) {
	var out []*models.PaymentRecord
	for _, item := range m.payments.Items() {
		p := item.Object.(*models.PaymentRecord)
		if p.UserID != userID || p.Month != month || p.Year != year {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Goals

func (m *MemoryStore) CreateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	goal.ID = m.nextID()
	stored := *goal
	m.goals.Set(idKey(goal.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) GoalByID(ctx context.Context, userID, goalID int64) (*models.SavingsGoal, error) {
	val, found := m.goals.Get(idKey(goalID))
	if !found {
		return nil, nil
	}
	goal := val.(*models.SavingsGoal)
	if goal.UserID != userID {
		return nil, nil
	}
	out := *goal
	return &out, nil
}

func (m *MemoryStore) GoalsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.SavingsGoal, error) {
	var out []*models.SavingsGoal
	for _, item := range m.goals.Items() {
		goal := item.Object.(*models.SavingsGoal)
		if goal.UserID != userID {
			continue
		}
		if activeOnly && !goal.Active {
			continue
		}
		cp := *goal
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	if _, found := m.goals.Get(idKey(goal.ID)); !found {
		return ErrNotFound
	}
	stored := *goal
	m.goals.Set(idKey(goal.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) AddContribution(ctx context.Context, contribution *models.Contribution) (*models.SavingsGoal, error) {
	m.goalMu.Lock()
	defer m.goalMu.Unlock()

	val, found := m.goals.Get(idKey(contribution.GoalID))
	if !found {
		return nil, ErrNotFound
	}
	goal := val.(*models.SavingsGoal)
	if goal.UserID != contribution.UserID {
		return nil, ErrNotFound
	}

	contribution.ID = m.nextID()
	storedContribution := *contribution
	m.contributions.Set(idKey(contribution.ID), &storedContribution, cache.NoExpiration)

	updated := *goal
	updated.CurrentAmount = goal.CurrentAmount.Add(contribution.Amount)
	m.goals.Set(idKey(goal.ID), &updated, cache.NoExpiration)

	out := updated
	return &out, nil
}

// Expenses

func (m *MemoryStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	expense.ID = m.nextID()
	stored := *expense
	m.expenses.Set(idKey(expense.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) ExpensesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Expense, error) {
	var out []*models.Expense
	for _, item := range m.expenses.Items() {
		e := item.Object.(*models.Expense)
		if e.UserID != userID || e.Month != month || e.Year != year {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Income

func (m *MemoryStore) UpsertSalary(ctx context.Context, income *models.Income) error {
	key := salaryKey(income.UserID, income.Month, income.Year)
	if val, found := m.salaries.Get(key); found {
		income.ID = val.(*models.Income).ID
	} else {
		income.ID = m.nextID()
	}
	stored := *income
	m.salaries.Set(key, &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) CreateIncome(ctx context.Context, income *models.Income) error {
	income.ID = m.nextID()
	stored := *income
	m.incomes.Set(idKey(income.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) IncomesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Income, error) {
	var out []*models.Income

	if val, found := m.salaries.Get(salaryKey(userID, month, year)); found {
		cp := *val.(*models.Income)
		out = append(out, &cp)
	}

	var extras []*models.Income
	for _, item := range m.incomes.Items() {
		in := item.Object.(*models.Income)
		if in.UserID != userID || in.Month != month || in.Year != year {
			continue
		}
		cp := *in
		extras = append(extras, &cp)
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i].ID < extras[j].ID })

	return append(out, extras...), nil
}

// Reminders

func (m *MemoryStore) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	reminder.ID = m.nextID()
	stored := *reminder
	m.reminders.Set(idKey(reminder.ID), &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) RemindersByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	var out []*models.Reminder
	for _, item := range m.reminders.Items() {
		r := item.Object.(*models.Reminder)
		if r.UserID != userID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *MemoryStore) DueReminders(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	var out []*models.Reminder
	for _, item := range m.reminders.Items() {
		r := item.Object.(*models.Reminder)
		if r.DueAt.After(before) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *MemoryStore) DeleteReminder(ctx context.Context, userID, reminderID int64) (bool, error) {
	val, found := m.reminders.Get(idKey(reminderID))
	if !found {
		return false, nil
	}
	if val.(*models.Reminder).UserID != userID {
		return false, nil
	}
	m.reminders.Delete(idKey(reminderID))
	return true, nil
}

// UserIDsWithActiveBills lists users the daily bill scan must visit
func (m *MemoryStore) UserIDsWithActiveBills(ctx context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	for _, item := range m.bills.Items() {
		bill := item.Object.(*models.RecurringBill)
		if bill.Active {
			seen[bill.UserID] = true
		}
	}

	out := make([]int64, 0, len(seen))
	for userID := range seen {
		out = append(out, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
