package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cop(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func seedBill(t *testing.T, store *MemoryStore, userID int64, description string, active bool) *models.RecurringBill {
	t.Helper()
	bill := &models.RecurringBill{
		UserID:      userID,
		Description: description,
		Amount:      cop(100000),
		Category:    "servicios",
		DayOfMonth:  10,
		Active:      active,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.CreateBill(context.Background(), bill))
	return bill
}

func TestPaymentUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bill := seedBill(t, store, 42, "Internet", true)

	first := &models.PaymentRecord{UserID: 42, BillID: bill.ID, Month: 3, Year: 2025, Amount: cop(85000), PaidAt: time.Now()}
	require.NoError(t, store.CreatePayment(ctx, first))
	assert.NotZero(t, first.ID)

	dup := &models.PaymentRecord{UserID: 42, BillID: bill.ID, Month: 3, Year: 2025, Amount: cop(85000), PaidAt: time.Now()}
	require.ErrorIs(t, store.CreatePayment(ctx, dup), ErrDuplicatePayment)

	other := &models.PaymentRecord{UserID: 42, BillID: bill.ID, Month: 4, Year: 2025, Amount: cop(85000), PaidAt: time.Now()}
	assert.NoError(t, store.CreatePayment(ctx, other), "a different period is a different payment")
}

func TestPaymentUniquenessUnderConcurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bill := seedBill(t, store, 42, "Internet", true)

	const attempts = 20
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreatePayment(ctx, &models.PaymentRecord{
				UserID: 42, BillID: bill.ID, Month: 3, Year: 2025,
				Amount: cop(85000), PaidAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, ErrDuplicatePayment)
	}
	assert.Equal(t, 1, won, "exactly one writer records the payment")
}

func TestSalaryUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.Income{UserID: 42, Amount: cop(2000000), Kind: models.IncomeSalary, Month: 3, Year: 2025}
	require.NoError(t, store.UpsertSalary(ctx, first))

	second := &models.Income{UserID: 42, Amount: cop(2500000), Kind: models.IncomeSalary, Month: 3, Year: 2025}
	require.NoError(t, store.UpsertSalary(ctx, second))
	assert.Equal(t, first.ID, second.ID, "replacing the salary keeps its identity")

	extra := &models.Income{UserID: 42, Amount: cop(300000), Kind: models.IncomeExtra, Month: 3, Year: 2025, Description: "freelance"}
	require.NoError(t, store.CreateIncome(ctx, extra))

	incomes, err := store.IncomesForMonth(ctx, 42, 3, 2025)
	require.NoError(t, err)
	require.Len(t, incomes, 2)
	assert.Equal(t, models.IncomeSalary, incomes[0].Kind, "salary listed first")
	assert.True(t, incomes[0].Amount.Equal(cop(2500000)))
	assert.Equal(t, "freelance", incomes[1].Description)
}

func TestContributionUpdatesGoal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	goal := &models.SavingsGoal{UserID: 42, Name: "Viaje", TargetAmount: cop(5000000), Category: "viaje", Active: true}
	require.NoError(t, store.CreateGoal(ctx, goal))

	updated, err := store.AddContribution(ctx, &models.Contribution{UserID: 42, GoalID: goal.ID, Amount: cop(200000), At: time.Now()})
	require.NoError(t, err)
	assert.True(t, updated.CurrentAmount.Equal(cop(200000)))

	updated, err = store.AddContribution(ctx, &models.Contribution{UserID: 42, GoalID: goal.ID, Amount: cop(300000), At: time.Now()})
	require.NoError(t, err)
	assert.True(t, updated.CurrentAmount.Equal(cop(500000)), "contributions accumulate")

	stored, err := store.GoalByID(ctx, 42, goal.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.CurrentAmount.Equal(cop(500000)))

	_, err = store.AddContribution(ctx, &models.Contribution{UserID: 99, GoalID: goal.ID, Amount: cop(1000), At: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound, "another user's goal is invisible")
}

func TestScopesByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bill := seedBill(t, store, 42, "Internet", true)

	got, err := store.BillByID(ctx, 99, bill.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	reminder := &models.Reminder{UserID: 42, Message: "pagar tarjeta", DueAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	require.NoError(t, store.CreateReminder(ctx, reminder))

	removed, err := store.DeleteReminder(ctx, 99, reminder.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = store.DeleteReminder(ctx, 42, reminder.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestDueRemindersSortedAndCut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

	for _, r := range []struct {
		message string
		dueAt   time.Time
	}{
		{"segundo", base.Add(-time.Hour)},
		{"primero", base.Add(-2 * time.Hour)},
		{"futuro", base.Add(time.Hour)},
	} {
		require.NoError(t, store.CreateReminder(ctx, &models.Reminder{
			UserID: 42, Message: r.message, DueAt: r.dueAt, CreatedAt: base,
		}))
	}

	due, err := store.DueReminders(ctx, base)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "primero", due[0].Message, "oldest due first")
	assert.Equal(t, "segundo", due[1].Message)
}

func TestUserIDsWithActiveBills(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seedBill(t, store, 9, "Arriendo", true)
	seedBill(t, store, 7, "Internet", true)
	seedBill(t, store, 7, "Luz", true)
	seedBill(t, store, 13, "Gimnasio", false)

	ids, err := store.UserIDsWithActiveBills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, ids, "distinct, sorted, inactive excluded")
}

func TestUpdateUnknownReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.UpdateBill(ctx, &models.RecurringBill{ID: 999, UserID: 42})
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.UpdateGoal(ctx, &models.SavingsGoal{ID: 999, UserID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	bill := seedBill(t, store, 42, "Internet", true)

	fetched, err := store.BillByID(ctx, 42, bill.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)

	fetched.Description = "mutated"
	fetched.Amount = cop(1)

	again, err := store.BillByID(ctx, 42, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "Internet", again.Description, "callers cannot reach the stored record")
	assert.True(t, again.Amount.Equal(cop(100000)))
}
