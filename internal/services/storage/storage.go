package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrDuplicatePayment is returned by CreatePayment when a record for
// the same (bill, month, year) already exists. Every backend enforces
// the constraint itself (UNIQUE index, HSetNX, atomic map add) so the
// guarantee holds even when the store is shared between processes.
var ErrDuplicatePayment = errors.New("payment already recorded for bill and period")

// ErrNotFound is returned by updates against rows that do not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence operations behind the finance ledger.
// List results are ordered by id ascending unless noted. Lookups that
// miss return (nil, nil), not an error.
type Store interface {
	// Bills
	CreateBill(ctx context.Context, bill *models.RecurringBill) error
	BillByID(ctx context.Context, userID, billID int64) (*models.RecurringBill, error)
	BillsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.RecurringBill, error)
	UpdateBill(ctx context.Context, bill *models.RecurringBill) error

	// Payments
	CreatePayment(ctx context.Context, payment *models.PaymentRecord) error
	DeletePayment(ctx context.Context, userID, billID int64, month, year int) (bool, error)
	PaymentsForPeriod(ctx context.Context, userID int64, month, year int) ([]*models.PaymentRecord, error)

	// Goals and contributions
	CreateGoal(ctx context.Context, goal *models.SavingsGoal) error
	GoalByID(ctx context.Context, userID, goalID int64) (*models.SavingsGoal, error)
	GoalsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.SavingsGoal, error)
	UpdateGoal(ctx context.Context, goal *models.SavingsGoal) error
	// AddContribution records the contribution and increments the goal's
	// current amount in one atomic step, returning the updated goal.
	AddContribution(ctx context.Context, contribution *models.Contribution) (*models.SavingsGoal, error)

	// Expenses
	CreateExpense(ctx context.Context, expense *models.Expense) error
	ExpensesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Expense, error)

	// Income
	UpsertSalary(ctx context.Context, income *models.Income) error
	CreateIncome(ctx context.Context, income *models.Income) error
	IncomesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Income, error)

	// Reminders
	CreateReminder(ctx context.Context, reminder *models.Reminder) error
	RemindersByUser(ctx context.Context, userID int64) ([]*models.Reminder, error)
	// DueReminders returns reminders across all users due at or before
	// the given time, ordered by due time.
	DueReminders(ctx context.Context, before time.Time) ([]*models.Reminder, error)
	DeleteReminder(ctx context.Context, userID, reminderID int64) (bool, error)

	// UserIDsWithActiveBills lists users the daily bill scan must visit.
	UserIDsWithActiveBills(ctx context.Context) ([]int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Manager selects and fronts the configured backend. The embedded Store
// carries the data operations; the manager adds the periodic health
// check feeding the storage-up gauge.
type Manager struct {
	Store

	logger  *logrus.Logger
	metrics *middleware.Metrics
}

// NewManager creates a storage manager for the configured backend
func NewManager(cfg *config.Config, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Storage.Type {
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Storage.SQLite.Path)
	case "redis":
		store, err = NewRedisStore(&cfg.Storage.Redis)
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}

	logger.WithField("type", cfg.Storage.Type).Info("Storage initialized")

	return &Manager{
		Store:   store,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start runs the periodic backend health check until ctx is done
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := m.Ping(pingCtx)
			cancel()

			m.metrics.SetStorageUp(err == nil)
			if err != nil {
				m.logger.WithError(err).Error("Storage health check failed")
			}
		}
	}
}
