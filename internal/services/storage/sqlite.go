package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file. Amounts are
// persisted as decimal strings so no precision is lost, timestamps as
// unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file and ensures the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers from blocking the writer.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		day_of_month INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bills_user ON bills(user_id, active);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		bill_id INTEGER NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_at INTEGER NOT NULL,
		UNIQUE(bill_id, month, year)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_period ON payments(user_id, year, month);

	CREATE TABLE IF NOT EXISTS goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		current_amount TEXT NOT NULL,
		deadline INTEGER,
		category TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, active);

	CREATE TABLE IF NOT EXISTS contributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		goal_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contributions_goal ON contributions(goal_id);

	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_period ON expenses(user_id, year, month);

	CREATE TABLE IF NOT EXISTS incomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_incomes_period ON incomes(user_id, year, month);

	CREATE TABLE IF NOT EXISTS reminders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		due_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse stored amount %q: %w", raw, err)
	}
	return amount, nil
}

// Bills

func scanBill(row rowScanner) (*models.RecurringBill, error) {
	var bill models.RecurringBill
	var amount string
	var active int
	var createdAt int64

	err := row.Scan(&bill.ID, &bill.UserID, &bill.Description, &amount,
		&bill.Category, &bill.DayOfMonth, &active, &createdAt)
	if err != nil {
		return nil, err
	}

	if bill.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	bill.Active = active == 1
	bill.CreatedAt = time.Unix(createdAt, 0)
	return &bill, nil
}

func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.RecurringBill) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (user_id, description, amount, category, day_of_month, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bill.UserID, bill.Description, bill.Amount.String(), bill.Category,
		bill.DayOfMonth, boolToInt(bill.Active), bill.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	bill.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("bill insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BillByID(ctx context.Context, userID, billID int64) (*models.RecurringBill, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, description, amount, category, day_of_month, active, created_at
		 FROM bills WHERE id = ? AND user_id = ?`, billID, userID)
	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query bill: %w", err)
	}
	return bill, nil
}

func (s *SQLiteStore) BillsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.RecurringBill, error) {
	query := `SELECT id, user_id, description, amount, category, day_of_month, active, created_at
		 FROM bills WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var out []*models.RecurringBill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateBill(ctx context.Context, bill *models.RecurringBill) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET description = ?, amount = ?, category = ?, day_of_month = ?, active = ?
		 WHERE id = ? AND user_id = ?`,
		bill.Description, bill.Amount.String(), bill.Category, bill.DayOfMonth,
		boolToInt(bill.Active), bill.ID, bill.UserID)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bill rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Payments

func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.PaymentRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (user_id, bill_id, month, year, amount, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.UserID, payment.BillID, payment.Month, payment.Year,
		payment.Amount.String(), payment.PaidAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	payment.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("payment insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePayment(ctx context.Context, userID, billID int64, month, year int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payments WHERE user_id = ? AND bill_id = ? AND month = ? AND year = ?`,
		userID, billID, month, year)
	if err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStore) PaymentsForPeriod(ctx context.Context, userID int64, month, year int) ([]*models.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, bill_id, month, year, amount, paid_at
		 FROM payments WHERE user_id = ? AND month = ? AND year = ? ORDER BY id`,
		userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []*models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		var amount string
		var paidAt int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.BillID, &p.Month, &p.Year, &amount, &paidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		p.PaidAt = time.Unix(paidAt, 0)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Goals

func scanGoal(row rowScanner) (*models.SavingsGoal, error) {
	var goal models.SavingsGoal
	var target, current string
	var deadline sql.NullInt64
	var active int
	var createdAt int64

	err := row.Scan(&goal.ID, &goal.UserID, &goal.Name, &target, &current,
		&deadline, &goal.Category, &active, &createdAt)
	if err != nil {
		return nil, err
	}

	if goal.TargetAmount, err = parseAmount(target); err != nil {
		return nil, err
	}
	if goal.CurrentAmount, err = parseAmount(current); err != nil {
		return nil, err
	}
	if deadline.Valid {
		due := time.Unix(deadline.Int64, 0)
		goal.Deadline = &due
	}
	goal.Active = active == 1
	goal.CreatedAt = time.Unix(createdAt, 0)
	return &goal, nil
}

func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, name, target_amount, current_amount, deadline, category, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.UserID, goal.Name, goal.TargetAmount.String(), goal.CurrentAmount.String(),
		deadlineUnix(goal.Deadline), goal.Category, boolToInt(goal.Active), goal.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	goal.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("goal insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GoalByID(ctx context.Context, userID, goalID int64) (*models.SavingsGoal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, target_amount, current_amount, deadline, category, active, created_at
		 FROM goals WHERE id = ? AND user_id = ?`, goalID, userID)
	goal, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query goal: %w", err)
	}
	return goal, nil
}

func (s *SQLiteStore) GoalsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.SavingsGoal, error) {
	query := `SELECT id, user_id, name, target_amount, current_amount, deadline, category, active, created_at
		 FROM goals WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []*models.SavingsGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, goal)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, target_amount = ?, current_amount = ?, deadline = ?, category = ?, active = ?
		 WHERE id = ? AND user_id = ?`,
		goal.Name, goal.TargetAmount.String(), goal.CurrentAmount.String(),
		deadlineUnix(goal.Deadline), goal.Category, boolToInt(goal.Active),
		goal.ID, goal.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("goal rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AddContribution records the contribution and bumps the goal balance in
// one transaction, so concurrent contributions never lose an increment.
func (s *SQLiteStore) AddContribution(ctx context.Context, contribution *models.Contribution) (*models.SavingsGoal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin contribution tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, user_id, name, target_amount, current_amount, deadline, category, active, created_at
		 FROM goals WHERE id = ? AND user_id = ?`,
		contribution.GoalID, contribution.UserID)
	goal, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query goal for contribution: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO contributions (user_id, goal_id, amount, note, at) VALUES (?, ?, ?, ?, ?)`,
		contribution.UserID, contribution.GoalID, contribution.Amount.String(),
		contribution.Note, contribution.At.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert contribution: %w", err)
	}
	if contribution.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("contribution insert id: %w", err)
	}

	goal.CurrentAmount = goal.CurrentAmount.Add(contribution.Amount)
	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET current_amount = ? WHERE id = ?`,
		goal.CurrentAmount.String(), goal.ID); err != nil {
		return nil, fmt.Errorf("update goal balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit contribution: %w", err)
	}
	return goal, nil
}

// Expenses

func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, description, amount, category, month, year, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.UserID, expense.Description, expense.Amount.String(), expense.Category,
		expense.Month, expense.Year, expense.At.Unix())
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	expense.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("expense insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ExpensesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, description, amount, category, month, year, at
		 FROM expenses WHERE user_id = ? AND month = ? AND year = ? ORDER BY id`,
		userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []*models.Expense
	for rows.Next() {
		var e models.Expense
		var amount string
		var at int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &amount, &e.Category, &e.Month, &e.Year, &at); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		e.At = time.Unix(at, 0)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Income

// UpsertSalary keeps at most one salary row per user and period.
func (s *SQLiteStore) UpsertSalary(ctx context.Context, income *models.Income) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin salary tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE incomes SET amount = ?, description = ?
		 WHERE user_id = ? AND kind = ? AND month = ? AND year = ?`,
		income.Amount.String(), income.Description,
		income.UserID, models.IncomeSalary, income.Month, income.Year)
	if err != nil {
		return fmt.Errorf("update salary: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("salary rows affected: %w", err)
	}

	if rows > 0 {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM incomes WHERE user_id = ? AND kind = ? AND month = ? AND year = ?`,
			income.UserID, models.IncomeSalary, income.Month, income.Year).Scan(&income.ID)
		if err != nil {
			return fmt.Errorf("query salary id: %w", err)
		}
	} else {
		ins, err := tx.ExecContext(ctx,
			`INSERT INTO incomes (user_id, amount, kind, month, year, description)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			income.UserID, income.Amount.String(), models.IncomeSalary,
			income.Month, income.Year, income.Description)
		if err != nil {
			return fmt.Errorf("insert salary: %w", err)
		}
		if income.ID, err = ins.LastInsertId(); err != nil {
			return fmt.Errorf("salary insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit salary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateIncome(ctx context.Context, income *models.Income) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, amount, kind, month, year, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		income.UserID, income.Amount.String(), income.Kind,
		income.Month, income.Year, income.Description)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	income.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("income insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncomesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Income, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, kind, month, year, description
		 FROM incomes WHERE user_id = ? AND month = ? AND year = ?
		 ORDER BY (kind <> 'salary'), id`,
		userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("query incomes: %w", err)
	}
	defer rows.Close()

	var out []*models.Income
	for rows.Next() {
		var in models.Income
		var amount string
		if err := rows.Scan(&in.ID, &in.UserID, &amount, &in.Kind, &in.Month, &in.Year, &in.Description); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if in.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

// Reminders

func (s *SQLiteStore) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, message, due_at, created_at) VALUES (?, ?, ?, ?)`,
		reminder.UserID, reminder.Message, reminder.DueAt.Unix(), reminder.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	reminder.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reminder insert id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemindersByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, user_id, message, due_at, created_at FROM reminders WHERE user_id = ? ORDER BY due_at`,
		userID)
}

func (s *SQLiteStore) DueReminders(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, user_id, message, due_at, created_at FROM reminders WHERE due_at <= ? ORDER BY due_at`,
		before.Unix())
}

func (s *SQLiteStore) queryReminders(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		var r models.Reminder
		var dueAt, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &dueAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.DueAt = time.Unix(dueAt, 0)
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteReminder(ctx context.Context, userID, reminderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = ? AND user_id = ?`, reminderID, userID)
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reminder rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *SQLiteStore) UserIDsWithActiveBills(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM bills WHERE active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query bill users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan bill user: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func deadlineUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
