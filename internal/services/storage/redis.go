package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/go-redis/redis/v8"
)

// contributionRetries bounds the optimistic Watch loop on goal updates.
const contributionRetries = 5

// RedisStore implements Store on Redis. Records are JSON values inside
// per-user hashes; payment idempotency rides on HSetNX and the goal
// balance update runs under WATCH so concurrent contributions retry
// instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) nextID(ctx context.Context) (int64, error) {
	id, err := r.client.Incr(ctx, "finance:seq").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

func billsKey(userID int64) string     { return fmt.Sprintf("finance:bills:%d", userID) }
func paymentsKey(userID int64) string  { return fmt.Sprintf("finance:payments:%d", userID) }
func goalsKey(userID int64) string     { return fmt.Sprintf("finance:goals:%d", userID) }
func remindersKey(userID int64) string { return fmt.Sprintf("finance:reminders:%d", userID) }

func contributionsKey(userID, goalID int64) string {
	return fmt.Sprintf("finance:contrib:%d:%d", userID, goalID)
}

func expensesKey(userID int64, month, year int) string {
	return fmt.Sprintf("finance:expenses:%d:%04d-%02d", userID, year, month)
}

func incomesKey(userID int64, month, year int) string {
	return fmt.Sprintf("finance:incomes:%d:%04d-%02d", userID, year, month)
}

func salaryKeyRedis(userID int64, month, year int) string {
	return fmt.Sprintf("finance:salary:%d:%04d-%02d", userID, year, month)
}

const (
	billUsersKey    = "finance:bill_users"
	remindersDueKey = "finance:reminders_due"
)

// Bills

func (r *RedisStore) CreateBill(ctx context.Context, bill *models.RecurringBill) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	bill.ID = id

	data, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to marshal bill: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, billsKey(bill.UserID), idKey(bill.ID), data)
	pipe.SAdd(ctx, billUsersKey, bill.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save bill: %w", err)
	}
	return nil
}

func (r *RedisStore) BillByID(ctx context.Context, userID, billID int64) (*models.RecurringBill, error) {
	data, err := r.client.HGet(ctx, billsKey(userID), idKey(billID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	var bill models.RecurringBill
	if err := json.Unmarshal([]byte(data), &bill); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bill: %w", err)
	}
	return &bill, nil
}

func (r *RedisStore) BillsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.RecurringBill, error) {
	values, err := r.client.HGetAll(ctx, billsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	var out []*models.RecurringBill
	for _, data := range values {
		var bill models.RecurringBill
		if err := json.Unmarshal([]byte(data), &bill); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bill: %w", err)
		}
		if activeOnly && !bill.Active {
			continue
		}
		out = append(out, &bill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisStore) UpdateBill(ctx context.Context, bill *models.RecurringBill) error {
	exists, err := r.client.HExists(ctx, billsKey(bill.UserID), idKey(bill.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check bill: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	data, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to marshal bill: %w", err)
	}
	if err := r.client.HSet(ctx, billsKey(bill.UserID), idKey(bill.ID), data).Err(); err != nil {
		return fmt.Errorf("failed to save bill: %w", err)
	}

	// Drop the user from the scan set once no active bill remains.
	if !bill.Active {
		active, err := r.BillsByUser(ctx, bill.UserID, true)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			if err := r.client.SRem(ctx, billUsersKey, bill.UserID).Err(); err != nil {
				return fmt.Errorf("failed to update bill users: %w", err)
			}
		}
	}
	return nil
}

// Payments

func (r *RedisStore) CreatePayment(ctx context.Context, payment *models.PaymentRecord) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}

	stored := *payment
	stored.ID = id
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	field := paymentKey(payment.BillID, payment.Month, payment.Year)
	created, err := r.client.HSetNX(ctx, paymentsKey(payment.UserID), field, data).Result()
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	if !created {
		return ErrDuplicatePayment
	}
	payment.ID = id
	return nil
}

func (r *RedisStore) DeletePayment(ctx context.Context, userID, billID int64, month, year int) (bool, error) {
	removed, err := r.client.HDel(ctx, paymentsKey(userID), paymentKey(billID, month, year)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete payment: %w", err)
	}
	return removed > 0, nil
}

func (r *RedisStore) PaymentsForPeriod(ctx context.Context, userID int64, month, year int) ([]*models.PaymentRecord, error) {
	values, err := r.client.HGetAll(ctx, paymentsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	var out []*models.PaymentRecord
	for _, data := range values {
		var p models.PaymentRecord
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
		}
		if p.Month != month || p.Year != year {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Goals

func (r *RedisStore) CreateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	goal.ID = id

	data, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("failed to marshal goal: %w", err)
	}
	if err := r.client.HSet(ctx, goalsKey(goal.UserID), idKey(goal.ID), data).Err(); err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

func (r *RedisStore) GoalByID(ctx context.Context, userID, goalID int64) (*models.SavingsGoal, error) {
	data, err := r.client.HGet(ctx, goalsKey(userID), idKey(goalID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	var goal models.SavingsGoal
	if err := json.Unmarshal([]byte(data), &goal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goal: %w", err)
	}
	return &goal, nil
}

func (r *RedisStore) GoalsByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.SavingsGoal, error) {
	values, err := r.client.HGetAll(ctx, goalsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	var out []*models.SavingsGoal
	for _, data := range values {
		var goal models.SavingsGoal
		if err := json.Unmarshal([]byte(data), &goal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goal: %w", err)
		}
		if activeOnly && !goal.Active {
			continue
		}
		out = append(out, &goal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisStore) UpdateGoal(ctx context.Context, goal *models.SavingsGoal) error {
	exists, err := r.client.HExists(ctx, goalsKey(goal.UserID), idKey(goal.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check goal: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	data, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("failed to marshal goal: %w", err)
	}
	if err := r.client.HSet(ctx, goalsKey(goal.UserID), idKey(goal.ID), data).Err(); err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

func (r *RedisStore) AddContribution(ctx context.Context, contribution *models.Contribution) (*models.SavingsGoal, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}
	contribution.ID = id

	contribData, err := json.Marshal(contribution)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contribution: %w", err)
	}

	key := goalsKey(contribution.UserID)
	field := idKey(contribution.GoalID)

	var updated *models.SavingsGoal
	apply := func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, key, field).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get goal: %w", err)
		}

		var goal models.SavingsGoal
		if err := json.Unmarshal([]byte(data), &goal); err != nil {
			return fmt.Errorf("failed to unmarshal goal: %w", err)
		}
		goal.CurrentAmount = goal.CurrentAmount.Add(contribution.Amount)

		goalData, err := json.Marshal(&goal)
		if err != nil {
			return fmt.Errorf("failed to marshal goal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, goalData)
			pipe.RPush(ctx, contributionsKey(contribution.UserID, contribution.GoalID), contribData)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &goal
		return nil
	}

	for i := 0; i < contributionRetries; i++ {
		err := r.client.Watch(ctx, apply, key)
		if err == nil {
			return updated, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to apply contribution after %d attempts", contributionRetries)
}

// Expenses

func (r *RedisStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	expense.ID = id

	data, err := json.Marshal(expense)
	if err != nil {
		return fmt.Errorf("failed to marshal expense: %w", err)
	}
	if err := r.client.RPush(ctx, expensesKey(expense.UserID, expense.Month, expense.Year), data).Err(); err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

func (r *RedisStore) ExpensesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Expense, error) {
	values, err := r.client.LRange(ctx, expensesKey(userID, month, year), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var out []*models.Expense
	for _, data := range values {
		var e models.Expense
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal expense: %w", err)
		}
		out = append(out, &e)
	}
	return out, nil
}

// Income

func (r *RedisStore) UpsertSalary(ctx context.Context, income *models.Income) error {
	key := salaryKeyRedis(income.UserID, income.Month, income.Year)

	// Keep the original id when replacing an existing salary entry.
	data, err := r.client.Get(ctx, key).Result()
	if err == nil {
		var existing models.Income
		if err := json.Unmarshal([]byte(data), &existing); err != nil {
			return fmt.Errorf("failed to unmarshal salary: %w", err)
		}
		income.ID = existing.ID
	} else if err == redis.Nil {
		id, err := r.nextID(ctx)
		if err != nil {
			return err
		}
		income.ID = id
	} else {
		return fmt.Errorf("failed to get salary: %w", err)
	}

	payload, err := json.Marshal(income)
	if err != nil {
		return fmt.Errorf("failed to marshal salary: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save salary: %w", err)
	}
	return nil
}

func (r *RedisStore) CreateIncome(ctx context.Context, income *models.Income) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	income.ID = id

	data, err := json.Marshal(income)
	if err != nil {
		return fmt.Errorf("failed to marshal income: %w", err)
	}
	if err := r.client.RPush(ctx, incomesKey(income.UserID, income.Month, income.Year), data).Err(); err != nil {
		return fmt.Errorf("failed to save income: %w", err)
	}
	return nil
}

func (r *RedisStore) IncomesForMonth(ctx context.Context, userID int64, month, year int) ([]*models.Income, error) {
	var out []*models.Income

	data, err := r.client.Get(ctx, salaryKeyRedis(userID, month, year)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get salary: %w", err)
	}
	if err == nil {
		var salary models.Income
		if err := json.Unmarshal([]byte(data), &salary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal salary: %w", err)
		}
		out = append(out, &salary)
	}

	values, err := r.client.LRange(ctx, incomesKey(userID, month, year), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list incomes: %w", err)
	}
	for _, data := range values {
		var in models.Income
		if err := json.Unmarshal([]byte(data), &in); err != nil {
			return nil, fmt.Errorf("failed to unmarshal income: %w", err)
		}
		out = append(out, &in)
	}
	return out, nil
}

// Reminders

func (r *RedisStore) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	reminder.ID = id

	data, err := json.Marshal(reminder)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, remindersKey(reminder.UserID), idKey(reminder.ID), data)
	pipe.ZAdd(ctx, remindersDueKey, &redis.Z{
		Score:  float64(reminder.DueAt.Unix()),
		Member: dueMember(reminder.UserID, reminder.ID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	return nil
}

func (r *RedisStore) RemindersByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	values, err := r.client.HGetAll(ctx, remindersKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	var out []*models.Reminder
	for _, data := range values {
		var reminder models.Reminder
		if err := json.Unmarshal([]byte(data), &reminder); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reminder: %w", err)
		}
		out = append(out, &reminder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (r *RedisStore) DueReminders(ctx context.Context, before time.Time) ([]*models.Reminder, error) {
	members, err := r.client.ZRangeByScore(ctx, remindersDueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range due reminders: %w", err)
	}

	var out []*models.Reminder
	for _, member := range members {
		userID, reminderID, err := parseDueMember(member)
		if err != nil {
			return nil, err
		}
		data, err := r.client.HGet(ctx, remindersKey(userID), idKey(reminderID)).Result()
		if err == redis.Nil {
			// Orphaned index entry, drop it.
			r.client.ZRem(ctx, remindersDueKey, member)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get reminder: %w", err)
		}

		var reminder models.Reminder
		if err := json.Unmarshal([]byte(data), &reminder); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reminder: %w", err)
		}
		out = append(out, &reminder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (r *RedisStore) DeleteReminder(ctx context.Context, userID, reminderID int64) (bool, error) {
	pipe := r.client.TxPipeline()
	del := pipe.HDel(ctx, remindersKey(userID), idKey(reminderID))
	pipe.ZRem(ctx, remindersDueKey, dueMember(userID, reminderID))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	return del.Val() > 0, nil
}

func dueMember(userID, reminderID int64) string {
	return fmt.Sprintf("%d:%d", userID, reminderID)
}

func parseDueMember(member string) (int64, int64, error) {
	var userID, reminderID int64
	if _, err := fmt.Sscanf(member, "%d:%d", &userID, &reminderID); err != nil {
		return 0, 0, fmt.Errorf("malformed reminder index entry %q: %w", member, err)
	}
	return userID, reminderID, nil
}

func (r *RedisStore) UserIDsWithActiveBills(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, billUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bill users: %w", err)
	}

	out := make([]int64, 0, len(members))
	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed bill user entry %q: %w", member, err)
		}
		out = append(out, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
