package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/finance"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sink delivers scheduler messages to a user. The Telegram sender
// satisfies it; tests plug in a recorder.
type Sink interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Scheduler runs the two background jobs: a daily bills-due-tomorrow
// scan at the configured hour and a periodic poll for user-created
// reminders. Both go through the ledger's public API, same as live
// turns.
type Scheduler struct {
	cfg       *config.SchedulerConfig
	ledger    *finance.Ledger
	sink      Sink
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
	loc       *time.Location
	lang      string

	now func() time.Time
}

// NewScheduler creates the reminder scheduler
func NewScheduler(
	cfg *config.Config,
	ledger *finance.Ledger,
	sink Sink,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	loc *time.Location,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:       &cfg.Scheduler,
		ledger:    ledger,
		sink:      sink,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		loc:       loc,
		lang:      cfg.I18n.DefaultLanguage,
		now:       time.Now,
	}
}

// Start runs both jobs until ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"bill_reminder_hour": s.cfg.BillReminderHour,
		"timezone":           s.loc.String(),
		"reminder_poll":      s.cfg.ReminderPoll,
	}).Info("Scheduler started")

	go s.reminderLoop(ctx)
	s.billLoop(ctx)
}

func (s *Scheduler) billLoop(ctx context.Context) {
	for {
		wait := s.untilNextBillScan()
		s.logger.WithField("next_run_in", wait.Round(time.Second)).Debug("Bill scan scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.RunBillScan(ctx)
		}
	}
}

// untilNextBillScan computes the wait for the next scan hour in the
// configured timezone. Recomputed every cycle so DST shifts do not
// drift the schedule.
func (s *Scheduler) untilNextBillScan() time.Duration {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.BillReminderHour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// RunBillScan sends each user with bills due tomorrow one aggregated
// message. A failure for one user never stops the scan.
func (s *Scheduler) RunBillScan(ctx context.Context) {
	userIDs, err := s.ledger.UserIDsWithActiveBills(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Bill scan failed to list users")
		return
	}

	sent := 0
	for _, userID := range userIDs {
		bills, err := s.ledger.DueTomorrow(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("Bill scan failed for user")
			continue
		}
		if len(bills) == 0 {
			continue
		}

		if err := s.sink.Send(ctx, userID, s.billMessage(bills)); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("Failed to send bill reminder")
			continue
		}
		s.metrics.RecordReminderSent("bills")
		sent++
	}

	s.logger.WithFields(logrus.Fields{
		"users": len(userIDs),
		"sent":  sent,
	}).Info("Bill reminder scan finished")
}

func (s *Scheduler) billMessage(bills []*models.RecurringBill) string {
	lines := []string{s.localizer.Get(s.lang, i18n.MsgBillsDueHeader, nil)}

	total := decimal.Zero
	for _, bill := range bills {
		total = total.Add(bill.Amount)
		lines = append(lines, s.localizer.Get(s.lang, i18n.MsgBillsDueLine, map[string]interface{}{
			"Description": bill.Description,
			"Amount":      s.localizer.Money(bill.Amount),
		}))
	}

	lines = append(lines, s.localizer.Get(s.lang, i18n.MsgBillsDueTotal, map[string]interface{}{
		"Total": s.localizer.Money(total),
	}))

	return strings.Join(lines, "\n")
}

func (s *Scheduler) reminderLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReminderPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunReminderScan(ctx)
		}
	}
}

// RunReminderScan delivers due custom reminders and deletes them.
// Delivery failures keep the reminder for the next poll, so a flaky
// send retries instead of dropping the message.
func (s *Scheduler) RunReminderScan(ctx context.Context) {
	due, err := s.ledger.DueReminders(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Reminder poll failed")
		return
	}

	for _, rem := range due {
		text := s.localizer.Get(s.lang, i18n.MsgReminder, map[string]interface{}{
			"Message": rem.Message,
		})
		if err := s.sink.Send(ctx, rem.UserID, text); err != nil {
			s.logger.WithError(err).WithField("user_id", rem.UserID).Error("Failed to send reminder")
			continue
		}
		if err := s.ledger.DeleteReminder(ctx, rem.UserID, rem.ID); err != nil {
			s.logger.WithError(err).WithField("reminder_id", rem.ID).Error("Failed to delete delivered reminder")
		}
		s.metrics.RecordReminderSent("custom")
	}
}
