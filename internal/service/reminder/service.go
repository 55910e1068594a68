package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clubworks/portal-api/internal/email"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/realtime"
	"github.com/clubworks/portal-api/internal/repository"
)

// Service scans open periods and fires due reminders. A reminder is
// identified by (period, member, kind); the repository's dedup insert
// guarantees each fires at most once no matter how often or how late
// the scan runs.
type Service struct {
	periodRepo   repository.PeriodRepository
	memberRepo   repository.MemberRepository
	reminderRepo repository.ReminderRepository
	broker       realtime.Broker
	email        email.Service
	logger       *zerolog.Logger
}

func NewService(
	periodRepo repository.PeriodRepository,
	memberRepo repository.MemberRepository,
	reminderRepo repository.ReminderRepository,
	broker realtime.Broker,
	emailSvc email.Service,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		periodRepo:   periodRepo,
		memberRepo:   memberRepo,
		reminderRepo: reminderRepo,
		broker:       broker,
		email:        emailSvc,
		logger:       logger,
	}
}

// Scan fires every reminder whose threshold now has crossed, across
// all open periods. Errors on individual periods or members are
// logged and skipped; the next scan retries them.
func (s *Service) Scan(ctx context.Context, now time.Time) error {
	periods, err := s.periodRepo.ListOpen(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list open periods: %w", err)
	}

	fired := 0
	for _, period := range periods {
		if !period.RemindersEnabled {
			continue
		}
		n, err := s.scanPeriod(ctx, period, now)
		if err != nil {
			s.logger.Error().Err(err).
				Str("period_id", period.ID.String()).
				Msg("reminder scan failed for period")
			continue
		}
		fired += n
	}

	s.logger.Info().
		Int("periods", len(periods)).
		Int("fired", fired).
		Time("now", now).
		Msg("reminder scan complete")
	return nil
}

func (s *Service) scanPeriod(ctx context.Context, period *model.PaymentPeriod, now time.Time) (int, error) {
	var due []model.ReminderKind
	for _, kind := range model.ReminderKinds() {
		if !now.Before(period.ReminderThreshold(kind)) {
			due = append(due, kind)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	members, err := s.memberRepo.ListApplicable(ctx, period.Applicability, period.SpecificMembers())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve applicable members: %w", err)
	}

	fired := 0
	for _, kind := range due {
		for _, member := range members {
			ok, err := s.fire(ctx, period, member, kind, now)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("period_id", period.ID.String()).
					Str("member_id", member.ID.String()).
					Str("kind", string(kind)).
					Msg("failed to fire reminder")
				continue
			}
			if ok {
				fired++
			}
		}
	}
	return fired, nil
}

// fire attempts the dedup insert; only the attempt that wins it
// delivers the realtime event and the email copy.
func (s *Service) fire(ctx context.Context, period *model.PaymentPeriod, member *model.Member, kind model.ReminderKind, now time.Time) (bool, error) {
	rec := &model.ReminderRecord{
		PeriodID: period.ID,
		MemberID: member.ID,
		Kind:     kind,
		FiredAt:  now,
	}

	title, message := reminderContent(period, kind)
	actionURL := fmt.Sprintf("/payment-periods/%s", period.ID)
	n := &model.Notification{
		ID:        uuid.New(),
		MemberID:  member.ID,
		Type:      model.NotificationPaymentReminder,
		Title:     title,
		Message:   message,
		ActionURL: &actionURL,
		CreatedAt: now,
	}

	fired, err := s.reminderRepo.Fire(ctx, rec, n)
	if err != nil || !fired {
		return false, err
	}

	s.broker.Publish(ctx, member.ID, realtime.Event{
		Name:    realtime.EventNotificationNew,
		Payload: map[string]interface{}{"notification": n},
	})

	if err := s.email.SendReminder(ctx, member.Email, title, message, actionURL); err != nil {
		s.logger.Warn().Err(err).
			Str("member_id", member.ID.String()).
			Msg("failed to send reminder email")
	}
	return true, nil
}

func reminderContent(period *model.PaymentPeriod, kind model.ReminderKind) (string, string) {
	amount := fmt.Sprintf("%s %s", period.Currency, period.Amount.StringFixed(2))

	switch kind {
	case model.ReminderFirst:
		return "Payment Reminder", fmt.Sprintf("%s (%s) is due on %s.",
			period.Title, amount, period.DueDate.Format("2 Jan 2006"))
	case model.ReminderSecond:
		return "Payment Due Soon", fmt.Sprintf("%s (%s) is due on %s. Please pay soon to avoid late fees.",
			period.Title, amount, period.DueDate.Format("2 Jan 2006"))
	default:
		return "Final Payment Reminder", fmt.Sprintf("%s (%s) must be paid by %s. This is the final reminder.",
			period.Title, amount, period.FinalDate.Format("2 Jan 2006"))
	}
}
