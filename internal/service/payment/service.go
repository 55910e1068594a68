package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clubworks/portal-api/internal/gateway"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

// Gateway is the slice of the payment gateway client this service
// uses.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// Notifier creates a notification and fans it out. Satisfied by the
// notification service.
type Notifier interface {
	Create(ctx context.Context, memberID uuid.UUID, typ model.NotificationType, title, message string, actionURL *string) (*model.Notification, error)
}

type Service struct {
	repo       repository.PaymentRepository
	periodRepo repository.PeriodRepository
	memberRepo repository.MemberRepository
	notifier   Notifier
	gateway    Gateway
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewService(
	repo repository.PaymentRepository,
	periodRepo repository.PeriodRepository,
	memberRepo repository.MemberRepository,
	notifier Notifier,
	gw Gateway,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		periodRepo: periodRepo,
		memberRepo: memberRepo,
		notifier:   notifier,
		gateway:    gw,
		logger:     logger,
		now:        time.Now,
	}
}

// Materialize creates one pending payment per applicable member of the
// period and returns the number created. The period-level flag is set
// only after every member has been processed, so an interrupted run
// can be retried; the per-member existence check keeps the retry from
// duplicating payments. force allows materializing an upcoming period
// ahead of its start date.
func (s *Service) Materialize(ctx context.Context, periodID uuid.UUID, force bool) (int, error) {
	period, err := s.periodRepo.Get(ctx, periodID)
	if err != nil {
		return 0, err
	}
	if period.PaymentsCreated {
		return 0, errors.NewConflict("payments already created for this period")
	}

	now := s.now()
	switch period.Status(now) {
	case model.PeriodStatusClosed:
		return 0, errors.NewConflict("cannot create payments for a closed period")
	case model.PeriodStatusUpcoming:
		if !force {
			return 0, errors.NewConflict("period has not started yet")
		}
	}

	members, err := s.memberRepo.ListApplicable(ctx, period.Applicability, period.SpecificMembers())
	if err != nil {
		return 0, errors.NewTransient("failed to resolve applicable members", err)
	}

	created := 0
	for _, member := range members {
		exists, err := s.repo.ExistsNonFailed(ctx, member.ID, period.ID)
		if err != nil {
			return created, errors.NewTransient("failed to check existing payment", err)
		}
		if exists {
			continue
		}

		dueDate := period.DueDate
		p := &model.Payment{
			ID:        uuid.New(),
			MemberID:  member.ID,
			PeriodID:  &period.ID,
			Type:      period.Type,
			Amount:    period.Amount,
			Currency:  period.Currency,
			Status:    model.PaymentStatusPending,
			DueDate:   &dueDate,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return created, errors.NewTransient("failed to create payment", err)
		}
		created++

		actionURL := fmt.Sprintf("/payments/%s", p.ID)
		message := fmt.Sprintf("%s: %s %s due by %s",
			period.Title, period.Currency, period.Amount.StringFixed(2),
			period.DueDate.Format("2 Jan 2006"))
		if _, err := s.notifier.Create(ctx, member.ID, model.NotificationPaymentReminder,
			"New Payment Due", message, &actionURL); err != nil {
			// The payment exists; a retry of the whole run skips this
			// member, so log instead of failing the batch.
			s.logger.Warn().Err(err).
				Str("member_id", member.ID.String()).
				Str("period_id", period.ID.String()).
				Msg("failed to notify member of new payment")
		}
	}

	if err := s.periodRepo.MarkPaymentsCreated(ctx, period.ID, s.now()); err != nil {
		return created, errors.NewTransient("failed to mark payments created", err)
	}

	s.logger.Info().
		Str("period_id", period.ID.String()).
		Int("created", created).
		Int("members", len(members)).
		Msg("materialized period payments")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id, memberID uuid.UUID) (*model.Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.MemberID != memberID {
		return nil, errors.NewNotFound("payment")
	}
	return p, nil
}

func (s *Service) ListMine(ctx context.Context, memberID uuid.UUID, status model.PaymentStatus) ([]*model.Payment, error) {
	payments, err := s.repo.ListByMember(ctx, memberID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	if payments == nil {
		payments = []*model.Payment{}
	}
	return payments, nil
}

// OrderResult is what a client checkout needs to open the gateway
// widget.
type OrderResult struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	KeyID     string    `json:"key_id"`
}

// CreateOrder starts a gateway checkout. With a period ID it pays the
// member's pending payment for that period; without one it records an
// ad-hoc quick payment.
func (s *Service) CreateOrder(ctx context.Context, memberID uuid.UUID, req *model.CreateOrderRequest) (*OrderResult, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.NewValidation("amount must be greater than zero")
	}

	now := s.now()
	p := &model.Payment{
		ID:        uuid.New(),
		MemberID:  memberID,
		PeriodID:  req.PeriodID,
		Type:      req.Type,
		Amount:    req.Amount,
		Currency:  "INR",
		Status:    model.PaymentStatusPending,
		Method:    model.PaymentMethodGateway,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.PeriodID != nil {
		period, err := s.periodRepo.Get(ctx, *req.PeriodID)
		if err != nil {
			return nil, err
		}
		if period.Status(now) == model.PeriodStatusClosed {
			return nil, errors.NewConflict("payment period is closed")
		}
		p.Currency = period.Currency
		dueDate := period.DueDate
		p.DueDate = &dueDate
	}

	receipt := fmt.Sprintf("rcpt_%s", p.ID)
	order, err := s.gateway.CreateOrder(ctx, p.Amount, p.Currency, receipt, map[string]string{
		"member_id":  memberID.String(),
		"payment_id": p.ID.String(),
	})
	if err != nil {
		return nil, errors.NewTransient("payment gateway unavailable", err)
	}

	p.GatewayOrderID = &order.ID
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.NewTransient("failed to record payment", err)
	}

	return &OrderResult{
		PaymentID: p.ID,
		OrderID:   order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		KeyID:     s.gateway.KeyID(),
	}, nil
}

// Verify settles a gateway checkout. A valid signature completes the
// payment and applies any late fee from its period; an invalid one
// fails it. Both transitions are one-way, and verifying an already
// completed payment is a no-op.
func (s *Service) Verify(ctx context.Context, memberID uuid.UUID, req *model.VerifyPaymentRequest) (*model.Payment, error) {
	p, err := s.repo.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.MemberID != memberID {
		return nil, errors.NewNotFound("payment")
	}
	if p.Status == model.PaymentStatusCompleted {
		return p, nil
	}
	if p.Status == model.PaymentStatusFailed {
		return nil, errors.NewConflict("payment has already failed; start a new order")
	}
	if p.GatewayOrderID == nil || *p.GatewayOrderID != req.GatewayOrderID {
		return nil, errors.NewValidation("order does not match payment")
	}

	now := s.now()
	p.GatewayPaymentID = &req.GatewayPaymentID
	p.GatewaySignature = &req.GatewaySignature
	p.UpdatedAt = now

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		p.Status = model.PaymentStatusFailed
		if err := s.repo.Update(ctx, p); err != nil {
			return nil, errors.NewTransient("failed to record payment failure", err)
		}
		s.notify(ctx, memberID, model.NotificationPaymentFailed, "Payment Failed",
			fmt.Sprintf("Your payment of %s %s could not be verified. Please try again.",
				p.Currency, p.Amount.StringFixed(2)), nil)
		return nil, errors.NewValidation("invalid payment signature")
	}

	p.Status = model.PaymentStatusCompleted
	p.Method = model.PaymentMethodGateway
	p.PaidAt = &now

	if p.PeriodID != nil {
		period, err := s.periodRepo.Get(ctx, *p.PeriodID)
		if err == nil {
			p.LateFee = period.LateFee(p.Amount, now)
		} else {
			s.logger.Warn().Err(err).Str("payment_id", p.ID.String()).
				Msg("failed to load period for late fee")
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.NewTransient("failed to record payment completion", err)
	}

	total := p.Amount.Add(p.LateFee)
	s.notify(ctx, memberID, model.NotificationPaymentSuccess, "Payment Successful",
		fmt.Sprintf("Your payment of %s %s was received.", p.Currency, total.StringFixed(2)), nil)
	return p, nil
}

func (s *Service) notify(ctx context.Context, memberID uuid.UUID, typ model.NotificationType, title, message string, actionURL *string) {
	if _, err := s.notifier.Create(ctx, memberID, typ, title, message, actionURL); err != nil {
		s.logger.Warn().Err(err).Str("member_id", memberID.String()).Msg("failed to create payment notification")
	}
}
