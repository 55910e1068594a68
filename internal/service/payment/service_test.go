package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/portal-api/internal/gateway"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/pkg/errors"
)

type fakePeriodRepo struct {
	periods map[uuid.UUID]*model.PaymentPeriod
}

func newFakePeriodRepo(periods ...*model.PaymentPeriod) *fakePeriodRepo {
	r := &fakePeriodRepo{periods: make(map[uuid.UUID]*model.PaymentPeriod)}
	for _, p := range periods {
		r.periods[p.ID] = p
	}
	return r
}

func (r *fakePeriodRepo) Create(_ context.Context, p *model.PaymentPeriod) error {
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) Get(_ context.Context, id uuid.UUID) (*model.PaymentPeriod, error) {
	p, ok := r.periods[id]
	if !ok {
		return nil, errors.NewNotFound("payment period")
	}
	return p, nil
}

func (r *fakePeriodRepo) Update(_ context.Context, p *model.PaymentPeriod) error {
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.periods, id)
	return nil
}

func (r *fakePeriodRepo) List(_ context.Context, _ *model.PeriodFilters, _ time.Time) ([]*model.PaymentPeriod, int, error) {
	var out []*model.PaymentPeriod
	for _, p := range r.periods {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *fakePeriodRepo) ListOpen(_ context.Context, now time.Time) ([]*model.PaymentPeriod, error) {
	var out []*model.PaymentPeriod
	for _, p := range r.periods {
		if p.FinalDate.After(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePeriodRepo) MarkPaymentsCreated(_ context.Context, id uuid.UUID, _ time.Time) error {
	if p, ok := r.periods[id]; ok {
		p.PaymentsCreated = true
	}
	return nil
}

type fakePaymentRepo struct {
	payments map[uuid.UUID]*model.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *model.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) Get(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, errors.NewNotFound("payment")
	}
	return p, nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p *model.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *fakePaymentRepo) ListByMember(_ context.Context, memberID uuid.UUID, status model.PaymentStatus) ([]*model.Payment, error) {
	var out []*model.Payment
	for _, p := range r.payments {
		if p.MemberID == memberID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ExistsNonFailed(_ context.Context, memberID, periodID uuid.UUID) (bool, error) {
	for _, p := range r.payments {
		if p.MemberID == memberID && p.PeriodID != nil && *p.PeriodID == periodID && p.Status != model.PaymentStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) CountNonPending(_ context.Context, periodID uuid.UUID) (int, error) {
	count := 0
	for _, p := range r.payments {
		if p.PeriodID != nil && *p.PeriodID == periodID && p.Status != model.PaymentStatusPending {
			count++
		}
	}
	return count, nil
}

type fakeMemberRepo struct {
	members []*model.Member
}

func (r *fakeMemberRepo) Get(_ context.Context, id uuid.UUID) (*model.Member, error) {
	for _, m := range r.members {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.NewNotFound("member")
}

func (r *fakeMemberRepo) ListApplicable(_ context.Context, rule model.Applicability, specific []uuid.UUID) ([]*model.Member, error) {
	var out []*model.Member
	for _, m := range r.members {
		switch rule {
		case model.ApplicabilityAll:
			out = append(out, m)
		case model.ApplicabilitySpecific:
			for _, id := range specific {
				if m.ID == id {
					out = append(out, m)
				}
			}
		default:
			if m.Status == model.MemberStatusActive {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type fakeNotifier struct {
	created []*model.Notification
}

func (n *fakeNotifier) Create(_ context.Context, memberID uuid.UUID, typ model.NotificationType, title, message string, actionURL *string) (*model.Notification, error) {
	notif := &model.Notification{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      typ,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
	}
	n.created = append(n.created, notif)
	return notif, nil
}

type fakeGateway struct {
	valid  bool
	orders int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string, _ map[string]string) (*gateway.Order, error) {
	g.orders++
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", g.orders),
		Amount:   amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (g *fakeGateway) VerifySignature(_, _, _ string) bool {
	return g.valid
}

func (g *fakeGateway) KeyID() string { return "key_test" }

func testMembers(active, inactive int) []*model.Member {
	var out []*model.Member
	for i := 0; i < active; i++ {
		out = append(out, &model.Member{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("Active %d", i),
			Email:  fmt.Sprintf("active%d@club.test", i),
			Status: model.MemberStatusActive,
		})
	}
	for i := 0; i < inactive; i++ {
		out = append(out, &model.Member{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("Inactive %d", i),
			Email:  fmt.Sprintf("inactive%d@club.test", i),
			Status: model.MemberStatusInactive,
		})
	}
	return out
}

func testPeriod() *model.PaymentPeriod {
	return &model.PaymentPeriod{
		ID:            uuid.New(),
		Title:         "Annual Membership 2025",
		Type:          model.PaymentTypeMembershipFee,
		Category:      model.PeriodCategoryAnnual,
		Amount:        decimal.NewFromInt(5000),
		Currency:      "INR",
		StartDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		FinalDate:     time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		Applicability: model.ApplicabilityActive,
	}
}

func newTestService(period *model.PaymentPeriod, members []*model.Member, gw *fakeGateway, now time.Time) (*Service, *fakePaymentRepo, *fakePeriodRepo, *fakeNotifier) {
	periodRepo := newFakePeriodRepo(period)
	paymentRepo := newFakePaymentRepo()
	notifier := &fakeNotifier{}
	logger := zerolog.Nop()

	s := NewService(paymentRepo, periodRepo, &fakeMemberRepo{members: members}, notifier, gw, &logger)
	s.now = func() time.Time { return now }
	return s, paymentRepo, periodRepo, notifier
}

func TestMaterializeCreatesPaymentsForActiveMembers(t *testing.T) {
	period := testPeriod()
	members := testMembers(10, 5)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, periodRepo, notifier := newTestService(period, members, &fakeGateway{}, now)

	created, err := s.Materialize(context.Background(), period.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 10, created)
	assert.Len(t, paymentRepo.payments, 10)
	assert.True(t, periodRepo.periods[period.ID].PaymentsCreated)
	assert.Len(t, notifier.created, 10)

	for _, p := range paymentRepo.payments {
		assert.Equal(t, model.PaymentStatusPending, p.Status)
		assert.Equal(t, period.ID, *p.PeriodID)
		assert.True(t, p.Amount.Equal(period.Amount))
		assert.Equal(t, period.DueDate, *p.DueDate)
	}
}

func TestMaterializeRejectsSecondRun(t *testing.T) {
	period := testPeriod()
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, _, _, _ := newTestService(period, testMembers(3, 0), &fakeGateway{}, now)

	_, err := s.Materialize(context.Background(), period.ID, false)
	require.NoError(t, err)

	_, err = s.Materialize(context.Background(), period.ID, false)
	assert.True(t, errors.IsConflict(err))
}

func TestMaterializeSkipsMembersWithExistingPayments(t *testing.T) {
	period := testPeriod()
	members := testMembers(5, 0)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, notifier := newTestService(period, members, &fakeGateway{}, now)

	// Two members already hold payments, as after an interrupted run.
	for _, m := range members[:2] {
		paymentRepo.Create(context.Background(), &model.Payment{
			ID:       uuid.New(),
			MemberID: m.ID,
			PeriodID: &period.ID,
			Status:   model.PaymentStatusPending,
		})
	}

	created, err := s.Materialize(context.Background(), period.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Len(t, paymentRepo.payments, 5)
	assert.Len(t, notifier.created, 3)
}

func TestMaterializeUpcomingNeedsForce(t *testing.T) {
	period := testPeriod()
	now := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	s, _, _, _ := newTestService(period, testMembers(2, 0), &fakeGateway{}, now)

	_, err := s.Materialize(context.Background(), period.ID, false)
	assert.True(t, errors.IsConflict(err))

	created, err := s.Materialize(context.Background(), period.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestMaterializeClosedRejected(t *testing.T) {
	period := testPeriod()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s, _, _, _ := newTestService(period, testMembers(2, 0), &fakeGateway{}, now)

	_, err := s.Materialize(context.Background(), period.ID, false)
	assert.True(t, errors.IsConflict(err))
}

func TestCreateOrder(t *testing.T) {
	period := testPeriod()
	member := testMembers(1, 0)[0]
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, _ := newTestService(period, []*model.Member{member}, &fakeGateway{}, now)

	result, err := s.CreateOrder(context.Background(), member.ID, &model.CreateOrderRequest{
		Amount:   decimal.NewFromInt(5000),
		Type:     model.PaymentTypeMembershipFee,
		PeriodID: &period.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", result.OrderID)
	assert.Equal(t, int64(500000), result.Amount)
	assert.Equal(t, "key_test", result.KeyID)

	p, err := paymentRepo.Get(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, p.Status)
	assert.Equal(t, "order_1", *p.GatewayOrderID)
}

func verifiable(t *testing.T, s *Service, repo *fakePaymentRepo, memberID uuid.UUID, periodID *uuid.UUID) *model.Payment {
	t.Helper()
	orderID := "order_test"
	p := &model.Payment{
		ID:             uuid.New(),
		MemberID:       memberID,
		PeriodID:       periodID,
		Amount:         decimal.NewFromInt(5000),
		Currency:       "INR",
		Status:         model.PaymentStatusPending,
		GatewayOrderID: &orderID,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestVerifyCompletesPayment(t *testing.T) {
	period := testPeriod()
	period.LateFeesEnabled = true
	period.LateFeeKind = model.LateFeeFixed
	period.LateFeeAmount = decimal.NewFromInt(100)
	member := testMembers(1, 0)[0]
	// Past due, so the late fee applies.
	now := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, notifier := newTestService(period, []*model.Member{member}, &fakeGateway{valid: true}, now)
	p := verifiable(t, s, paymentRepo, member.ID, &period.ID)

	result, err := s.Verify(context.Background(), member.ID, &model.VerifyPaymentRequest{
		PaymentID:        p.ID,
		GatewayOrderID:   "order_test",
		GatewayPaymentID: "pay_123",
		GatewaySignature: "sig",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, result.Status)
	assert.Equal(t, now, *result.PaidAt)
	assert.True(t, result.LateFee.Equal(decimal.NewFromInt(100)))

	require.Len(t, notifier.created, 1)
	assert.Equal(t, model.NotificationPaymentSuccess, notifier.created[0].Type)
}

func TestVerifyInvalidSignatureFailsPayment(t *testing.T) {
	period := testPeriod()
	member := testMembers(1, 0)[0]
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, notifier := newTestService(period, []*model.Member{member}, &fakeGateway{valid: false}, now)
	p := verifiable(t, s, paymentRepo, member.ID, &period.ID)

	_, err := s.Verify(context.Background(), member.ID, &model.VerifyPaymentRequest{
		PaymentID:        p.ID,
		GatewayOrderID:   "order_test",
		GatewayPaymentID: "pay_123",
		GatewaySignature: "bad",
	})
	require.Error(t, err)

	stored, _ := paymentRepo.Get(context.Background(), p.ID)
	assert.Equal(t, model.PaymentStatusFailed, stored.Status)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, model.NotificationPaymentFailed, notifier.created[0].Type)
}

func TestVerifyCompletedIsIdempotent(t *testing.T) {
	period := testPeriod()
	member := testMembers(1, 0)[0]
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, notifier := newTestService(period, []*model.Member{member}, &fakeGateway{valid: true}, now)
	p := verifiable(t, s, paymentRepo, member.ID, &period.ID)
	p.Status = model.PaymentStatusCompleted

	result, err := s.Verify(context.Background(), member.ID, &model.VerifyPaymentRequest{
		PaymentID:        p.ID,
		GatewayOrderID:   "order_test",
		GatewayPaymentID: "pay_123",
		GatewaySignature: "sig",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, result.Status)
	assert.Empty(t, notifier.created)
}

func TestVerifyFailedIsTerminal(t *testing.T) {
	period := testPeriod()
	member := testMembers(1, 0)[0]
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, _ := newTestService(period, []*model.Member{member}, &fakeGateway{valid: true}, now)
	p := verifiable(t, s, paymentRepo, member.ID, &period.ID)
	p.Status = model.PaymentStatusFailed

	_, err := s.Verify(context.Background(), member.ID, &model.VerifyPaymentRequest{
		PaymentID:        p.ID,
		GatewayOrderID:   "order_test",
		GatewayPaymentID: "pay_123",
		GatewaySignature: "sig",
	})
	assert.True(t, errors.IsConflict(err))
}

func TestVerifyOtherMembersPaymentNotFound(t *testing.T) {
	period := testPeriod()
	member := testMembers(1, 0)[0]
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s, paymentRepo, _, _ := newTestService(period, []*model.Member{member}, &fakeGateway{valid: true}, now)
	p := verifiable(t, s, paymentRepo, member.ID, &period.ID)

	_, err := s.Verify(context.Background(), uuid.New(), &model.VerifyPaymentRequest{
		PaymentID:        p.ID,
		GatewayOrderID:   "order_test",
		GatewayPaymentID: "pay_123",
		GatewaySignature: "sig",
	})
	assert.True(t, errors.IsNotFound(err))
}
