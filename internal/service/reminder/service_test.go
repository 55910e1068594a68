package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/realtime"
	"github.com/clubworks/portal-api/pkg/errors"
)

type fakePeriodRepo struct {
	periods []*model.PaymentPeriod
}

func (r *fakePeriodRepo) Create(context.Context, *model.PaymentPeriod) error { return nil }
func (r *fakePeriodRepo) Update(context.Context, *model.PaymentPeriod) error { return nil }
func (r *fakePeriodRepo) Delete(context.Context, uuid.UUID) error            { return nil }

func (r *fakePeriodRepo) Get(_ context.Context, id uuid.UUID) (*model.PaymentPeriod, error) {
	for _, p := range r.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.NewNotFound("payment period")
}

func (r *fakePeriodRepo) List(context.Context, *model.PeriodFilters, time.Time) ([]*model.PaymentPeriod, int, error) {
	return r.periods, len(r.periods), nil
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

func (r *fakePeriodRepo) MarkPaymentsCreated(context.Context, uuid.UUID, time.Time) error {
	return nil
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

type reminderKey struct {
	periodID uuid.UUID
	memberID uuid.UUID
	kind     model.ReminderKind
}

// fakeReminderRepo mimics the transactional dedup insert: the first
// Fire for a key wins, every later one reports fired=false.
type fakeReminderRepo struct {
	mu            sync.Mutex
	fired         map[reminderKey]struct{}
	notifications []*model.Notification
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{fired: make(map[reminderKey]struct{})}
}

func (r *fakeReminderRepo) Fire(_ context.Context, rec *model.ReminderRecord, n *model.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reminderKey{rec.PeriodID, rec.MemberID, rec.Kind}
	if _, ok := r.fired[key]; ok {
		return false, nil
	}
	r.fired[key] = struct{}{}
	r.notifications = append(r.notifications, n)
	return true, nil
}

type fakeBroker struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *fakeBroker) Register(uuid.UUID, realtime.Connection) {}
func (b *fakeBroker) Deregister(realtime.Connection)          {}

func (b *fakeBroker) Publish(_ context.Context, _ uuid.UUID, event realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

type fakeEmail struct {
	sent []string
}

func (e *fakeEmail) SendReminder(_ context.Context, to, _, _, _ string) error {
	e.sent = append(e.sent, to)
	return nil
}

func reminderPeriod() *model.PaymentPeriod {
	return &model.PaymentPeriod{
		ID:                 uuid.New(),
		Title:              "Annual Membership 2025",
		Amount:             decimal.NewFromInt(5000),
		Currency:           "INR",
		StartDate:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:            time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		FinalDate:          time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		Applicability:      model.ApplicabilityActive,
		RemindersEnabled:   true,
		FirstReminderDays:  7,
		SecondReminderDays: 3,
		FinalReminderDays:  1,
	}
}

func activeMembers(n int) []*model.Member {
	var out []*model.Member
	for i := 0; i < n; i++ {
		out = append(out, &model.Member{
			ID:     uuid.New(),
			Email:  uuid.New().String() + "@club.test",
			Status: model.MemberStatusActive,
		})
	}
	return out
}

func newScanService(periods []*model.PaymentPeriod, members []*model.Member) (*Service, *fakeReminderRepo, *fakeBroker, *fakeEmail) {
	reminderRepo := newFakeReminderRepo()
	broker := &fakeBroker{}
	emailSvc := &fakeEmail{}
	logger := zerolog.Nop()

	s := NewService(
		&fakePeriodRepo{periods: periods},
		&fakeMemberRepo{members: members},
		reminderRepo,
		broker,
		emailSvc,
		&logger,
	)
	return s, reminderRepo, broker, emailSvc
}

func TestScanBeforeAnyThreshold(t *testing.T) {
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{reminderPeriod()}, activeMembers(3))

	// Jan 20: first threshold is Jan 24.
	now := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))
	assert.Empty(t, repo.fired)
}

func TestScanFiresFirstReminderOnce(t *testing.T) {
	period := reminderPeriod()
	members := activeMembers(3)
	s, repo, broker, emailSvc := newScanService([]*model.PaymentPeriod{period}, members)

	now := time.Date(2025, 1, 24, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))

	assert.Len(t, repo.fired, 3)
	assert.Len(t, broker.events, 3)
	assert.Len(t, emailSvc.sent, 3)
	for _, e := range broker.events {
		assert.Equal(t, realtime.EventNotificationNew, e.Name)
	}

	// Re-running the same scan fires nothing new.
	require.NoError(t, s.Scan(context.Background(), now))
	assert.Len(t, repo.fired, 3)
	assert.Len(t, broker.events, 3)
	assert.Len(t, emailSvc.sent, 3)
}

func TestScanCatchesUpMissedThresholds(t *testing.T) {
	// The scheduler was down across the first and second thresholds;
	// one late scan delivers both, each exactly once.
	period := reminderPeriod()
	members := activeMembers(2)
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{period}, members)

	now := time.Date(2025, 1, 29, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))

	assert.Len(t, repo.fired, 4)
	for _, m := range members {
		assert.Contains(t, repo.fired, reminderKey{period.ID, m.ID, model.ReminderFirst})
		assert.Contains(t, repo.fired, reminderKey{period.ID, m.ID, model.ReminderSecond})
		assert.NotContains(t, repo.fired, reminderKey{period.ID, m.ID, model.ReminderFinal})
	}
}

func TestScanSkipsDisabledReminders(t *testing.T) {
	period := reminderPeriod()
	period.RemindersEnabled = false
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{period}, activeMembers(3))

	now := time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))
	assert.Empty(t, repo.fired)
}

func TestScanSkipsClosedPeriods(t *testing.T) {
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{reminderPeriod()}, activeMembers(3))

	now := time.Date(2025, 2, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))
	assert.Empty(t, repo.fired)
}

func TestScanRespectsApplicability(t *testing.T) {
	period := reminderPeriod()
	members := activeMembers(2)
	period.Applicability = model.ApplicabilitySpecific
	period.SpecificMemberIDs = []string{members[0].ID.String()}
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{period}, members)

	now := time.Date(2025, 1, 24, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))

	assert.Len(t, repo.fired, 1)
	assert.Contains(t, repo.fired, reminderKey{period.ID, members[0].ID, model.ReminderFirst})
}

func TestScanNotificationContent(t *testing.T) {
	period := reminderPeriod()
	members := activeMembers(1)
	s, repo, _, _ := newScanService([]*model.PaymentPeriod{period}, members)

	now := time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Scan(context.Background(), now))

	require.NotEmpty(t, repo.notifications)
	for _, n := range repo.notifications {
		assert.Equal(t, model.NotificationPaymentReminder, n.Type)
		assert.Equal(t, members[0].ID, n.MemberID)
		assert.NotEmpty(t, n.Title)
		assert.Contains(t, n.Message, period.Title)
		require.NotNil(t, n.ActionURL)
	}
}
