package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clubworks/portal-api/internal/model"
)

type PeriodRepository interface {
	Create(ctx context.Context, period *model.PaymentPeriod) error
	Get(ctx context.Context, id uuid.UUID) (*model.PaymentPeriod, error)
	Update(ctx context.Context, period *model.PaymentPeriod) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.PeriodFilters, now time.Time) ([]*model.PaymentPeriod, int, error)
	// ListOpen returns periods whose final date is still ahead of now,
	// the scheduler's scan set.
	ListOpen(ctx context.Context, now time.Time) ([]*model.PaymentPeriod, error)
	// MarkPaymentsCreated flips the monotonic flag. Flipping an
	// already-set flag is a no-op.
	MarkPaymentsCreated(ctx context.Context, id uuid.UUID, updatedAt time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	Update(ctx context.Context, payment *model.Payment) error
	ListByMember(ctx context.Context, memberID uuid.UUID, status model.PaymentStatus) ([]*model.Payment, error)
	// ExistsNonFailed is the materializer's per-member skip guard.
	ExistsNonFailed(ctx context.Context, memberID, periodID uuid.UUID) (bool, error)
	CountNonPending(ctx context.Context, periodID uuid.UUID) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id, memberID uuid.UUID) (*model.Notification, error)
	MarkRead(ctx context.Context, id, memberID uuid.UUID, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, memberID uuid.UUID, readAt time.Time) (int, error)
	Delete(ctx context.Context, id, memberID uuid.UUID) (bool, error)
	// DeleteRead removes every read notification and returns the
	// removed IDs so the caller can fan the deletions out.
	DeleteRead(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error)
	List(ctx context.Context, memberID uuid.UUID, filters *model.NotificationFilters) ([]*model.Notification, int, error)
	UnreadCount(ctx context.Context, memberID uuid.UUID) (int, error)
	Stats(ctx context.Context, memberID uuid.UUID) (*model.NotificationStats, error)
}

type ReminderRepository interface {
	// Fire inserts the dedup record and the reminder notification in
	// one transaction. Returns false without error when the record
	// already exists, which makes overlapping scans and retries safe.
	Fire(ctx context.Context, rec *model.ReminderRecord, n *model.Notification) (bool, error)
}

type MemberRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Member, error)
	// ListApplicable resolves a period's applicability rule to the
	// concrete member set.
	ListApplicable(ctx context.Context, rule model.Applicability, specific []uuid.UUID) ([]*model.Member, error)
}
