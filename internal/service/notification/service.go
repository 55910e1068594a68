package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/realtime"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

// Service is the notification store. Every write publishes its delta
// to the fan-out broker so sibling connections of the same member
// converge without polling; publish never fails a write.
type Service struct {
	repo   repository.NotificationRepository
	broker realtime.Broker
	logger *zerolog.Logger
}

func NewService(repo repository.NotificationRepository, broker realtime.Broker, logger *zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		broker: broker,
		logger: logger,
	}
}

// Create records a notification for a member. Always unread at
// creation. Only the engine calls this, never a client.
func (s *Service) Create(ctx context.Context, memberID uuid.UUID, typ model.NotificationType, title, message string, actionURL *string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      typ,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, errors.NewTransient("failed to store notification", err)
	}

	s.broker.Publish(ctx, memberID, realtime.Event{
		Name:    realtime.EventNotificationNew,
		Payload: map[string]interface{}{"notification": n},
	})
	return n, nil
}

// MarkRead marks one notification read. Idempotent: an already-read
// notification succeeds silently. A notification owned by another
// member is reported as not found, never as forbidden.
func (s *Service) MarkRead(ctx context.Context, id, memberID uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, id, memberID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return errors.NewNotFound("notification")
	}

	s.broker.Publish(ctx, memberID, realtime.Event{
		Name:    realtime.EventNotificationRead,
		Payload: map[string]interface{}{"notificationId": id},
	})
	return nil
}

// MarkAllRead marks every unread notification read in one operation
// and returns the count affected.
func (s *Service) MarkAllRead(ctx context.Context, memberID uuid.UUID) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, memberID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	s.broker.Publish(ctx, memberID, realtime.Event{
		Name:    realtime.EventNotificationAllRead,
		Payload: map[string]interface{}{"count": count},
	})
	return count, nil
}

func (s *Service) Delete(ctx context.Context, id, memberID uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !ok {
		return errors.NewNotFound("notification")
	}

	s.broker.Publish(ctx, memberID, realtime.Event{
		Name:    realtime.EventNotificationDeleted,
		Payload: map[string]interface{}{"notificationId": id},
	})
	return nil
}

// ClearRead removes every read notification and fans out one deletion
// event per removed notification.
func (s *Service) ClearRead(ctx context.Context, memberID uuid.UUID) (int, error) {
	ids, err := s.repo.DeleteRead(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear read notifications: %w", err)
	}

	for _, id := range ids {
		s.broker.Publish(ctx, memberID, realtime.Event{
			Name:    realtime.EventNotificationDeleted,
			Payload: map[string]interface{}{"notificationId": id},
		})
	}
	return len(ids), nil
}

// ListResult bundles a page of notifications with the derived unread
// counter. The counter is always queried, never cached.
type ListResult struct {
	Notifications []*model.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Pagination    model.Pagination      `json:"pagination"`
}

func (s *Service) List(ctx context.Context, memberID uuid.UUID, filters *model.NotificationFilters) (*ListResult, error) {
	filters.Normalize(20, 100)

	notifications, total, err := s.repo.List(ctx, memberID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.repo.UnreadCount(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	filters.SetTotal(total)
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	return &ListResult{
		Notifications: notifications,
		UnreadCount:   unread,
		Pagination:    filters.Pagination,
	}, nil
}

func (s *Service) Stats(ctx context.Context, memberID uuid.UUID) (*model.NotificationStats, error) {
	stats, err := s.repo.Stats(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return stats, nil
}
