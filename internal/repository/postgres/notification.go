package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

const notificationColumns = `
	id, member_id, type, title, message, action_url, is_read, read_at, created_at`

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.MemberID, n.Type, n.Title, n.Message,
		n.ActionURL, n.IsRead, n.ReadAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id, memberID uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications WHERE id = $1 AND member_id = $2`

	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, id, memberID)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("notification")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

// MarkRead updates ownership-scoped: a notification belonging to a
// different member is indistinguishable from a missing one. Marking an
// already-read notification still matches the row, keeping the call
// idempotent.
func (r *notificationRepository) MarkRead(ctx context.Context, id, memberID uuid.UUID, readAt time.Time) (bool, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND member_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, readAt, id, memberID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, memberID uuid.UUID, readAt time.Time) (int, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = $1
		WHERE member_id = $2 AND is_read = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, readAt, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, memberID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND member_id = $2`, id, memberID)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *notificationRepository) DeleteRead(ctx context.Context, memberID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`DELETE FROM notifications WHERE member_id = $1 AND is_read = TRUE RETURNING id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	return ids, nil
}

func (r *notificationRepository) List(ctx context.Context, memberID uuid.UUID, filters *model.NotificationFilters) ([]*model.Notification, int, error) {
	where := " WHERE member_id = $1"
	args := []interface{}{memberID}
	argCount := 2

	if filters.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filters.Type)
		argCount++
	}

	if filters.IsRead != nil {
		where += fmt.Sprintf(" AND is_read = $%d", argCount)
		args = append(args, *filters.IsRead)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := "SELECT " + notificationColumns + " FROM notifications" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit, filters.Offset())

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, memberID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE member_id = $1 AND is_read = FALSE`, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) Stats(ctx context.Context, memberID uuid.UUID) (*model.NotificationStats, error) {
	stats := &model.NotificationStats{}

	query := `
		SELECT type, COUNT(*) AS count,
			   COUNT(*) FILTER (WHERE is_read = FALSE) AS unread
		FROM notifications
		WHERE member_id = $1
		GROUP BY type
		ORDER BY type
	`
	if err := r.db.SelectContext(ctx, &stats.ByType, query, memberID); err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}

	for _, t := range stats.ByType {
		stats.Total += t.Count
		stats.Unread += t.Unread
	}
	return stats, nil
}
