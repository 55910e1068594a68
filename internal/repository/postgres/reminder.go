package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
)

type reminderRepository struct {
	*BaseRepository
}

func NewReminderRepository(base *BaseRepository) repository.ReminderRepository {
	return &reminderRepository{BaseRepository: base}
}

// Fire claims the (period, member, kind) dedup key and writes the
// reminder notification in the same transaction. ON CONFLICT DO
// NOTHING makes the claim idempotent: a concurrent or repeated scan
// that loses the race sees zero rows inserted and skips the
// notification, so a reminder fires at most once per key.
func (r *reminderRepository) Fire(ctx context.Context, rec *model.ReminderRecord, n *model.Notification) (bool, error) {
	fired := false

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO reminder_records (period_id, member_id, kind, fired_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (period_id, member_id, kind) DO NOTHING
		`, rec.PeriodID, rec.MemberID, rec.Kind, rec.FiredAt)
		if err != nil {
			return fmt.Errorf("failed to insert reminder record: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (`+notificationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, n.ID, n.MemberID, n.Type, n.Title, n.Message,
			n.ActionURL, n.IsRead, n.ReadAt, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert reminder notification: %w", err)
		}

		fired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fired, nil
}
