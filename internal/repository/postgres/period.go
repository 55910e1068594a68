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

const periodColumns = `
	id, title, type, category, amount, currency,
	start_date, due_date, final_date, description,
	applicability, specific_member_ids,
	reminders_enabled, first_reminder_days, second_reminder_days, final_reminder_days,
	late_fees_enabled, late_fee_kind, late_fee_amount, late_fee_grace_days,
	payments_created, created_by, updated_by, created_at, updated_at`

type periodRepository struct {
	*BaseRepository
}

func NewPeriodRepository(base *BaseRepository) repository.PeriodRepository {
	return &periodRepository{BaseRepository: base}
}

func (r *periodRepository) Create(ctx context.Context, period *model.PaymentPeriod) error {
	query := `
		INSERT INTO payment_periods (` + periodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err := r.db.ExecContext(ctx, query,
		period.ID, period.Title, period.Type, period.Category,
		period.Amount, period.Currency,
		period.StartDate, period.DueDate, period.FinalDate, period.Description,
		period.Applicability, period.SpecificMemberIDs,
		period.RemindersEnabled, period.FirstReminderDays, period.SecondReminderDays, period.FinalReminderDays,
		period.LateFeesEnabled, period.LateFeeKind, period.LateFeeAmount, period.LateFeeGraceDays,
		period.PaymentsCreated, period.CreatedBy, period.UpdatedBy,
		period.CreatedAt, period.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment period: %w", err)
	}
	return nil
}

func (r *periodRepository) Get(ctx context.Context, id uuid.UUID) (*model.PaymentPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payment_periods WHERE id = $1`

	var period model.PaymentPeriod
	err := r.db.GetContext(ctx, &period, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("payment period")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment period: %w", err)
	}
	return &period, nil
}

func (r *periodRepository) Update(ctx context.Context, period *model.PaymentPeriod) error {
	query := `
		UPDATE payment_periods
		SET title = $1, amount = $2, start_date = $3, due_date = $4, final_date = $5,
			description = $6, applicability = $7, specific_member_ids = $8,
			reminders_enabled = $9, first_reminder_days = $10, second_reminder_days = $11,
			final_reminder_days = $12, late_fees_enabled = $13, late_fee_kind = $14,
			late_fee_amount = $15, late_fee_grace_days = $16, updated_by = $17, updated_at = $18
		WHERE id = $19
	`
	result, err := r.db.ExecContext(ctx, query,
		period.Title, period.Amount, period.StartDate, period.DueDate, period.FinalDate,
		period.Description, period.Applicability, period.SpecificMemberIDs,
		period.RemindersEnabled, period.FirstReminderDays, period.SecondReminderDays,
		period.FinalReminderDays, period.LateFeesEnabled, period.LateFeeKind,
		period.LateFeeAmount, period.LateFeeGraceDays, period.UpdatedBy, period.UpdatedAt,
		period.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment period: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NewNotFound("payment period")
	}
	return nil
}

func (r *periodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_periods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment period: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NewNotFound("payment period")
	}
	return nil
}

func (r *periodRepository) List(ctx context.Context, filters *model.PeriodFilters, now time.Time) ([]*model.PaymentPeriod, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	// Lifecycle state is derived from the three dates, so status
	// filters become date predicates against now.
	switch filters.Status {
	case model.PeriodStatusUpcoming:
		where += fmt.Sprintf(" AND start_date > $%d", argCount)
		args = append(args, now)
		argCount++
	case model.PeriodStatusActive:
		where += fmt.Sprintf(" AND start_date <= $%d AND due_date > $%d", argCount, argCount)
		args = append(args, now)
		argCount++
	case model.PeriodStatusOverdue:
		where += fmt.Sprintf(" AND due_date <= $%d AND final_date > $%d", argCount, argCount)
		args = append(args, now)
		argCount++
	case model.PeriodStatusClosed:
		where += fmt.Sprintf(" AND final_date <= $%d", argCount)
		args = append(args, now)
		argCount++
	}

	if filters.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argCount)
		args = append(args, filters.Category)
		argCount++
	}

	if filters.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filters.Type)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payment_periods"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count payment periods: %w", err)
	}

	query := "SELECT " + periodColumns + " FROM payment_periods" + where +
		fmt.Sprintf(" ORDER BY start_date DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit, filters.Offset())

	var periods []*model.PaymentPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list payment periods: %w", err)
	}
	return periods, total, nil
}

func (r *periodRepository) ListOpen(ctx context.Context, now time.Time) ([]*model.PaymentPeriod, error) {
	query := `SELECT ` + periodColumns + `
		FROM payment_periods
		WHERE final_date > $1
		ORDER BY due_date ASC`

	var periods []*model.PaymentPeriod
	if err := r.db.SelectContext(ctx, &periods, query, now); err != nil {
		return nil, fmt.Errorf("failed to list open payment periods: %w", err)
	}
	return periods, nil
}

func (r *periodRepository) MarkPaymentsCreated(ctx context.Context, id uuid.UUID, updatedAt time.Time) error {
	query := `
		UPDATE payment_periods
		SET payments_created = TRUE, updated_at = $1
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, updatedAt, id); err != nil {
		return fmt.Errorf("failed to mark payments created: %w", err)
	}
	return nil
}
