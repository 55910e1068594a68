package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

const paymentColumns = `
	id, member_id, period_id, type, amount, currency, status, method,
	gateway_order_id, gateway_payment_id, gateway_signature,
	late_fee, due_date, paid_at, description, created_at, updated_at`

type paymentRepository struct {
	*BaseRepository
}

func NewPaymentRepository(base *BaseRepository) repository.PaymentRepository {
	return &paymentRepository{BaseRepository: base}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.MemberID, payment.PeriodID, payment.Type,
		payment.Amount, payment.Currency, payment.Status, payment.Method,
		payment.GatewayOrderID, payment.GatewayPaymentID, payment.GatewaySignature,
		payment.LateFee, payment.DueDate, payment.PaidAt, payment.Description,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment model.Payment
	err := r.db.GetContext(ctx, &payment, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("payment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, gateway_order_id = $2, gateway_payment_id = $3,
			gateway_signature = $4, late_fee = $5, paid_at = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		payment.Status, payment.GatewayOrderID, payment.GatewayPaymentID,
		payment.GatewaySignature, payment.LateFee, payment.PaidAt, payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NewNotFound("payment")
	}
	return nil
}

func (r *paymentRepository) ListByMember(ctx context.Context, memberID uuid.UUID, status model.PaymentStatus) ([]*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE member_id = $1`
	args := []interface{}{memberID}

	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	var payments []*model.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) ExistsNonFailed(ctx context.Context, memberID, periodID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE member_id = $1 AND period_id = $2 AND status != 'failed'
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, memberID, periodID); err != nil {
		return false, fmt.Errorf("failed to check existing payment: %w", err)
	}
	return exists, nil
}

func (r *paymentRepository) CountNonPending(ctx context.Context, periodID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM payments WHERE period_id = $1 AND status != 'pending'`

	var count int
	if err := r.db.GetContext(ctx, &count, query, periodID); err != nil {
		return 0, fmt.Errorf("failed to count non-pending payments: %w", err)
	}
	return count, nil
}
