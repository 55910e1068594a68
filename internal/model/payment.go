package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodGateway      PaymentMethod = "gateway"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

// Payment is a single member's obligation. PeriodID is nil for ad-hoc
// quick-pay payments created outside any period.
type Payment struct {
	ID       uuid.UUID       `db:"id" json:"id"`
	MemberID uuid.UUID       `db:"member_id" json:"member_id"`
	PeriodID *uuid.UUID      `db:"period_id" json:"period_id,omitempty"`
	Type     PaymentType     `db:"type" json:"type"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`
	Status   PaymentStatus   `db:"status" json:"status"`
	Method   PaymentMethod   `db:"method" json:"method,omitempty"`

	// Gateway identifiers stay nil until a gateway round-trip begins.
	GatewayOrderID   *string `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string `db:"gateway_signature" json:"-"`

	LateFee     decimal.Decimal `db:"late_fee" json:"late_fee"`
	DueDate     *time.Time      `db:"due_date" json:"due_date,omitempty"`
	PaidAt      *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Description string          `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the payment has reached a final status.
// pending→completed and pending→failed are one-way.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

type CreateOrderRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,dgt0"`
	Type     PaymentType     `json:"type" binding:"required,oneof=membership_fee project_contribution event_fee donation fine other"`
	PeriodID *uuid.UUID      `json:"period_id"`
}

type VerifyPaymentRequest struct {
	PaymentID        uuid.UUID `json:"payment_id" binding:"required"`
	GatewayOrderID   string    `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string    `json:"gateway_payment_id" binding:"required"`
	GatewaySignature string    `json:"gateway_signature" binding:"required"`
}
