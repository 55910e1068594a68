package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/clubworks/portal-api/pkg/errors"
)

type PaymentType string

const (
	PaymentTypeMembershipFee       PaymentType = "membership_fee"
	PaymentTypeProjectContribution PaymentType = "project_contribution"
	PaymentTypeEventFee            PaymentType = "event_fee"
	PaymentTypeDonation            PaymentType = "donation"
	PaymentTypeFine                PaymentType = "fine"
	PaymentTypeOther               PaymentType = "other"
)

type PeriodCategory string

const (
	PeriodCategoryMonthly   PeriodCategory = "monthly"
	PeriodCategoryQuarterly PeriodCategory = "quarterly"
	PeriodCategoryAnnual    PeriodCategory = "annual"
	PeriodCategoryOneTime   PeriodCategory = "one_time"
)

// PeriodStatus is the computed lifecycle state of a period. It is
// never stored; every read derives it from the three dates.
type PeriodStatus string

const (
	PeriodStatusUpcoming PeriodStatus = "upcoming"
	PeriodStatusActive   PeriodStatus = "active"
	PeriodStatusOverdue  PeriodStatus = "overdue"
	PeriodStatusClosed   PeriodStatus = "closed"
)

type Applicability string

const (
	ApplicabilityAll      Applicability = "all"
	ApplicabilityActive   Applicability = "active"
	ApplicabilitySpecific Applicability = "specific"
)

type LateFeeKind string

const (
	LateFeeFixed      LateFeeKind = "fixed"
	LateFeePercentage LateFeeKind = "percentage"
)

// ReminderKind identifies one of the three configured thresholds.
type ReminderKind string

const (
	ReminderFirst  ReminderKind = "first"
	ReminderSecond ReminderKind = "second"
	ReminderFinal  ReminderKind = "final"
)

type PaymentPeriod struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Type        PaymentType     `db:"type" json:"type"`
	Category    PeriodCategory  `db:"category" json:"category"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Currency    string          `db:"currency" json:"currency"`
	StartDate   time.Time       `db:"start_date" json:"start_date"`
	DueDate     time.Time       `db:"due_date" json:"due_date"`
	FinalDate   time.Time       `db:"final_date" json:"final_date"`
	Description string          `db:"description" json:"description,omitempty"`

	Applicability     Applicability  `db:"applicability" json:"applicability"`
	SpecificMemberIDs pq.StringArray `db:"specific_member_ids" json:"specific_member_ids,omitempty"`

	RemindersEnabled bool `db:"reminders_enabled" json:"reminders_enabled"`
	// Day offsets: first/second count back from DueDate, final from FinalDate.
	FirstReminderDays  int `db:"first_reminder_days" json:"first_reminder_days"`
	SecondReminderDays int `db:"second_reminder_days" json:"second_reminder_days"`
	FinalReminderDays  int `db:"final_reminder_days" json:"final_reminder_days"`

	LateFeesEnabled  bool            `db:"late_fees_enabled" json:"late_fees_enabled"`
	LateFeeKind      LateFeeKind     `db:"late_fee_kind" json:"late_fee_kind"`
	LateFeeAmount    decimal.Decimal `db:"late_fee_amount" json:"late_fee_amount"`
	LateFeeGraceDays int             `db:"late_fee_grace_days" json:"late_fee_grace_days"`

	// PaymentsCreated is monotonic: set true exactly once, after the
	// materializer has durably written every member's payment.
	PaymentsCreated bool `db:"payments_created" json:"payments_created"`

	CreatedBy uuid.UUID  `db:"created_by" json:"created_by"`
	UpdatedBy *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Status classifies the period at the given instant. Pure and total:
// exactly one state for any now, no gaps at the boundaries. A period
// with startDate == dueDate == finalDate is instantaneously closed.
func (p *PaymentPeriod) Status(now time.Time) PeriodStatus {
	switch {
	case now.Before(p.StartDate):
		return PeriodStatusUpcoming
	case now.Before(p.DueDate):
		return PeriodStatusActive
	case now.Before(p.FinalDate):
		return PeriodStatusOverdue
	default:
		return PeriodStatusClosed
	}
}

// DaysRemaining counts whole days until the due date while the period
// is open, then until the final date; zero once closed.
func (p *PaymentPeriod) DaysRemaining(now time.Time) int {
	if !now.Before(p.FinalDate) {
		return 0
	}
	target := p.FinalDate
	if now.Before(p.DueDate) {
		target = p.DueDate
	}
	d := target.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// ReminderThreshold returns the instant at which the given reminder
// kind fires: first/second count back from the due date, final from
// the final date.
func (p *PaymentPeriod) ReminderThreshold(kind ReminderKind) time.Time {
	switch kind {
	case ReminderFirst:
		return p.DueDate.AddDate(0, 0, -p.FirstReminderDays)
	case ReminderSecond:
		return p.DueDate.AddDate(0, 0, -p.SecondReminderDays)
	default:
		return p.FinalDate.AddDate(0, 0, -p.FinalReminderDays)
	}
}

// LateFee computes the fee owed when a payment of amount is completed
// at paidAt. Zero unless late fees are enabled and paidAt is past the
// due date plus the grace window.
func (p *PaymentPeriod) LateFee(amount decimal.Decimal, paidAt time.Time) decimal.Decimal {
	if !p.LateFeesEnabled {
		return decimal.Zero
	}
	cutoff := p.DueDate.AddDate(0, 0, p.LateFeeGraceDays)
	if !paidAt.After(cutoff) {
		return decimal.Zero
	}
	if p.LateFeeKind == LateFeePercentage {
		return amount.Mul(p.LateFeeAmount).Div(decimal.NewFromInt(100))
	}
	return p.LateFeeAmount
}

// Validate enforces the date ordering and amount invariants before any
// write.
func (p *PaymentPeriod) Validate() error {
	if p.Title == "" {
		return errors.NewValidation("title is required")
	}
	if !p.Amount.IsPositive() {
		return errors.NewValidation("amount must be greater than zero")
	}
	if p.DueDate.Before(p.StartDate) {
		return errors.NewValidation("due date must not be before start date")
	}
	if p.FinalDate.Before(p.DueDate) {
		return errors.NewValidation("final date must not be before due date")
	}
	if p.Applicability == ApplicabilitySpecific && len(p.SpecificMemberIDs) == 0 {
		return errors.NewValidation("specific applicability requires at least one member")
	}
	if p.LateFeesEnabled && p.LateFeeAmount.IsNegative() {
		return errors.NewValidation("late fee amount must not be negative")
	}
	return nil
}

// SpecificMembers parses the stored member ID strings, dropping any
// that fail to parse.
func (p *PaymentPeriod) SpecificMembers() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.SpecificMemberIDs))
	for _, s := range p.SpecificMemberIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ReminderKinds lists the thresholds in firing order.
func ReminderKinds() []ReminderKind {
	return []ReminderKind{ReminderFirst, ReminderSecond, ReminderFinal}
}

type PeriodFilters struct {
	Status   PeriodStatus
	Category PeriodCategory
	Type     PaymentType
	Pagination
}

type CreatePeriodRequest struct {
	Title              string          `json:"title" binding:"required"`
	Type               PaymentType     `json:"type" binding:"required,oneof=membership_fee project_contribution event_fee donation fine other"`
	Category           PeriodCategory  `json:"category" binding:"required,oneof=monthly quarterly annual one_time"`
	Amount             decimal.Decimal `json:"amount" binding:"required,dgt0"`
	Currency           string          `json:"currency"`
	StartDate          time.Time       `json:"start_date" binding:"required"`
	DueDate            time.Time       `json:"due_date" binding:"required"`
	FinalDate          time.Time       `json:"final_date" binding:"required"`
	Description        string          `json:"description"`
	Applicability      Applicability   `json:"applicability" binding:"omitempty,oneof=all active specific"`
	SpecificMemberIDs  []string        `json:"specific_member_ids"`
	RemindersEnabled   *bool           `json:"reminders_enabled"`
	FirstReminderDays  *int            `json:"first_reminder_days"`
	SecondReminderDays *int            `json:"second_reminder_days"`
	FinalReminderDays  *int            `json:"final_reminder_days"`
	LateFeesEnabled    bool            `json:"late_fees_enabled"`
	LateFeeKind        LateFeeKind     `json:"late_fee_kind" binding:"omitempty,oneof=fixed percentage"`
	LateFeeAmount      decimal.Decimal `json:"late_fee_amount"`
	LateFeeGraceDays   int             `json:"late_fee_grace_days"`
}

type UpdatePeriodRequest struct {
	Title              *string          `json:"title"`
	Amount             *decimal.Decimal `json:"amount"`
	StartDate          *time.Time       `json:"start_date"`
	DueDate            *time.Time       `json:"due_date"`
	FinalDate          *time.Time       `json:"final_date"`
	Description        *string          `json:"description"`
	Applicability      *Applicability   `json:"applicability" binding:"omitempty,oneof=all active specific"`
	SpecificMemberIDs  []string         `json:"specific_member_ids"`
	RemindersEnabled   *bool            `json:"reminders_enabled"`
	FirstReminderDays  *int             `json:"first_reminder_days"`
	SecondReminderDays *int             `json:"second_reminder_days"`
	FinalReminderDays  *int             `json:"final_reminder_days"`
	LateFeesEnabled    *bool            `json:"late_fees_enabled"`
	LateFeeKind        *LateFeeKind     `json:"late_fee_kind" binding:"omitempty,oneof=fixed percentage"`
	LateFeeAmount      *decimal.Decimal `json:"late_fee_amount"`
	LateFeeGraceDays   *int             `json:"late_fee_grace_days"`
}

// PeriodView is a period plus its computed lifecycle fields.
type PeriodView struct {
	PaymentPeriod
	Status        PeriodStatus `json:"status"`
	DaysRemaining int          `json:"days_remaining"`
}

// NewPeriodView computes the view at the given instant.
func NewPeriodView(p PaymentPeriod, now time.Time) PeriodView {
	return PeriodView{
		PaymentPeriod: p,
		Status:        p.Status(now),
		DaysRemaining: p.DaysRemaining(now),
	}
}
