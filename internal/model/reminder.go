package model

import (
	"time"

	"github.com/google/uuid"
)

// ReminderRecord marks that a specific threshold already fired for a
// specific member of a period. The composite key is the dedup key
// guaranteeing at-most-once delivery across scheduler restarts and
// overlapping scan windows. pending→fired, terminal once fired.
type ReminderRecord struct {
	PeriodID uuid.UUID    `db:"period_id" json:"period_id"`
	MemberID uuid.UUID    `db:"member_id" json:"member_id"`
	Kind     ReminderKind `db:"kind" json:"kind"`
	FiredAt  time.Time    `db:"fired_at" json:"fired_at"`
}
