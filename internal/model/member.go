package model

import (
	"time"

	"github.com/google/uuid"
)

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

// Member is consumed, not managed: profile CRUD lives outside the
// engine, which only needs identity, email and active/inactive status
// to resolve applicability and address reminders.
type Member struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Email     string       `db:"email" json:"email"`
	Status    MemberStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
