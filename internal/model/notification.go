package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationPaymentReminder NotificationType = "payment_reminder"
	NotificationPaymentSuccess  NotificationType = "payment_success"
	NotificationPaymentFailed   NotificationType = "payment_failed"
	NotificationProjectUpdate   NotificationType = "project_update"
	NotificationMeetingReminder NotificationType = "meeting_reminder"
	NotificationEventInvitation NotificationType = "event_invitation"
	NotificationAnnouncement    NotificationType = "announcement"
	NotificationBirthday        NotificationType = "birthday"
	NotificationAnniversary     NotificationType = "anniversary"
	NotificationSystem          NotificationType = "system"
	NotificationOther           NotificationType = "other"
)

// Notification belongs to exactly one member and is created by the
// engine only, never directly by a client.
type Notification struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	MemberID  uuid.UUID        `db:"member_id" json:"member_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	ActionURL *string          `db:"action_url" json:"action_url,omitempty"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

type NotificationFilters struct {
	Type   NotificationType
	IsRead *bool
	Pagination
}

// NotificationStats is always derived from store state. The unread
// counter is never cached and independently mutated.
type NotificationStats struct {
	Total  int                     `json:"total"`
	Unread int                     `json:"unread"`
	ByType []NotificationTypeCount `json:"byType"`
}

type NotificationTypeCount struct {
	Type   NotificationType `db:"type" json:"type"`
	Count  int              `db:"count" json:"count"`
	Unread int              `db:"unread" json:"unread"`
}
