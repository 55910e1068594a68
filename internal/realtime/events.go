package realtime

// Event names pushed to clients. Member-scoped: a publish reaches
// every live connection of one member and nobody else.
const (
	EventNotificationNew     = "notification:new"
	EventNotificationRead    = "notification:read"
	EventNotificationAllRead = "notification:allRead"
	EventNotificationDeleted = "notification:deleted"
)

// Event is one realtime message as sent on the wire.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}
