package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clubworks/portal-api/pkg/messaging"
)

const bridgeChannel = "realtime:events"

// bridgeMessage is the cross-instance envelope. Origin lets an
// instance ignore its own publishes, which it already delivered
// locally.
type bridgeMessage struct {
	Origin   string    `json:"origin"`
	MemberID uuid.UUID `json:"member_id"`
	Event    Event     `json:"event"`
}

// Bridge replicates hub publishes across instances through a shared
// message broker, so a member's connections on other instances
// converge too. It satisfies Broker and wraps a local hub.
type Bridge struct {
	hub    *Hub
	broker messaging.Broker
	origin string
	logger *zerolog.Logger
}

func NewBridge(hub *Hub, broker messaging.Broker, logger *zerolog.Logger) *Bridge {
	return &Bridge{
		hub:    hub,
		broker: broker,
		origin: uuid.New().String(),
		logger: logger,
	}
}

func (b *Bridge) Register(memberID uuid.UUID, conn Connection) {
	b.hub.Register(memberID, conn)
}

func (b *Bridge) Deregister(conn Connection) {
	b.hub.Deregister(conn)
}

// Publish delivers locally first, then best-effort to the other
// instances. A broker failure is logged and dropped: it must never
// fail the store write that triggered the event.
func (b *Bridge) Publish(ctx context.Context, memberID uuid.UUID, event Event) {
	b.hub.Publish(ctx, memberID, event)

	msg := bridgeMessage{Origin: b.origin, MemberID: memberID, Event: event}
	if err := b.broker.Publish(ctx, bridgeChannel, msg); err != nil {
		b.logger.Warn().Err(err).
			Str("event", event.Name).
			Msg("failed to publish realtime event to broker")
	}
}

// Start consumes the shared channel until ctx is cancelled, delivering
// events published by other instances to local connections.
func (b *Bridge) Start(ctx context.Context) error {
	msgs, err := b.broker.Subscribe(ctx, bridgeChannel)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgs {
			var msg bridgeMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				b.logger.Warn().Err(err).Msg("malformed bridge message")
				continue
			}
			if msg.Origin == b.origin {
				continue
			}
			b.hub.Publish(ctx, msg.MemberID, msg.Event)
		}
	}()
	return nil
}
