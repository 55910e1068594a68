package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Connection is one live client connection. Send must not block: a
// transport wraps a bounded queue and reports an error when the
// client cannot keep up, at which point the hub drops it.
type Connection interface {
	Send(event Event) error
	Close() error
}

// Broker fans events out to every live connection of a member.
// Publish is fire-and-forget: it never returns an error to the caller
// and is a no-op for members with zero connections. Authoritative
// state lives in the notification store; clients resync on reconnect.
type Broker interface {
	Register(memberID uuid.UUID, conn Connection)
	Deregister(conn Connection)
	Publish(ctx context.Context, memberID uuid.UUID, event Event)
}

// Hub is the in-process Broker: a registry of member → connections. A
// member may hold several simultaneous connections (tabs, devices); a
// connection belongs to exactly one member.
type Hub struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]map[Connection]struct{}
	owners    map[Connection]uuid.UUID
	onPublish func(event string)
	logger    *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uuid.UUID]map[Connection]struct{}),
		owners: make(map[Connection]uuid.UUID),
		logger: logger,
	}
}

// OnPublish registers a hook invoked once per published event, for
// metrics. Set before the hub starts serving.
func (h *Hub) OnPublish(fn func(event string)) {
	h.onPublish = fn
}

func (h *Hub) Register(memberID uuid.UUID, conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[memberID]; !ok {
		h.conns[memberID] = make(map[Connection]struct{})
	}
	h.conns[memberID][conn] = struct{}{}
	h.owners[conn] = memberID

	h.logger.Debug().
		Str("member_id", memberID.String()).
		Int("connections", len(h.conns[memberID])).
		Msg("connection registered")
}

func (h *Hub) Deregister(conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn Connection) {
	memberID, ok := h.owners[conn]
	if !ok {
		return
	}
	delete(h.owners, conn)
	if set, ok := h.conns[memberID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, memberID)
		}
	}
}

// Publish delivers the event to every live connection of the member.
// Connections that fail to accept the event are dropped; the failure
// is logged and never propagated to the caller.
func (h *Hub) Publish(ctx context.Context, memberID uuid.UUID, event Event) {
	if h.onPublish != nil {
		h.onPublish(event.Name)
	}

	h.mu.RLock()
	set, ok := h.conns[memberID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]Connection, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	var dead []Connection
	for _, conn := range targets {
		if err := conn.Send(event); err != nil {
			h.logger.Warn().Err(err).
				Str("member_id", memberID.String()).
				Str("event", event.Name).
				Msg("dropping slow or dead connection")
			dead = append(dead, conn)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, conn := range dead {
			h.removeLocked(conn)
		}
		h.mu.Unlock()
		for _, conn := range dead {
			conn.Close()
		}
	}
}

// ConnectionCount reports live connections for a member.
func (h *Hub) ConnectionCount(memberID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[memberID])
}
