package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type testConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (c *testConn) Send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestHub() *Hub {
	logger := zerolog.Nop()
	return NewHub(&logger)
}

func TestPublishReachesAllMemberConnections(t *testing.T) {
	hub := newTestHub()
	memberID := uuid.New()
	tab1 := &testConn{}
	tab2 := &testConn{}
	other := &testConn{}

	hub.Register(memberID, tab1)
	hub.Register(memberID, tab2)
	hub.Register(uuid.New(), other)

	hub.Publish(context.Background(), memberID, Event{Name: EventNotificationNew})

	assert.Equal(t, 1, tab1.count())
	assert.Equal(t, 1, tab2.count())
	assert.Equal(t, 0, other.count())
}

func TestPublishToOfflineMemberIsNoop(t *testing.T) {
	hub := newTestHub()
	// Must not panic or block.
	hub.Publish(context.Background(), uuid.New(), Event{Name: EventNotificationRead})
}

func TestDeregisterStopsDelivery(t *testing.T) {
	hub := newTestHub()
	memberID := uuid.New()
	conn := &testConn{}

	hub.Register(memberID, conn)
	hub.Deregister(conn)
	hub.Publish(context.Background(), memberID, Event{Name: EventNotificationNew})

	assert.Equal(t, 0, conn.count())
	assert.Equal(t, 0, hub.ConnectionCount(memberID))
}

func TestFailingConnectionIsDropped(t *testing.T) {
	hub := newTestHub()
	memberID := uuid.New()
	healthy := &testConn{}
	broken := &testConn{fail: true}

	hub.Register(memberID, healthy)
	hub.Register(memberID, broken)

	hub.Publish(context.Background(), memberID, Event{Name: EventNotificationNew})

	assert.Equal(t, 1, healthy.count())
	assert.True(t, broken.closed)
	assert.Equal(t, 1, hub.ConnectionCount(memberID))

	// The dead connection no longer receives anything.
	hub.Publish(context.Background(), memberID, Event{Name: EventNotificationRead})
	assert.Equal(t, 2, healthy.count())
}

func TestOnPublishHook(t *testing.T) {
	hub := newTestHub()
	var names []string
	hub.OnPublish(func(name string) { names = append(names, name) })

	hub.Publish(context.Background(), uuid.New(), Event{Name: EventNotificationNew})
	hub.Publish(context.Background(), uuid.New(), Event{Name: EventNotificationAllRead})

	assert.Equal(t, []string{EventNotificationNew, EventNotificationAllRead}, names)
}

func TestConcurrentRegisterAndPublish(t *testing.T) {
	hub := newTestHub()
	memberID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			conn := &testConn{}
			hub.Register(memberID, conn)
			hub.Deregister(conn)
		}()
		go func() {
			defer wg.Done()
			hub.Publish(context.Background(), memberID, Event{Name: EventNotificationNew})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ConnectionCount(memberID))
}
