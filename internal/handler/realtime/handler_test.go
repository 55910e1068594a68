package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubworks/portal-api/internal/realtime"
)

// dialSession upgrades a loopback websocket and wraps the server side
// in a session, returning the client side for reading.
func dialSession(t *testing.T) (*session, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	return newSession(<-conns, &logger), client
}

func TestSessionDeliversEvents(t *testing.T) {
	sess, client := dialSession(t)
	defer sess.Close()
	go sess.writePump()

	require.NoError(t, sess.Send(realtime.Event{
		Name:    realtime.EventNotificationNew,
		Payload: map[string]string{"id": "1"},
	}))

	var got realtime.Event
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, realtime.EventNotificationNew, got.Name)
}

func TestSendReportsBackpressure(t *testing.T) {
	sess, _ := dialSession(t)
	defer sess.Close()

	// No write pump draining: once the buffer is full the next send
	// must fail immediately instead of blocking the publisher.
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, sess.Send(realtime.Event{Name: realtime.EventNotificationNew}))
	}
	assert.Error(t, sess.Send(realtime.Event{Name: realtime.EventNotificationNew}))
}

// The hub closes sessions it drops mid-publish while the read pump
// closes on client disconnect; both paths can fire at once and must
// not panic on a double channel close.
func TestCloseIsConcurrencySafe(t *testing.T) {
	for i := 0; i < 100; i++ {
		sess, _ := dialSession(t)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				sess.Close()
			}()
		}
		close(start)
		wg.Wait()

		assert.NoError(t, sess.Close())
	}
}

func TestSendAfterCloseNeverBlocks(t *testing.T) {
	sess, _ := dialSession(t)
	require.NoError(t, sess.Close())

	// The buffer is gone from the write pump's perspective; sends must
	// return immediately whether or not they land in the buffer.
	for i := 0; i < sendBuffer*2; i++ {
		sess.Send(realtime.Event{Name: realtime.EventNotificationNew})
	}
}
