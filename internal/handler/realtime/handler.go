package realtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/clubworks/portal-api/internal/handler"
	"github.com/clubworks/portal-api/internal/middleware"
	"github.com/clubworks/portal-api/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// ConnectionMetrics counts open sessions. Satisfied by the prometheus
// handler.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}

// Handler upgrades portal clients to websocket sessions and binds them
// to the fan-out hub for the lifetime of the socket.
type Handler struct {
	broker   realtime.Broker
	auth     *middleware.AuthMiddleware
	metrics  ConnectionMetrics
	upgrader websocket.Upgrader
	logger   *zerolog.Logger
}

func NewHandler(broker realtime.Broker, auth *middleware.AuthMiddleware, metrics ConnectionMetrics, logger *zerolog.Logger) *Handler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Handler{
		broker:  broker,
		auth:    auth,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens at the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}

// Connect authenticates via the token query parameter, since browser
// websocket clients cannot set an Authorization header, then upgrades
// and registers the session.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing token"))
		return
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
		return
	}
	memberID, err := uuid.Parse(claims.MemberID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(ws, h.logger)
	h.broker.Register(memberID, sess)
	h.metrics.ConnectionOpened()

	go sess.writePump()
	go func() {
		sess.readPump()
		h.broker.Deregister(sess)
		sess.Close()
		h.metrics.ConnectionClosed()
	}()
}

// session adapts one websocket to the hub's Connection contract. Send
// enqueues into a bounded buffer; a full buffer means the client is
// not keeping up and the hub will drop the session.
type session struct {
	ws        *websocket.Conn
	send      chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	logger    *zerolog.Logger
}

func newSession(ws *websocket.Conn, logger *zerolog.Logger) *session {
	return &session{
		ws:     ws,
		send:   make(chan realtime.Event, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *session) Send(event realtime.Event) error {
	select {
	case s.send <- event:
		return nil
	case <-s.done:
		return errors.New("session closed")
	default:
		return errors.New("send buffer full")
	}
}

// Close races between the read pump on client disconnect and the hub
// dropping a slow session mid-publish; it must tolerate both arriving
// at once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.ws.Close()
	})
	return s.closeErr
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-s.send:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteJSON(event); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump discards client frames; the socket is server-push only.
// Reading still matters: it services pongs and detects closure.
func (s *session) readPump() {
	s.ws.SetReadLimit(512)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			return
		}
	}
}
