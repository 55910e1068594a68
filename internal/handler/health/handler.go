package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DBPinger is the slice of *sqlx.DB readiness needs.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Pinger is an optional backing service checked by readiness; a nil
// Pinger is skipped. Satisfied by the redis broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db    DBPinger
	redis Pinger
}

func NewHandler(db DBPinger, redis Pinger) *Handler {
	return &Handler{
		db:    db,
		redis: redis,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck verifies the database and, when the realtime bridge
// is configured, the redis connection behind it.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "database unreachable",
		})
		return
	}
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"reason": "redis unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
