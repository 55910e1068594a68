package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	metrics         *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	wsConnections   prometheus.Gauge
	eventsPublished *prometheus.CounterVec
}

func New() *Handler {
	registry := prometheus.NewRegistry()
	h := &Handler{
		metrics: registry,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		wsConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Currently open websocket connections",
			},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_events_published_total",
				Help: "Realtime events published, by event name",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		h.requestDuration,
		h.requestTotal,
		h.wsConnections,
		h.eventsPublished,
	)

	return h
}

// Middleware observes every HTTP request. Route template, not raw
// path, keeps cardinality bounded.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		h.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		h.requestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) ConnectionOpened() {
	h.wsConnections.Inc()
}

func (h *Handler) ConnectionClosed() {
	h.wsConnections.Dec()
}

func (h *Handler) EventPublished(name string) {
	h.eventsPublished.WithLabelValues(name).Inc()
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
}
