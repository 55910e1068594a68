package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clubworks/portal-api/internal/handler/health"
	notificationh "github.com/clubworks/portal-api/internal/handler/notification"
	paymenth "github.com/clubworks/portal-api/internal/handler/payment"
	periodh "github.com/clubworks/portal-api/internal/handler/period"
	"github.com/clubworks/portal-api/internal/handler/prometheus"
	realtimeh "github.com/clubworks/portal-api/internal/handler/realtime"
	"github.com/clubworks/portal-api/internal/middleware"
)

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORSConfig     middleware.CORSConfig
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		CORSConfig:     middleware.DefaultCORSConfig(),
	}
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	healthH       *health.Handler
	periodH       *periodh.Handler
	paymentH      *paymenth.Handler
	notificationH *notificationh.Handler
	realtimeH     *realtimeh.Handler
	metrics       *prometheus.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	periodH *periodh.Handler,
	paymentH *paymenth.Handler,
	notificationH *notificationh.Handler,
	realtimeH *realtimeh.Handler,
	metrics *prometheus.Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:        engine,
		auth:          auth,
		healthH:       healthH,
		periodH:       periodH,
		paymentH:      paymentH,
		notificationH: notificationH,
		realtimeH:     realtimeH,
		metrics:       metrics,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metrics.Middleware(),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", r.metrics.Handler())

	// The websocket endpoint authenticates via query token inside the
	// handler; browser websocket clients cannot set headers.
	r.realtimeH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.periodH.RegisterRoutes(protected, r.auth)
	r.paymentH.RegisterRoutes(protected)
	r.notificationH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
