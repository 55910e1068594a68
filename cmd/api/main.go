package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clubworks/portal-api/internal/config"
	"github.com/clubworks/portal-api/internal/email"
	"github.com/clubworks/portal-api/internal/gateway"
	healthHandler "github.com/clubworks/portal-api/internal/handler/health"
	notificationHandler "github.com/clubworks/portal-api/internal/handler/notification"
	paymentHandler "github.com/clubworks/portal-api/internal/handler/payment"
	periodHandler "github.com/clubworks/portal-api/internal/handler/period"
	prometheusHandler "github.com/clubworks/portal-api/internal/handler/prometheus"
	realtimeHandler "github.com/clubworks/portal-api/internal/handler/realtime"
	"github.com/clubworks/portal-api/internal/middleware"
	"github.com/clubworks/portal-api/internal/realtime"
	"github.com/clubworks/portal-api/internal/repository/postgres"
	"github.com/clubworks/portal-api/internal/router"
	"github.com/clubworks/portal-api/internal/scheduler"
	notificationService "github.com/clubworks/portal-api/internal/service/notification"
	paymentService "github.com/clubworks/portal-api/internal/service/payment"
	periodService "github.com/clubworks/portal-api/internal/service/period"
	reminderService "github.com/clubworks/portal-api/internal/service/reminder"
	"github.com/clubworks/portal-api/pkg/logger"
	"github.com/clubworks/portal-api/pkg/messaging"
	"github.com/clubworks/portal-api/pkg/messaging/redis"
	"github.com/clubworks/portal-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := logger.NewLogger(nil)
	zl := l.ZL()

	if err := validator.RegisterCustom(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	periodRepo := postgres.NewPeriodRepository(base)
	paymentRepo := postgres.NewPaymentRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)
	reminderRepo := postgres.NewReminderRepository(base)
	memberRepo := postgres.NewMemberRepository(base)

	// Realtime fan-out: in-process hub, bridged across instances when
	// Redis is configured.
	metrics := prometheusHandler.New()
	hub := realtime.NewHub(zl)
	hub.OnPublish(metrics.EventPublished)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var broker realtime.Broker = hub
	var redisBroker messaging.Broker
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rb.Close()
		redisBroker = rb

		bridge := realtime.NewBridge(hub, rb, zl)
		if err := bridge.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start realtime bridge")
		}
		broker = bridge
	}

	// Collaborators
	gatewayClient := gateway.NewClient(gateway.Config{
		KeyID:      cfg.Gateway.KeyID,
		KeySecret:  cfg.Gateway.KeySecret,
		BaseURL:    cfg.Gateway.BaseURL,
		Timeout:    cfg.Gateway.Timeout,
		MaxRetries: cfg.Gateway.MaxRetries,
		RetryDelay: cfg.Gateway.RetryDelay,
	}, zl)

	var emailSvc email.Service = email.NopService{}
	if cfg.Email.Enabled {
		emailSvc = email.NewService(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			BaseURL:  cfg.Email.BaseURL,
		})
	}

	// Services
	notificationSvc := notificationService.NewService(notificationRepo, broker, zl)
	periodSvc := periodService.NewService(periodRepo, paymentRepo, zl)
	paymentSvc := paymentService.NewService(paymentRepo, periodRepo, memberRepo, notificationSvc, gatewayClient, zl)
	reminderSvc := reminderService.NewService(periodRepo, memberRepo, reminderRepo, broker, emailSvc, zl)

	// Reminder scheduler runs in-process; a dedicated scheduler binary
	// exists for deployments that want it separate.
	sched := scheduler.New(reminderSvc, scheduler.Config{
		Spec:    cfg.Scheduler.Spec,
		Timeout: cfg.Scheduler.Timeout,
	}, zl)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start reminder scheduler")
	}
	defer sched.Stop()

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	healthH := healthHandler.NewHandler(db, redisBroker)
	periodH := periodHandler.NewHandler(periodSvc, paymentSvc)
	paymentH := paymentHandler.NewHandler(paymentSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)
	realtimeH := realtimeHandler.NewHandler(broker, authMiddleware, metrics, zl)

	r := router.NewRouter(
		authMiddleware,
		healthH,
		periodH,
		paymentH,
		notificationH,
		realtimeH,
		metrics,
		router.DefaultRouterConfig(),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		l.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "graceful shutdown failed")
		os.Exit(1)
	}
}
