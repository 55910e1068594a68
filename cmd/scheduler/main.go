package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/clubworks/portal-api/internal/config"
	"github.com/clubworks/portal-api/internal/email"
	"github.com/clubworks/portal-api/internal/realtime"
	"github.com/clubworks/portal-api/internal/repository/postgres"
	"github.com/clubworks/portal-api/internal/scheduler"
	reminderService "github.com/clubworks/portal-api/internal/service/reminder"
	"github.com/clubworks/portal-api/pkg/logger"
	"github.com/clubworks/portal-api/pkg/messaging/redis"
)

// Config is environment-driven: the scheduler ships as a standalone
// worker container and reads no config file.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"portal"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"portal"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	RedisURL string `envconfig:"REDIS_URL"`

	CronSpec    string        `envconfig:"CRON_SPEC" default:"0 9 * * *"`
	ScanTimeout time.Duration `envconfig:"SCAN_TIMEOUT" default:"5m"`
	// RunOnce scans once and exits, for external cron.
	RunOnce bool `envconfig:"RUN_ONCE"`

	SMTPEnabled  bool   `envconfig:"SMTP_ENABLED"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	PortalURL    string `envconfig:"PORTAL_URL"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := logger.NewLogger(nil)
	zl := l.ZL()

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	periodRepo := postgres.NewPeriodRepository(base)
	reminderRepo := postgres.NewReminderRepository(base)
	memberRepo := postgres.NewMemberRepository(base)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// This process holds no client connections; events reach the API
	// instances through the Redis bridge.
	hub := realtime.NewHub(zl)
	var broker realtime.Broker = hub
	if cfg.RedisURL != "" {
		redisBroker, err := redis.NewRedisBroker(redis.Config{URL: cfg.RedisURL}, zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisBroker.Close()
		broker = realtime.NewBridge(hub, redisBroker, zl)
	}

	var emailSvc email.Service = email.NopService{}
	if cfg.SMTPEnabled {
		emailSvc = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			BaseURL:  cfg.PortalURL,
		})
	}

	reminderSvc := reminderService.NewService(periodRepo, memberRepo, reminderRepo, broker, emailSvc, zl)
	sched := scheduler.New(reminderSvc, scheduler.Config{
		Spec:    cfg.CronSpec,
		Timeout: cfg.ScanTimeout,
	}, zl)

	if cfg.RunOnce {
		scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
		defer cancel()
		if err := sched.RunOnce(scanCtx); err != nil {
			log.Fatal().Err(err).Msg("reminder scan failed")
		}
		return
	}

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	<-ctx.Done()
	sched.Stop()
}
