package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scanner runs one reminder pass at the given instant.
type Scanner interface {
	Scan(ctx context.Context, now time.Time) error
}

type Config struct {
	// Spec is a cron expression. Defaults to a daily 09:00 run.
	Spec string `yaml:"spec"`
	// Timeout bounds a single scan.
	Timeout time.Duration `yaml:"timeout"`
}

// Scheduler drives the reminder scanner on a cron schedule. Firing is
// idempotent downstream, so an occasional doubled or delayed tick is
// harmless.
type Scheduler struct {
	cron    *cron.Cron
	scanner Scanner
	cfg     Config
	logger  *zerolog.Logger
}

func New(scanner Scanner, cfg Config, logger *zerolog.Logger) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = "0 9 * * *"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(),
		scanner: scanner,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Spec, s.run)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.cfg.Spec).Msg("reminder scheduler started")
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if err := s.scanner.Scan(ctx, time.Now()); err != nil {
		s.logger.Error().Err(err).Msg("scheduled reminder scan failed")
	}
}

// RunOnce triggers a scan outside the schedule, for manual kicks and
// catch-up after downtime.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.scanner.Scan(ctx, time.Now())
}

// Stop halts the schedule and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("reminder scheduler stopped")
}
