package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// OverdueMarker flags unpaid invoices past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// Scheduler runs periodic background jobs.
type Scheduler struct {
	cron    *cron.Cron
	overdue OverdueMarker
	spec    string
	timeout time.Duration
	logger  zerolog.Logger
}

func New(overdue OverdueMarker, spec string, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		overdue: overdue,
		spec:    spec,
		timeout: 5 * time.Minute,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.markOverdue); err != nil {
		return fmt.Errorf("add overdue job %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info().Str("overdue_schedule", s.spec).Msg("scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) markOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.overdue.MarkOverdue(ctx)
	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Error().Err(err)
	}
	ev.Int("marked", n).Dur("took", time.Since(start)).Msg("overdue invoice sweep")
}
