package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StatusRefresher advances open orders along the rental timeline.
type StatusRefresher interface {
	RefreshOpenOrders(ctx context.Context) (int, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron      *cron.Cron
	refresher StatusRefresher
	logger    zerolog.Logger
	timeout   time.Duration
}

// NewScheduler registers the status refresh job under spec, a six-field cron
// expression with seconds.
func NewScheduler(spec string, refresher StatusRefresher, logger zerolog.Logger, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron:      c,
		refresher: refresher,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		timeout:   timeout,
	}

	if _, err := s.cron.AddFunc(spec, s.RunStatusRefresh); err != nil {
		return nil, fmt.Errorf("failed to register status refresh job: %w", err)
	}
	return s, nil
}

// RunStatusRefresh runs one refresh pass.
func (s *Scheduler) RunStatusRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	changed, err := s.refresher.RefreshOpenOrders(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("status refresh failed")
		return
	}
	s.logger.Info().
		Int("changed", changed).
		Dur("took", time.Since(started)).
		Msg("status refresh finished")
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("cron scheduler started")
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("cron scheduler stopped")
}
