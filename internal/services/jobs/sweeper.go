// -----------------------------------------------------------------------
// Job Sweeper - Periodic cleanup of abandoned pending jobs
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/interfaces"
)

// Sweeper deletes pending jobs whose scrape never called back. A job older
// than the TTL is considered abandoned; the worker either crashed or dropped
// the request, and a late callback for a swept job is rejected as unknown.
type Sweeper struct {
	storage interfaces.JobStorage
	cron    *cron.Cron
	ttl     time.Duration
	logger  arbor.ILogger
}

// NewSweeper creates a new job sweeper
func NewSweeper(storage interfaces.JobStorage, ttl time.Duration, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		storage: storage,
		cron:    cron.New(),
		ttl:     ttl,
		logger:  logger,
	}
}

// Start begins the periodic sweep
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		// Default: every 10 minutes
		schedule = "*/10 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Str("ttl", s.ttl.String()).
		Msg("Job sweeper started")

	return nil
}

// Stop stops the sweeper
func (s *Sweeper) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Job sweeper stopped")
}

// RunNow triggers an immediate sweep
func (s *Sweeper) RunNow() {
	go s.runSweep()
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	stale, err := s.storage.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Job sweep failed")
		return
	}
	if len(stale) == 0 {
		return
	}

	deleted := 0
	for _, job := range stale {
		if err := s.storage.DeleteJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete stale job")
			continue
		}
		deleted++
	}

	s.logger.Info().
		Int("deleted", deleted).
		Int("stale", len(stale)).
		Msg("Swept abandoned jobs")
}
