package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
)

// Scheduler re-indexes configured library scopes on cron schedules. Each
// refresh enqueues a normal index job; overlapping refreshes of the same
// scope are skipped while an earlier one is still in flight.
type Scheduler struct {
	jobs   interfaces.JobService
	cron   *cron.Cron
	cfg    *common.Config
	logger arbor.ILogger
}

func NewScheduler(jobService interfaces.JobService, cfg *common.Config, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		jobs:   jobService,
		cron:   cron.New(),
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers all configured refreshes and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Scheduler.Enabled {
		s.logger.Debug().Msg("Scheduler disabled")
		return nil
	}

	for _, refresh := range s.cfg.Scheduler.Refreshes {
		refresh := refresh
		_, err := s.cron.AddFunc(refresh.Schedule, func() {
			s.runRefresh(refresh)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", refresh.Schedule, refresh.Library, err)
		}
		s.logger.Info().
			Str("library", refresh.Library).
			Str("version", refresh.Version).
			Str("schedule", refresh.Schedule).
			Msg("Scheduled refresh registered")
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) runRefresh(refresh common.RefreshConfig) {
	ctx := context.Background()

	active, err := s.jobs.FindJobs(ctx, refresh.Library, refresh.Version,
		models.JobStatusQueued, models.JobStatusRunning, models.JobStatusCancelling)
	if err == nil && len(active) > 0 {
		s.logger.Warn().
			Str("library", refresh.Library).
			Str("version", refresh.Version).
			Msg("Skipping refresh, previous job still active")
		return
	}

	id, err := s.jobs.Enqueue(ctx, refresh.Library, refresh.Version, refresh.URL, models.ScrapeOptions{})
	if err != nil {
		s.logger.Error().
			Str("library", refresh.Library).
			Err(err).
			Msg("Failed to enqueue scheduled refresh")
		return
	}

	s.logger.Info().
		Str("job_id", id).
		Str("library", refresh.Library).
		Str("version", refresh.Version).
		Msg("Scheduled refresh enqueued")
}

// Stop halts the cron loop; a running refresh job is left to the manager.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
