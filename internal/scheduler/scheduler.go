// Package scheduler runs configured jobs unattended, on a fixed
// interval or at a daily wall-clock time. Triggered runs overlap
// freely; a slow run never delays the next trigger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reportcli/internal/config"
	"reportcli/internal/services"
)

// Scheduler watches the clock and triggers runs through the run
// service.
type Scheduler struct {
	cfg     *config.Config
	service *services.RunService
	logger  *slog.Logger
}

// New creates a scheduler.
func New(cfg *config.Config, service *services.RunService, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cfg: cfg, service: service, logger: logger}
}

// Run blocks until the context is cancelled, triggering scheduled jobs
// as they come due. Jobs without a schedule block are ignored.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	scheduled := 0

	for _, job := range s.cfg.Jobs {
		if job.Schedule == nil {
			continue
		}
		scheduled++
		wg.Add(1)
		go func(job config.JobConfig) {
			defer wg.Done()
			s.watch(ctx, job)
		}(job)
	}

	s.logger.InfoContext(ctx, "scheduler started", slog.Int("scheduled_jobs", scheduled))
	wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) watch(ctx context.Context, job config.JobConfig) {
	if every := time.Duration(job.Schedule.Every); every > 0 {
		s.watchInterval(ctx, job.Name, every)
		return
	}
	s.watchDaily(ctx, job.Name, job.Schedule.DailyAt)
}

func (s *Scheduler) watchInterval(ctx context.Context, job string, every time.Duration) {
	s.logger.InfoContext(ctx, "job scheduled",
		slog.String("job", job),
		slog.Duration("every", every))

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, job)
		}
	}
}

func (s *Scheduler) watchDaily(ctx context.Context, job, at string) {
	s.logger.InfoContext(ctx, "job scheduled",
		slog.String("job", job),
		slog.String("daily_at", at))

	for {
		next := NextDaily(time.Now().UTC(), at)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(ctx, job)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, job string) {
	snap, err := s.service.Trigger(ctx, job)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled trigger failed",
			slog.String("job", job),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "scheduled run triggered",
		slog.String("job", job),
		slog.String("run_id", snap.ID))
}

// NextDaily returns the first occurrence of the "15:04" wall-clock
// time strictly after now, in UTC. An unparsable time falls back to
// midnight; config validation rejects those upfront.
func NextDaily(now time.Time, at string) time.Time {
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		parsed = time.Time{}
	}
	next := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Describe renders a schedule for logging.
func Describe(s *config.ScheduleConfig) string {
	if s == nil {
		return "none"
	}
	if s.Every > 0 {
		return fmt.Sprintf("every %s", time.Duration(s.Every))
	}
	return fmt.Sprintf("daily at %s UTC", s.DailyAt)
}
