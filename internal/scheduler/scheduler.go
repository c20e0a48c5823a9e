// Package scheduler fires the configured tasks at fixed intervals.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/logging"
	"almaconnector/pkg/metrics"
	"almaconnector/pkg/models"
)

// FireFunc starts one task, either inline or by queueing it.
type FireFunc func(ctx context.Context, task models.Task) error

type Scheduler struct {
	entries []config.ScheduleEntry
	fire    FireFunc
	locker  Locker
	log     logger.Logger
}

// New builds a scheduler. A nil locker lets every process fire.
func New(entries []config.ScheduleEntry, fire FireFunc, locker Locker, log logger.Logger) *Scheduler {
	if locker == nil {
		locker = localLocker{}
	}
	return &Scheduler{entries: entries, fire: fire, locker: locker, log: log}
}

// Run ticks every entry until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.log.Infow("no scheduled tasks configured")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, entry := range s.entries {
		g.Go(func() error {
			s.loop(ctx, entry)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, entry config.ScheduleEntry) {
	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	s.log.Infow("scheduled task registered", "entry", entry.Name, "task", entry.Task, "interval", entry.Interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, entry)
		}
	}
}

// Tick fires entry once if this process wins the lock for the interval.
// The outcome is returned for tests and metrics.
func (s *Scheduler) Tick(ctx context.Context, entry config.ScheduleEntry) string {
	ctx = logging.WithTask(ctx, entry.Task)

	outcome := "fired"
	err := apperrors.Guard(func() error {
		ok, err := s.locker.Acquire(ctx, entry.Name, lockTTL(entry.Interval))
		if err != nil {
			return err
		}
		if !ok {
			outcome = "skipped"
			return nil
		}
		return s.fire(ctx, models.Task{Name: entry.Task, ScheduledBy: entry.Name})
	})
	if err != nil {
		outcome = "error"
		s.log.ErrorwCtx(ctx, "scheduled task failed", "entry", entry.Name, "error", err.Error())
	} else if outcome == "skipped" {
		s.log.DebugwCtx(ctx, "scheduled task already fired elsewhere", "entry", entry.Name)
	}

	metrics.IncSchedulerTick(entry.Name, outcome)
	return outcome
}

// lockTTL keeps the lock a little shorter than the interval so the next
// tick can take it again.
func lockTTL(interval time.Duration) time.Duration {
	ttl := interval - interval/10
	if ttl <= 0 {
		return interval
	}
	return ttl
}
