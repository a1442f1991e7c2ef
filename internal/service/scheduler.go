package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/runlock"
)

type profitRunner interface {
	Today() time.Time
	RunDaily(ctx context.Context) (*domain.ProfitRun, error)
	ReconcileStaleRuns(ctx context.Context) ([]uuid.UUID, error)
}

type idempotencyPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// maxPartialRuns bounds how many partial runs a process starts for one day
// before leaving the remaining failures to the next day or an admin.
const maxPartialRuns = 3

type SchedulerConfig struct {
	Interval time.Duration
	// RunHour is the local hour, in Location, from which the daily run fires.
	RunHour  int
	Location *time.Location
	LockTTL  time.Duration
}

// Scheduler fires the daily profit run once per day per process and keeps
// the housekeeping jobs ticking. The run ledger, not the scheduler, is what
// guarantees a day is distributed only once.
type Scheduler struct {
	runner    profitRunner
	locker    runlock.Locker
	purger    idempotencyPurger
	logger    *slog.Logger
	cfg       SchedulerConfig
	now       func() time.Time
	attempted time.Time

	partialDay  time.Time
	partialRuns int
}

func NewScheduler(runner profitRunner, locker runlock.Locker, purger idempotencyPurger, logger *slog.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &Scheduler{
		runner: runner,
		locker: locker,
		purger: purger,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"run_hour", s.cfg.RunHour,
		"timezone", s.cfg.Location.String(),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.runner.ReconcileStaleRuns(ctx); err != nil {
		s.logger.Error("failed to reconcile stale profit runs", "error", err)
	}

	if n, err := s.purger.PurgeExpired(ctx); err != nil {
		s.logger.Error("failed to purge idempotency records", "error", err)
	} else if n > 0 {
		s.logger.Debug("purged idempotency records", "count", n)
	}

	s.maybeRunDaily(ctx)
}

func (s *Scheduler) maybeRunDaily(ctx context.Context) {
	today := s.runner.Today()
	if s.attempted.Equal(today) {
		return
	}
	if s.now().In(s.cfg.Location).Hour() < s.cfg.RunHour {
		return
	}

	date := today.Format(time.DateOnly)
	release, err := s.locker.Acquire(ctx, "profit-run:daily:"+date, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, runlock.ErrLockHeld) {
			s.logger.Debug("daily profit run held by another instance", "run_date", date)
			return
		}
		s.logger.Error("failed to acquire profit run lock", "run_date", date, "error", err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release profit run lock", "run_date", date, "error", err)
		}
	}()

	run, err := s.runner.RunDaily(ctx)
	switch {
	case err == nil && run.Status == domain.RunStatusPartial:
		s.notePartial(today, date, run)
	case err == nil:
		s.attempted = today
		s.logger.Info("daily profit run done", "run_date", date, "run_id", run.ID, "status", run.Status)
	case errors.Is(err, domain.ErrAlreadyRun):
		s.attempted = today
		s.logger.Info("daily profit run already completed", "run_date", date)
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.Info("daily profit run in progress elsewhere", "run_date", date)
	default:
		s.logger.Error("daily profit run failed", "run_date", date, "error", err)
	}
}

// notePartial leaves the day open so the next tick retries the failed
// investments; credited ones are skipped by the per-day profit check.
func (s *Scheduler) notePartial(today time.Time, date string, run *domain.ProfitRun) {
	if !s.partialDay.Equal(today) {
		s.partialDay = today
		s.partialRuns = 0
	}
	s.partialRuns++

	if s.partialRuns >= maxPartialRuns {
		s.attempted = today
		s.logger.Error("daily profit run still partial, giving up for today",
			"run_date", date,
			"run_id", run.ID,
			"attempts", s.partialRuns,
			"errors", len(run.Errors),
		)
		return
	}
	s.logger.Warn("daily profit run partial, retrying next tick",
		"run_date", date,
		"run_id", run.ID,
		"attempt", s.partialRuns,
		"errors", len(run.Errors),
	)
}
