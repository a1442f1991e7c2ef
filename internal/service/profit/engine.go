// Package profit distributes daily investment profit. Each run is recorded in
// the run ledger and credits every due investment at most once per day.
package profit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
)

type investmentStore interface {
	ListDue(ctx context.Context, date time.Time) ([]domain.Investment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Investment, error)
	SetNextProfitDate(ctx context.Context, tx *sql.Tx, id uuid.UUID, next time.Time) error
}

type journalReader interface {
	OriginalPrincipal(ctx context.Context, q repository.Querier, investmentID uuid.UUID) (decimal.Decimal, error)
	ProfitExists(ctx context.Context, q repository.Querier, investmentID uuid.UUID, date time.Time) (bool, error)
}

type runStore interface {
	CompletedExists(ctx context.Context, runType domain.RunType, date time.Time) (bool, error)
	Create(ctx context.Context, run *domain.ProfitRun) error
	Finalize(ctx context.Context, run *domain.ProfitRun) error
	MarkAbandoned(ctx context.Context, cutoff time.Time, reason string) ([]uuid.UUID, error)
}

type poster interface {
	Post(ctx context.Context, tx *sql.Tx, p ledger.Posting) (*domain.JournalEntry, *domain.Account, error)
}

type Config struct {
	// Location decides which calendar day "today" is.
	Location *time.Location
	// StaleRunTimeout is how long a run may stay running before
	// ReconcileStaleRuns gives up on it.
	StaleRunTimeout time.Duration
}

type Engine struct {
	investments investmentStore
	journal     journalReader
	runs        runStore
	ledger      poster
	db          *sql.DB
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

func NewEngine(
	investments investmentStore,
	journal journalReader,
	runs runStore,
	l poster,
	db *sql.DB,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		investments: investments,
		journal:     journal,
		runs:        runs,
		ledger:      l,
		db:          db,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Today is the profit day the engine would run for right now.
func (e *Engine) Today() time.Time {
	return domain.CivilDate(e.now(), e.cfg.Location)
}

// RunDaily credits one day of profit to every due active investment.
//
// It returns ErrAlreadyRun when today's run already completed, including when
// another run completed while this one was working, and ErrRunInProgress when
// another run for today holds the running slot. A run that records
// per-investment failures finishes as partial and is returned without error;
// a later RunDaily picks up whatever is still due.
func (e *Engine) RunDaily(ctx context.Context) (*domain.ProfitRun, error) {
	today := e.Today()
	log := e.logger.With("run_type", domain.RunTypeDaily, "run_date", today.Format(time.DateOnly))

	done, err := e.runs.CompletedExists(ctx, domain.RunTypeDaily, today)
	if err != nil {
		return nil, domain.Persistence("RunDaily: check completed run", err)
	}
	if done {
		return nil, fmt.Errorf("RunDaily: %s: %w", today.Format(time.DateOnly), domain.ErrAlreadyRun)
	}

	started := e.now()
	run := &domain.ProfitRun{
		ID:                     uuid.New(),
		RunType:                domain.RunTypeDaily,
		RunDate:                today,
		IdempotencyKey:         fmt.Sprintf("daily-%s-%d", today.Format(time.DateOnly), started.UnixNano()),
		Status:                 domain.RunStatusRunning,
		TotalProfitDistributed: decimal.Zero,
		StartedAt:              started,
	}
	if err := e.runs.Create(ctx, run); err != nil {
		if errors.Is(err, domain.ErrRunInProgress) || errors.Is(err, domain.ErrAlreadyRun) {
			return nil, fmt.Errorf("RunDaily: %w", err)
		}
		return nil, domain.Persistence("RunDaily: create run", err)
	}
	log = log.With("run_id", run.ID)
	log.Info("profit run started")

	due, err := e.investments.ListDue(ctx, today)
	if err != nil {
		run.Errors = append(run.Errors, domain.RunError{Message: "list due investments: " + err.Error()})
		if ferr := e.finalize(context.WithoutCancel(ctx), run, log); ferr != nil {
			log.Error("failed to finalize profit run", "error", ferr)
		}
		return run, domain.Persistence("RunDaily: list due investments", err)
	}
	run.TotalInvestments = len(due)

	users := make(map[uuid.UUID]struct{})
	for i, inv := range due {
		if ctx.Err() != nil {
			run.Errors = append(run.Errors, domain.RunError{
				Message: fmt.Sprintf("run interrupted with %d investments unprocessed: %v", len(due)-i, ctx.Err()),
			})
			break
		}

		profit, credited, err := e.distribute(ctx, inv, today)
		switch {
		case err != nil:
			investmentID, userID := inv.ID, inv.UserID
			run.Errors = append(run.Errors, domain.RunError{
				InvestmentID: &investmentID,
				UserID:       &userID,
				Message:      err.Error(),
			})
			log.Error("profit credit failed", "investment_id", inv.ID, "user_id", inv.UserID, "error", err)
		case credited:
			run.CreditedCount++
			run.TotalProfitDistributed = run.TotalProfitDistributed.Add(profit)
			users[inv.UserID] = struct{}{}
		default:
			run.SkippedCount++
		}
	}
	run.UsersCredited = len(users)

	if err := e.finalize(context.WithoutCancel(ctx), run, log); err != nil {
		return run, fmt.Errorf("RunDaily: %w", err)
	}
	return run, nil
}

func (e *Engine) finalize(ctx context.Context, run *domain.ProfitRun, log *slog.Logger) error {
	completedAt := e.now()
	run.CompletedAt = &completedAt
	run.Status = domain.RunStatusCompleted
	if len(run.Errors) > 0 {
		run.Status = domain.RunStatusPartial
	}

	err := e.runs.Finalize(ctx, run)
	lostRace := errors.Is(err, domain.ErrAlreadyRun)
	if lostRace {
		run.Status = domain.RunStatusPartial
		run.Errors = append(run.Errors, domain.RunError{
			Message: "another run completed for this date first",
		})
		err = e.runs.Finalize(ctx, run)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return fmt.Errorf("finalize: %w", err)
		}
		return domain.Persistence("finalize", err)
	}

	log.Info("profit run finished",
		"status", run.Status,
		"total_investments", run.TotalInvestments,
		"credited", run.CreditedCount,
		"skipped", run.SkippedCount,
		"users_credited", run.UsersCredited,
		"total_profit", run.TotalProfitDistributed,
		"errors", len(run.Errors),
		"duration", completedAt.Sub(run.StartedAt),
	)
	if lostRace {
		return fmt.Errorf("finalize: stored as partial: %w", domain.ErrAlreadyRun)
	}
	return nil
}
