package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const profitRunColumns = `id, run_type, run_date, idempotency_key, status,
	total_investments, credited_count, skipped_count, users_credited,
	total_profit_distributed, errors, started_at, completed_at`

const (
	completedRunConstraint = "uq_profit_runs_completed"
	runningRunConstraint   = "uq_profit_runs_running"
)

// ProfitRunRepository is the run ledger: one row per distribution attempt.
type ProfitRunRepository struct {
	db *sql.DB
}

func NewProfitRunRepository(db *sql.DB) *ProfitRunRepository {
	return &ProfitRunRepository{db: db}
}

func (r *ProfitRunRepository) CompletedExists(ctx context.Context, runType domain.RunType, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM profit_runs WHERE run_type = $1 AND run_date = $2 AND status = $3
		)`,
		runType, dateParam(date), domain.RunStatusCompleted,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("CompletedExists: %w", err)
	}
	return exists, nil
}

func (r *ProfitRunRepository) Create(ctx context.Context, run *domain.ProfitRun) error {
	errs, err := marshalRunErrors(run.Errors)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profit_runs (
			id, run_type, run_date, idempotency_key, status,
			total_investments, credited_count, skipped_count, users_credited,
			total_profit_distributed, errors, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.RunType, dateParam(run.RunDate), run.IdempotencyKey, run.Status,
		run.TotalInvestments, run.CreditedCount, run.SkippedCount, run.UsersCredited,
		run.TotalProfitDistributed, errs, run.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err, runningRunConstraint) {
			return fmt.Errorf("Create: %w", domain.ErrRunInProgress)
		}
		if isUniqueViolation(err, completedRunConstraint) {
			return fmt.Errorf("Create: %w", domain.ErrAlreadyRun)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Finalize writes the terminal status and totals of a running row.
func (r *ProfitRunRepository) Finalize(ctx context.Context, run *domain.ProfitRun) error {
	errs, err := marshalRunErrors(run.Errors)
	if err != nil {
		return fmt.Errorf("Finalize: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE profit_runs SET
			status = $1, total_investments = $2, credited_count = $3, skipped_count = $4,
			users_credited = $5, total_profit_distributed = $6, errors = $7, completed_at = $8
		WHERE id = $9 AND status = $10`,
		run.Status, run.TotalInvestments, run.CreditedCount, run.SkippedCount,
		run.UsersCredited, run.TotalProfitDistributed, errs, run.CompletedAt,
		run.ID, domain.RunStatusRunning,
	)
	if err != nil {
		if isUniqueViolation(err, completedRunConstraint) {
			return fmt.Errorf("Finalize: %w", domain.ErrAlreadyRun)
		}
		return fmt.Errorf("Finalize: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finalize: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Finalize: run %s is no longer running: %w", run.ID, domain.ErrInvalidState)
	}
	return nil
}

// History lists runs newest first.
func (r *ProfitRunRepository) History(ctx context.Context, limit int) ([]domain.ProfitRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profitRunColumns+` FROM profit_runs
		ORDER BY run_date DESC, started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	defer rows.Close()

	var runs []domain.ProfitRun
	for rows.Next() {
		run, err := scanProfitRun(rows)
		if err != nil {
			return nil, fmt.Errorf("History: scan: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("History: rows: %w", err)
	}
	return runs, nil
}

// MarkAbandoned moves running rows started before cutoff to partial, appending
// reason to their error list, and returns the ids it touched.
func (r *ProfitRunRepository) MarkAbandoned(ctx context.Context, cutoff time.Time, reason string) ([]uuid.UUID, error) {
	note, err := json.Marshal([]domain.RunError{{Message: reason}})
	if err != nil {
		return nil, fmt.Errorf("MarkAbandoned: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`UPDATE profit_runs
		SET status = $1, errors = errors || $2::jsonb, completed_at = now()
		WHERE status = $3 AND started_at < $4
		RETURNING id`,
		domain.RunStatusPartial, string(note), domain.RunStatusRunning, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("MarkAbandoned: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("MarkAbandoned: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MarkAbandoned: rows: %w", err)
	}
	return ids, nil
}

func marshalRunErrors(errs []domain.RunError) (string, error) {
	if errs == nil {
		errs = []domain.RunError{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("marshal run errors: %w", err)
	}
	return string(b), nil
}

func scanProfitRun(s scanner) (*domain.ProfitRun, error) {
	var (
		run  domain.ProfitRun
		errs []byte
	)
	err := s.Scan(
		&run.ID, &run.RunType, &run.RunDate, &run.IdempotencyKey, &run.Status,
		&run.TotalInvestments, &run.CreditedCount, &run.SkippedCount, &run.UsersCredited,
		&run.TotalProfitDistributed, &errs, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &run.Errors); err != nil {
			return nil, fmt.Errorf("decode run errors: %w", err)
		}
	}
	run.RunDate = run.RunDate.UTC()
	return &run, nil
}
