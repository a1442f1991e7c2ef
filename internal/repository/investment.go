package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const investmentColumns = `id, user_id, amount, level, profit_rate, status,
	next_profit_date, created_at, updated_at`

type InvestmentRepository struct {
	db *sql.DB
}

func NewInvestmentRepository(db *sql.DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

func (r *InvestmentRepository) Create(ctx context.Context, tx *sql.Tx, inv *domain.Investment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO investments (
			id, user_id, amount, level, profit_rate, status, next_profit_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.UserID, inv.Amount, inv.Level, inv.ProfitRate, inv.Status,
		dateParam(inv.NextProfitDate), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id,
	)
	inv, err := scanInvestment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return inv, nil
}

// ListDue returns active investments owed profit on date, oldest first so a
// partially failed batch is reproducible.
func (r *InvestmentRepository) ListDue(ctx context.Context, date time.Time) ([]domain.Investment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+investmentColumns+` FROM investments
		WHERE status = $1 AND next_profit_date <= $2
		ORDER BY created_at, id`,
		domain.InvestmentStatusActive, dateParam(date),
	)
	if err != nil {
		return nil, fmt.Errorf("ListDue: %w", err)
	}
	defer rows.Close()

	var investments []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDue: scan: %w", err)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDue: rows: %w", err)
	}
	return investments, nil
}

func (r *InvestmentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Investment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id,
	)
	inv, err := scanInvestment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return inv, nil
}

func (r *InvestmentRepository) SetNextProfitDate(ctx context.Context, tx *sql.Tx, id uuid.UUID, next time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE investments SET next_profit_date = $1, updated_at = now() WHERE id = $2`,
		dateParam(next), id,
	)
	if err != nil {
		return fmt.Errorf("SetNextProfitDate: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetNextProfitDate: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetNextProfitDate: %w", domain.ErrNotFound)
	}
	return nil
}

func scanInvestment(s scanner) (*domain.Investment, error) {
	var inv domain.Investment
	err := s.Scan(
		&inv.ID, &inv.UserID, &inv.Amount, &inv.Level, &inv.ProfitRate, &inv.Status,
		&inv.NextProfitDate, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.NextProfitDate = inv.NextProfitDate.UTC()
	return &inv, nil
}
