package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const (
	DefaultRunHistoryLimit = 30
	MaxRunHistoryLimit     = 365
)

// QueryService serves the read projections. It never writes.
type QueryService struct {
	accounts accountRepository
	users    userRepository
	journal  journalRepository
	runs     profitRunRepository
}

func NewQueryService(accounts accountRepository, users userRepository, journal journalRepository, runs profitRunRepository) *QueryService {
	return &QueryService{accounts: accounts, users: users, journal: journal, runs: runs}
}

// GetBalance returns the user's account. A user who has never had a
// balance-affecting event gets a zero account rather than ErrNotFound.
func (s *QueryService) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	acct, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.Account{UserID: userID}, nil
		}
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	return acct, nil
}

type ProfitHistory struct {
	Entries     []domain.JournalEntry
	Total       int
	TotalProfit decimal.Decimal
}

func (s *QueryService) ProfitHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*ProfitHistory, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("ProfitHistory: %w", err)
	}

	entries, total, err := s.journal.ListByUser(ctx, userID, domain.TransactionTypeProfit, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ProfitHistory: %w", err)
	}

	sum, err := s.journal.Sum(ctx, userID, domain.TransactionTypeProfit, nil)
	if err != nil {
		return nil, fmt.Errorf("ProfitHistory: %w", err)
	}

	return &ProfitHistory{Entries: entries, Total: total, TotalProfit: sum}, nil
}

// RunHistory returns daily runs newest first. limit is clamped to
// [1, MaxRunHistoryLimit]; zero or less means the default.
func (s *QueryService) RunHistory(ctx context.Context, limit int) ([]domain.ProfitRun, error) {
	runs, err := s.runs.History(ctx, ClampRunHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("RunHistory: %w", err)
	}
	return runs, nil
}

func ClampRunHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRunHistoryLimit
	case limit > MaxRunHistoryLimit:
		return MaxRunHistoryLimit
	default:
		return limit
	}
}

// VerifyAccount recomputes the account aggregates from the journal and the
// active investments and reports any drift.
func (s *QueryService) VerifyAccount(ctx context.Context, userID uuid.UUID) (*domain.Reconciliation, error) {
	acct, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("VerifyAccount: %w", err)
	}

	net, err := s.journal.NetEffect(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("VerifyAccount: %w", err)
	}

	principal, err := s.journal.ActivePrincipal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("VerifyAccount: %w", err)
	}

	return &domain.Reconciliation{
		UserID:                 userID,
		Balance:                acct.Balance,
		JournalNet:             net,
		InvestedBalance:        acct.InvestedBalance,
		ActivePrincipal:        principal,
		BalanceSplitConsistent: acct.Consistent(),
	}, nil
}
