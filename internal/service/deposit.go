package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type DepositService struct {
	deposits depositRepository
	users    userRepository
	ledger   poster
	db       *sql.DB
	now      func() time.Time
}

func NewDepositService(deposits depositRepository, users userRepository, l poster, db *sql.DB) *DepositService {
	return &DepositService{
		deposits: deposits,
		users:    users,
		ledger:   l,
		db:       db,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitDeposit records a pending deposit awaiting chain confirmation. No
// balance moves until ConfirmDeposit.
func (s *DepositService) SubmitDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txHash string) (*domain.Deposit, error) {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("SubmitDeposit: %w", domain.ErrInvalidAmount)
	}
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("SubmitDeposit: tx hash required: %w", domain.ErrInvalidRequest)
	}

	if _, err := activeUser(ctx, s.users, userID); err != nil {
		return nil, fmt.Errorf("SubmitDeposit: %w", err)
	}

	d := &domain.Deposit{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		TxHash:    txHash,
		Status:    domain.DepositStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.deposits.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("SubmitDeposit: %w", err)
	}

	log.Info("deposit submitted", "deposit_id", d.ID, "user_id", userID, "amount", amount)
	return d, nil
}

func (s *DepositService) GetDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	d, err := s.deposits.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetDeposit: %w", err)
	}
	return d, nil
}

// ConfirmDeposit settles a pending deposit and credits the user exactly once.
func (s *DepositService) ConfirmDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("ConfirmDeposit: begin tx", err)
	}
	defer tx.Rollback()

	d, err := s.deposits.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}
	if d.Status != domain.DepositStatusPending {
		return nil, fmt.Errorf("ConfirmDeposit: deposit is %s: %w", d.Status, domain.ErrAlreadySettled)
	}

	now := s.now()
	if err := s.deposits.MarkConfirmed(ctx, tx, d.ID, now); err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}

	entry, acct, err := s.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        d.UserID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        d.Amount,
		Credit:        domain.FieldBalance | domain.FieldAvailable,
		ReferenceType: domain.ReferenceTypeDeposit,
		ReferenceID:   d.ID,
		Description:   fmt.Sprintf("deposit %s confirmed", d.TxHash),
	})
	if err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("ConfirmDeposit: commit", err)
	}

	d.Status = domain.DepositStatusConfirmed
	d.ConfirmedAt = &now

	log.Info("deposit confirmed",
		"deposit_id", d.ID,
		"user_id", d.UserID,
		"amount", d.Amount,
		"journal_entry_id", entry.ID,
		"balance_after", acct.Balance,
	)
	return d, nil
}

// FailDeposit closes a pending deposit without touching any balance.
func (s *DepositService) FailDeposit(ctx context.Context, id uuid.UUID, reason string) (*domain.Deposit, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("FailDeposit: begin tx", err)
	}
	defer tx.Rollback()

	d, err := s.deposits.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("FailDeposit: %w", err)
	}
	if d.Status != domain.DepositStatusPending {
		return nil, fmt.Errorf("FailDeposit: deposit is %s: %w", d.Status, domain.ErrAlreadySettled)
	}

	if err := s.deposits.MarkFailed(ctx, tx, d.ID, reason); err != nil {
		return nil, fmt.Errorf("FailDeposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("FailDeposit: commit", err)
	}

	d.Status = domain.DepositStatusFailed
	d.FailureReason = &reason

	log.Info("deposit failed", "deposit_id", d.ID, "user_id", d.UserID, "reason", reason)
	return d, nil
}
