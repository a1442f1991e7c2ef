package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type InvestmentService struct {
	investments investmentRepository
	users       userRepository
	ledger      poster
	db          *sql.DB
	rates       map[int]decimal.Decimal
	loc         *time.Location
	now         func() time.Time
}

// NewInvestmentService takes the daily profit rate, in percent, for each
// level and the zone whose calendar decides profit days.
func NewInvestmentService(
	investments investmentRepository,
	users userRepository,
	l poster,
	db *sql.DB,
	rates map[int]decimal.Decimal,
	loc *time.Location,
) *InvestmentService {
	return &InvestmentService{
		investments: investments,
		users:       users,
		ledger:      l,
		db:          db,
		rates:       rates,
		loc:         loc,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvestment locks amount out of the available balance. The journal
// entry it writes is the principal every later profit credit is computed from.
func (s *InvestmentService) CreateInvestment(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, level int) (*domain.Investment, error) {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("CreateInvestment: %w", domain.ErrInvalidAmount)
	}
	rate, ok := s.rates[level]
	if !ok {
		return nil, fmt.Errorf("CreateInvestment: level %d: %w", level, domain.ErrUnknownLevel)
	}

	if _, err := activeUser(ctx, s.users, userID); err != nil {
		return nil, fmt.Errorf("CreateInvestment: %w", err)
	}

	now := s.now()
	inv := &domain.Investment{
		ID:             uuid.New(),
		UserID:         userID,
		Amount:         amount,
		Level:          level,
		ProfitRate:     rate,
		Status:         domain.InvestmentStatusActive,
		NextProfitDate: domain.CivilDate(now, s.loc).AddDate(0, 0, 1),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("CreateInvestment: begin tx", err)
	}
	defer tx.Rollback()

	if _, _, err := s.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        userID,
		Type:          domain.TransactionTypeInvestment,
		Amount:        amount,
		Debit:         domain.FieldAvailable,
		Credit:        domain.FieldInvested,
		ReferenceType: domain.ReferenceTypeInvestment,
		ReferenceID:   inv.ID,
		Description:   fmt.Sprintf("level %d investment at %s%% daily", level, rate),
	}); err != nil {
		return nil, fmt.Errorf("CreateInvestment: %w", err)
	}

	if err := s.investments.Create(ctx, tx, inv); err != nil {
		return nil, fmt.Errorf("CreateInvestment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("CreateInvestment: commit", err)
	}

	log.Info("investment created",
		"investment_id", inv.ID,
		"user_id", userID,
		"amount", amount,
		"level", level,
		"profit_rate", rate,
		"next_profit_date", inv.NextProfitDate.Format(time.DateOnly),
	)
	return inv, nil
}

func (s *InvestmentService) GetInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	inv, err := s.investments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetInvestment: %w", err)
	}
	return inv, nil
}
