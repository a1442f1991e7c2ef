package profit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
)

const profitScale = 8

var hundred = decimal.NewFromInt(100)

// DailyProfit is one day of simple interest on principal at rate percent.
func DailyProfit(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Mul(rate).Div(hundred).Round(profitScale)
}

// distribute credits a single investment for today in its own transaction.
// It reports credited=false, with no error, when the investment turned out
// not to be owed anything.
func (e *Engine) distribute(ctx context.Context, inv domain.Investment, today time.Time) (decimal.Decimal, bool, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, false, domain.Persistence("distribute: begin tx", err)
	}
	defer tx.Rollback()

	locked, err := e.investments.GetForUpdate(ctx, tx, inv.ID)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("distribute: %w", err)
	}
	if !locked.DueOn(today) {
		return decimal.Zero, false, nil
	}

	exists, err := e.journal.ProfitExists(ctx, tx, locked.ID, today)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("distribute: %w", err)
	}
	if exists {
		return decimal.Zero, false, nil
	}

	principal, err := e.journal.OriginalPrincipal(ctx, tx, locked.ID)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("distribute: principal: %w", err)
	}

	profit := DailyProfit(principal, locked.ProfitRate)
	if !profit.IsPositive() {
		return decimal.Zero, false, nil
	}

	profitDate := today
	if _, _, err := e.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        locked.UserID,
		Type:          domain.TransactionTypeProfit,
		Amount:        profit,
		Credit:        domain.FieldBalance | domain.FieldAvailable,
		ReferenceType: domain.ReferenceTypeInvestment,
		ReferenceID:   locked.ID,
		Description:   fmt.Sprintf("daily profit %s%% on %s", locked.ProfitRate, principal),
		ProfitDate:    &profitDate,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("distribute: %w", err)
	}

	if err := e.investments.SetNextProfitDate(ctx, tx, locked.ID, locked.NextProfitDate.AddDate(0, 0, 1)); err != nil {
		return decimal.Zero, false, fmt.Errorf("distribute: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, false, domain.Persistence("distribute: commit", err)
	}
	return profit, true, nil
}
