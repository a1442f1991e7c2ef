package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceField selects which of the three account aggregates a movement touches.
type BalanceField uint8

const (
	FieldBalance BalanceField = 1 << iota
	FieldAvailable
	FieldInvested
)

func (f BalanceField) Has(other BalanceField) bool {
	return f&other != 0
}

type Account struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
	InvestedBalance  decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Consistent reports whether balance equals available plus invested.
func (a *Account) Consistent() bool {
	return a.Balance.Equal(a.AvailableBalance.Add(a.InvestedBalance))
}

func (a *Account) Credit(amount decimal.Decimal, fields BalanceField) {
	if fields.Has(FieldBalance) {
		a.Balance = a.Balance.Add(amount)
	}
	if fields.Has(FieldAvailable) {
		a.AvailableBalance = a.AvailableBalance.Add(amount)
	}
	if fields.Has(FieldInvested) {
		a.InvestedBalance = a.InvestedBalance.Add(amount)
	}
}

// Debit subtracts amount from every selected field. Nothing changes when any
// selected field would go negative.
func (a *Account) Debit(amount decimal.Decimal, fields BalanceField) error {
	next := *a
	next.Credit(amount.Neg(), fields)
	if next.Balance.IsNegative() || next.AvailableBalance.IsNegative() || next.InvestedBalance.IsNegative() {
		return ErrInsufficientFunds
	}
	*a = next
	return nil
}
