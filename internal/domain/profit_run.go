package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RunType string

const RunTypeDaily RunType = "daily"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
)

// RunError is one failure recorded on a run. Run-level failures carry no
// investment or user.
type RunError struct {
	InvestmentID *uuid.UUID `json:"investment_id,omitempty"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Message      string     `json:"message"`
}

// ProfitRun is the audit record of one distribution batch attempt.
type ProfitRun struct {
	ID                     uuid.UUID
	RunType                RunType
	RunDate                time.Time
	IdempotencyKey         string
	Status                 RunStatus
	TotalInvestments       int
	CreditedCount          int
	SkippedCount           int
	UsersCredited          int
	TotalProfitDistributed decimal.Decimal
	Errors                 []RunError
	StartedAt              time.Time
	CompletedAt            *time.Time
}

// Reconciliation compares the cached account aggregates with what the
// journal and the active investments say they should be.
type Reconciliation struct {
	UserID                 uuid.UUID
	Balance                decimal.Decimal
	JournalNet             decimal.Decimal
	InvestedBalance        decimal.Decimal
	ActivePrincipal        decimal.Decimal
	BalanceSplitConsistent bool
}

func (r *Reconciliation) BalanceDrift() decimal.Decimal {
	return r.Balance.Sub(r.JournalNet)
}

func (r *Reconciliation) InvestedDrift() decimal.Decimal {
	return r.InvestedBalance.Sub(r.ActivePrincipal)
}

func (r *Reconciliation) Balanced() bool {
	return r.BalanceSplitConsistent && r.BalanceDrift().IsZero() && r.InvestedDrift().IsZero()
}
