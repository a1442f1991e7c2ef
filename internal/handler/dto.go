package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
)

const dateLayout = "2006-01-02"

type balanceResponse struct {
	UserID           uuid.UUID       `json:"user_id"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	InvestedBalance  decimal.Decimal `json:"invested_balance"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

func toBalanceResponse(a *domain.Account) balanceResponse {
	resp := balanceResponse{
		UserID:           a.UserID,
		Balance:          a.Balance,
		AvailableBalance: a.AvailableBalance,
		InvestedBalance:  a.InvestedBalance,
	}
	if !a.UpdatedAt.IsZero() {
		resp.UpdatedAt = &a.UpdatedAt
	}
	return resp
}

type journalEntryResponse struct {
	ID              uuid.UUID       `json:"id"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     uuid.UUID       `json:"reference_id"`
	Description     string          `json:"description"`
	ProfitDate      string          `json:"profit_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toJournalEntryResponse(e domain.JournalEntry) journalEntryResponse {
	resp := journalEntryResponse{
		ID:              e.ID,
		TransactionType: string(e.TransactionType),
		Amount:          e.Amount,
		BalanceBefore:   e.BalanceBefore,
		BalanceAfter:    e.BalanceAfter,
		ReferenceType:   string(e.ReferenceType),
		ReferenceID:     e.ReferenceID,
		Description:     e.Description,
		CreatedAt:       e.CreatedAt,
	}
	if e.ProfitDate != nil {
		resp.ProfitDate = e.ProfitDate.Format(dateLayout)
	}
	return resp
}

type profitHistoryResponse struct {
	Entries     []journalEntryResponse `json:"entries"`
	Total       int                    `json:"total"`
	TotalProfit decimal.Decimal        `json:"total_profit"`
	Limit       int                    `json:"limit"`
	Offset      int                    `json:"offset"`
}

type depositResponse struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	TxHash        string          `json:"tx_hash"`
	Status        string          `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

func toDepositResponse(d *domain.Deposit) depositResponse {
	return depositResponse{
		ID:            d.ID,
		UserID:        d.UserID,
		Amount:        d.Amount,
		TxHash:        d.TxHash,
		Status:        string(d.Status),
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
		ConfirmedAt:   d.ConfirmedAt,
	}
}

type withdrawalResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	ToAddress       string          `json:"to_address"`
	Status          string          `json:"status"`
	TxHash          *string         `json:"tx_hash,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
}

func toWithdrawalResponse(w *domain.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		Amount:          w.Amount,
		ToAddress:       w.ToAddress,
		Status:          string(w.Status),
		TxHash:          w.TxHash,
		RejectionReason: w.RejectionReason,
		CreatedAt:       w.CreatedAt,
		ProcessedAt:     w.ProcessedAt,
	}
}

type investmentResponse struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Level          int             `json:"level"`
	ProfitRate     decimal.Decimal `json:"profit_rate"`
	Status         string          `json:"status"`
	NextProfitDate string          `json:"next_profit_date"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toInvestmentResponse(i *domain.Investment) investmentResponse {
	return investmentResponse{
		ID:             i.ID,
		UserID:         i.UserID,
		Amount:         i.Amount,
		Level:          i.Level,
		ProfitRate:     i.ProfitRate,
		Status:         string(i.Status),
		NextProfitDate: i.NextProfitDate.Format(dateLayout),
		CreatedAt:      i.CreatedAt,
	}
}

type profitRunResponse struct {
	ID                     uuid.UUID         `json:"id"`
	RunType                string            `json:"run_type"`
	RunDate                string            `json:"run_date"`
	IdempotencyKey         string            `json:"idempotency_key"`
	Status                 string            `json:"status"`
	TotalInvestments       int               `json:"total_investments"`
	CreditedCount          int               `json:"credited_count"`
	SkippedCount           int               `json:"skipped_count"`
	UsersCredited          int               `json:"users_credited"`
	TotalProfitDistributed decimal.Decimal   `json:"total_profit_distributed"`
	Errors                 []domain.RunError `json:"errors"`
	StartedAt              time.Time         `json:"started_at"`
	CompletedAt            *time.Time        `json:"completed_at,omitempty"`
}

func toProfitRunResponse(r *domain.ProfitRun) profitRunResponse {
	errs := r.Errors
	if errs == nil {
		errs = []domain.RunError{}
	}
	return profitRunResponse{
		ID:                     r.ID,
		RunType:                string(r.RunType),
		RunDate:                r.RunDate.Format(dateLayout),
		IdempotencyKey:         r.IdempotencyKey,
		Status:                 string(r.Status),
		TotalInvestments:       r.TotalInvestments,
		CreditedCount:          r.CreditedCount,
		SkippedCount:           r.SkippedCount,
		UsersCredited:          r.UsersCredited,
		TotalProfitDistributed: r.TotalProfitDistributed,
		Errors:                 errs,
		StartedAt:              r.StartedAt,
		CompletedAt:            r.CompletedAt,
	}
}

type reconciliationResponse struct {
	UserID          uuid.UUID       `json:"user_id"`
	Balanced        bool            `json:"balanced"`
	Balance         decimal.Decimal `json:"balance"`
	JournalNet      decimal.Decimal `json:"journal_net"`
	BalanceDrift    decimal.Decimal `json:"balance_drift"`
	InvestedBalance decimal.Decimal `json:"invested_balance"`
	ActivePrincipal decimal.Decimal `json:"active_principal"`
	InvestedDrift   decimal.Decimal `json:"invested_drift"`
	SplitConsistent bool            `json:"split_consistent"`
}

func toReconciliationResponse(r *domain.Reconciliation) reconciliationResponse {
	return reconciliationResponse{
		UserID:          r.UserID,
		Balanced:        r.Balanced(),
		Balance:         r.Balance,
		JournalNet:      r.JournalNet,
		BalanceDrift:    r.BalanceDrift(),
		InvestedBalance: r.InvestedBalance,
		ActivePrincipal: r.ActivePrincipal,
		InvestedDrift:   r.InvestedDrift(),
		SplitConsistent: r.BalanceSplitConsistent,
	}
}
