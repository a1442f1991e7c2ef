package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type depositSettler interface {
	ConfirmDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error)
	FailDeposit(ctx context.Context, id uuid.UUID, reason string) (*domain.Deposit, error)
}

type depositAdmin interface {
	depositSettler
	GetDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error)
}

type withdrawalAdmin interface {
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, id uuid.UUID, txHash string) (*domain.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error)
}

type investmentLookup interface {
	GetInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
}

type profitRunner interface {
	RunDaily(ctx context.Context) (*domain.ProfitRun, error)
	ReconcileStaleRuns(ctx context.Context) ([]uuid.UUID, error)
}

type adminQueries interface {
	RunHistory(ctx context.Context, limit int) ([]domain.ProfitRun, error)
	VerifyAccount(ctx context.Context, userID uuid.UUID) (*domain.Reconciliation, error)
}

// AdminHandler serves operator routes. Operators may read any user's records.
type AdminHandler struct {
	deposits    depositAdmin
	withdrawals withdrawalAdmin
	investments investmentLookup
	runner      profitRunner
	queries     adminQueries
}

func NewAdminHandler(deposits depositAdmin, withdrawals withdrawalAdmin, investments investmentLookup, runner profitRunner, queries adminQueries) *AdminHandler {
	return &AdminHandler{
		deposits:    deposits,
		withdrawals: withdrawals,
		investments: investments,
		runner:      runner,
		queries:     queries,
	}
}

type approveWithdrawalRequest struct {
	TxHash string `json:"tx_hash" validate:"required,max=128"`
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type reconcileRunsResponse struct {
	Reconciled []uuid.UUID `json:"reconciled"`
}

func (h *AdminHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	d, err := h.deposits.GetDeposit(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toDepositResponse(d))
}

func (h *AdminHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	wd, err := h.withdrawals.GetWithdrawal(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toWithdrawalResponse(wd))
}

func (h *AdminHandler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	inv, err := h.investments.GetInvestment(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toInvestmentResponse(inv))
}

func (h *AdminHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	d, err := h.deposits.ConfirmDeposit(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("deposit confirmed by admin", "deposit_id", d.ID, "amount", d.Amount)
	RespondSuccess(w, http.StatusOK, toDepositResponse(d))
}

func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req approveWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	wd, err := h.withdrawals.ApproveWithdrawal(r.Context(), id, req.TxHash)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawalResponse(wd))
}

func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req rejectWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	wd, err := h.withdrawals.RejectWithdrawal(r.Context(), id, req.Reason)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawalResponse(wd))
}

// TriggerProfitRun runs today's distribution synchronously. The run outlives
// a disconnected client so it always reaches a final status.
func (h *AdminHandler) TriggerProfitRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.RunDaily(context.WithoutCancel(r.Context()))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toProfitRunResponse(run))
}

func (h *AdminHandler) ListProfitRuns(w http.ResponseWriter, r *http.Request) {
	limit, fieldErr := queryInt(r, "limit", 0)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}

	runs, err := h.queries.RunHistory(r.Context(), limit)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	out := make([]profitRunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toProfitRunResponse(&runs[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *AdminHandler) ReconcileProfitRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := h.runner.ReconcileStaleRuns(r.Context())
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	RespondSuccess(w, http.StatusOK, reconcileRunsResponse{Reconciled: ids})
}

func (h *AdminHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.queries.VerifyAccount(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	if !rec.Balanced() {
		logging.FromContext(r.Context()).Warn("account drift detected",
			"user_id", userID,
			"balance_drift", rec.BalanceDrift(),
			"invested_drift", rec.InvestedDrift(),
		)
	}
	RespondSuccess(w, http.StatusOK, toReconciliationResponse(rec))
}
