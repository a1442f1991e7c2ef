package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
)

type depositSubmitter interface {
	SubmitDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txHash string) (*domain.Deposit, error)
}

type withdrawalRequester interface {
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, toAddress string) (*domain.Withdrawal, error)
}

type investmentCreator interface {
	CreateInvestment(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, level int) (*domain.Investment, error)
}

// UserHandler serves the owner-scoped mutations on /users/{id}.
type UserHandler struct {
	deposits    depositSubmitter
	withdrawals withdrawalRequester
	investments investmentCreator
}

func NewUserHandler(deposits depositSubmitter, withdrawals withdrawalRequester, investments investmentCreator) *UserHandler {
	return &UserHandler{deposits: deposits, withdrawals: withdrawals, investments: investments}
}

type submitDepositRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	TxHash string `json:"tx_hash" validate:"required,max=128"`
}

type requestWithdrawalRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	ToAddress string `json:"to_address" validate:"required,max=128"`
}

type createInvestmentRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Level  int    `json:"level" validate:"required,min=1"`
}

func (h *UserHandler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req submitDepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, fieldErr := parseAmount("amount", req.Amount)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}

	d, err := h.deposits.SubmitDeposit(r.Context(), userID, amount, req.TxHash)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("deposit submitted", "deposit_id", d.ID, "user_id", userID)
	RespondSuccess(w, http.StatusCreated, toDepositResponse(d))
}

func (h *UserHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req requestWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, fieldErr := parseAmount("amount", req.Amount)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}

	wd, err := h.withdrawals.RequestWithdrawal(r.Context(), userID, amount, req.ToAddress)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toWithdrawalResponse(wd))
}

func (h *UserHandler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createInvestmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, fieldErr := parseAmount("amount", req.Amount)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}

	inv, err := h.investments.CreateInvestment(r.Context(), userID, amount, req.Level)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toInvestmentResponse(inv))
}
