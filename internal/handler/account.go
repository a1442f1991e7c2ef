package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/service"
)

const (
	defaultProfitPageSize = 50
	maxProfitPageSize     = 200
)

type accountQueries interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	ProfitHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.ProfitHistory, error)
}

type AccountHandler struct {
	queries accountQueries
}

func NewAccountHandler(queries accountQueries) *AccountHandler {
	return &AccountHandler{queries: queries}
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	acct, err := h.queries.GetBalance(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toBalanceResponse(acct))
}

func (h *AccountHandler) ListProfits(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, fieldErr := queryInt(r, "limit", defaultProfitPageSize)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}
	offset, fieldErr := queryInt(r, "offset", 0)
	if fieldErr != nil {
		RespondValidationError(w, []FieldError{*fieldErr})
		return
	}
	if limit == 0 {
		limit = defaultProfitPageSize
	}
	limit = min(limit, maxProfitPageSize)

	history, err := h.queries.ProfitHistory(r.Context(), userID, limit, offset)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	entries := make([]journalEntryResponse, 0, len(history.Entries))
	for _, e := range history.Entries {
		entries = append(entries, toJournalEntryResponse(e))
	}

	RespondSuccess(w, http.StatusOK, profitHistoryResponse{
		Entries:     entries,
		Total:       history.Total,
		TotalProfit: history.TotalProfit,
		Limit:       limit,
		Offset:      offset,
	})
}
