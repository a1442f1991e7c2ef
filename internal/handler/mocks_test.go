package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/yield-ledger/internal/auth"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/service"
)

type mockDeposits struct{ mock.Mock }

func (m *mockDeposits) SubmitDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txHash string) (*domain.Deposit, error) {
	args := m.Called(ctx, userID, amount, txHash)
	d, _ := args.Get(0).(*domain.Deposit)
	return d, args.Error(1)
}

func (m *mockDeposits) GetDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*domain.Deposit)
	return d, args.Error(1)
}

func (m *mockDeposits) ConfirmDeposit(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*domain.Deposit)
	return d, args.Error(1)
}

func (m *mockDeposits) FailDeposit(ctx context.Context, id uuid.UUID, reason string) (*domain.Deposit, error) {
	args := m.Called(ctx, id, reason)
	d, _ := args.Get(0).(*domain.Deposit)
	return d, args.Error(1)
}

type mockWithdrawals struct{ mock.Mock }

func (m *mockWithdrawals) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, toAddress string) (*domain.Withdrawal, error) {
	args := m.Called(ctx, userID, amount, toAddress)
	w, _ := args.Get(0).(*domain.Withdrawal)
	return w, args.Error(1)
}

func (m *mockWithdrawals) GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	args := m.Called(ctx, id)
	w, _ := args.Get(0).(*domain.Withdrawal)
	return w, args.Error(1)
}

func (m *mockWithdrawals) ApproveWithdrawal(ctx context.Context, id uuid.UUID, txHash string) (*domain.Withdrawal, error) {
	args := m.Called(ctx, id, txHash)
	w, _ := args.Get(0).(*domain.Withdrawal)
	return w, args.Error(1)
}

func (m *mockWithdrawals) RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error) {
	args := m.Called(ctx, id, reason)
	w, _ := args.Get(0).(*domain.Withdrawal)
	return w, args.Error(1)
}

type mockInvestments struct{ mock.Mock }

func (m *mockInvestments) CreateInvestment(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, level int) (*domain.Investment, error) {
	args := m.Called(ctx, userID, amount, level)
	inv, _ := args.Get(0).(*domain.Investment)
	return inv, args.Error(1)
}

func (m *mockInvestments) GetInvestment(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*domain.Investment)
	return inv, args.Error(1)
}

type mockQueries struct{ mock.Mock }

func (m *mockQueries) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

func (m *mockQueries) ProfitHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.ProfitHistory, error) {
	args := m.Called(ctx, userID, limit, offset)
	h, _ := args.Get(0).(*service.ProfitHistory)
	return h, args.Error(1)
}

func (m *mockQueries) RunHistory(ctx context.Context, limit int) ([]domain.ProfitRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]domain.ProfitRun)
	return runs, args.Error(1)
}

func (m *mockQueries) VerifyAccount(ctx context.Context, userID uuid.UUID) (*domain.Reconciliation, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*domain.Reconciliation)
	return r, args.Error(1)
}

type mockRunner struct{ mock.Mock }

func (m *mockRunner) RunDaily(ctx context.Context) (*domain.ProfitRun, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*domain.ProfitRun)
	return r, args.Error(1)
}

func (m *mockRunner) ReconcileStaleRuns(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func decEq(s string) any {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

// newRequest builds a request authenticated as userID (uuid.Nil for none)
// with the {id} path value set.
func newRequest(method, target, body string, userID uuid.UUID, pathID string) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if userID != uuid.Nil {
		req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: userID, Role: auth.RoleUser}))
	}
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	return req
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) (APIResponse, map[string]any) {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}
