package main

import (
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/yield-ledger/api"
	"github.com/josh-kwaku/yield-ledger/internal/auth"
	"github.com/josh-kwaku/yield-ledger/internal/config"
	"github.com/josh-kwaku/yield-ledger/internal/handler"
	"github.com/josh-kwaku/yield-ledger/internal/middleware"
)

type middlewareFunc func(http.Handler) http.Handler

// chain applies mws so the first one listed is outermost.
func chain(h http.Handler, mws ...middlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *app) routes(cfg *config.Config, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	health := handler.NewHealthHandler(a.db, a.redis)
	accounts := handler.NewAccountHandler(a.queries)
	users := handler.NewUserHandler(a.deposits, a.withdrawals, a.investments)
	admin := handler.NewAdminHandler(a.deposits, a.withdrawals, a.investments, a.engine, a.queries)
	webhooks := handler.NewWebhookHandler(a.deposits, cfg.WebhookSecret)

	authenticate := middleware.Auth(cfg.JWTSecret)
	requireAdmin := middleware.RequireRole(auth.RoleAdmin)
	idempotent := middleware.Idempotency(a.idempotency)

	authed := []middlewareFunc{authenticate}
	mutating := []middlewareFunc{authenticate, idempotent}
	adminOnly := []middlewareFunc{authenticate, requireAdmin}
	adminMutating := []middlewareFunc{authenticate, requireAdmin, idempotent}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.HandleFunc("GET /docs", handler.ServeDocs())
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.OpenAPISpec))

	mux.HandleFunc("POST /api/v1/webhooks/deposits", webhooks.ReceiveDepositWebhook)

	mux.Handle("GET /api/v1/users/{id}/balance", chain(http.HandlerFunc(accounts.GetBalance), authed...))
	mux.Handle("GET /api/v1/users/{id}/profits", chain(http.HandlerFunc(accounts.ListProfits), authed...))
	mux.Handle("POST /api/v1/users/{id}/deposits", chain(http.HandlerFunc(users.SubmitDeposit), mutating...))
	mux.Handle("POST /api/v1/users/{id}/withdrawals", chain(http.HandlerFunc(users.RequestWithdrawal), mutating...))
	mux.Handle("POST /api/v1/users/{id}/investments", chain(http.HandlerFunc(users.CreateInvestment), mutating...))

	mux.Handle("GET /api/v1/admin/deposits/{id}", chain(http.HandlerFunc(admin.GetDeposit), adminOnly...))
	mux.Handle("GET /api/v1/admin/withdrawals/{id}", chain(http.HandlerFunc(admin.GetWithdrawal), adminOnly...))
	mux.Handle("GET /api/v1/admin/investments/{id}", chain(http.HandlerFunc(admin.GetInvestment), adminOnly...))
	mux.Handle("POST /api/v1/admin/deposits/{id}/confirm", chain(http.HandlerFunc(admin.ConfirmDeposit), adminMutating...))
	mux.Handle("POST /api/v1/admin/withdrawals/{id}/approve", chain(http.HandlerFunc(admin.ApproveWithdrawal), adminMutating...))
	mux.Handle("POST /api/v1/admin/withdrawals/{id}/reject", chain(http.HandlerFunc(admin.RejectWithdrawal), adminMutating...))
	mux.Handle("POST /api/v1/admin/profit-runs", chain(http.HandlerFunc(admin.TriggerProfitRun), adminOnly...))
	mux.Handle("GET /api/v1/admin/profit-runs", chain(http.HandlerFunc(admin.ListProfitRuns), adminOnly...))
	mux.Handle("POST /api/v1/admin/profit-runs/reconcile", chain(http.HandlerFunc(admin.ReconcileProfitRuns), adminOnly...))
	mux.Handle("GET /api/v1/admin/users/{id}/reconciliation", chain(http.HandlerFunc(admin.VerifyAccount), adminOnly...))

	return chain(mux,
		middleware.Tracing,
		middleware.Logging(logger),
		middleware.Recovery,
		limiter.Middleware,
	)
}
