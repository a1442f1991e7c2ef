// Command profit-run performs one daily profit distribution and exits, for
// deployments that schedule the run with an external cron.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/josh-kwaku/yield-ledger/internal/config"
	"github.com/josh-kwaku/yield-ledger/internal/domain"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
	"github.com/josh-kwaku/yield-ledger/internal/service/profit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("yield-ledger-profit-run", cfg.LogLevel, cfg.AppEnv)
	os.Exit(run(cfg, logger))
}

func run(cfg *config.Config, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, cfg.DBConnectAttempts)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid profit timezone", "error", err)
		return 1
	}

	journal := repository.NewJournalRepository(db)
	engine := profit.NewEngine(
		repository.NewInvestmentRepository(db),
		journal,
		repository.NewProfitRunRepository(db),
		ledger.New(repository.NewAccountRepository(db), journal),
		db,
		logger,
		profit.Config{Location: loc, StaleRunTimeout: cfg.StaleRunTimeout},
	)

	if _, err := engine.ReconcileStaleRuns(ctx); err != nil {
		logger.Warn("stale run reconciliation failed", "error", err)
	}

	result, err := engine.RunDaily(ctx)
	switch {
	case errors.Is(err, domain.ErrAlreadyRun):
		logger.Info("profit run already completed for today", "run_date", engine.Today().Format("2006-01-02"))
		return 0
	case err != nil:
		logger.Error("profit run failed", "error", err)
		return 1
	}

	logger.Info("profit run finished",
		"run_id", result.ID,
		"status", result.Status,
		"credited", result.CreditedCount,
		"skipped", result.SkippedCount,
		"errors", len(result.Errors),
		"total_profit", result.TotalProfitDistributed,
	)
	if result.Status != domain.RunStatusCompleted {
		return 1
	}
	return 0
}
