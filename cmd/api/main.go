package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/yield-ledger/internal/config"
	"github.com/josh-kwaku/yield-ledger/internal/ledger"
	"github.com/josh-kwaku/yield-ledger/internal/logging"
	"github.com/josh-kwaku/yield-ledger/internal/middleware"
	"github.com/josh-kwaku/yield-ledger/internal/repository"
	"github.com/josh-kwaku/yield-ledger/internal/runlock"
	"github.com/josh-kwaku/yield-ledger/internal/service"
	"github.com/josh-kwaku/yield-ledger/internal/service/profit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("yield-ledger-api", cfg.LogLevel, cfg.AppEnv)

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, cfg.DBConnectAttempts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, locker, err := connectLocker(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	rates, err := cfg.LevelRates()
	if err != nil {
		return err
	}

	a := newApp(db, rdb, cfg, loc, rates, logger)

	if cfg.SchedulerEnabled {
		scheduler := service.NewScheduler(a.engine, locker, a.idempotency, logger.With("component", "scheduler"), service.SchedulerConfig{
			Interval: cfg.SchedulerEvery,
			RunHour:  cfg.ProfitRunHour,
			Location: loc,
		})
		go scheduler.Start(ctx)
	} else {
		logger.Info("profit scheduler disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(cfg, limiter, logger),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "profit_timezone", loc.String(), "profit_run_hour", cfg.ProfitRunHour)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// connectLocker returns a nil client and the no-op locker when REDIS_URL is
// unset, which is only safe with a single scheduler instance.
func connectLocker(ctx context.Context, url string, logger *slog.Logger) (*redis.Client, runlock.Locker, error) {
	if url == "" {
		logger.Warn("REDIS_URL not set; profit run lock is process-local")
		return nil, runlock.Noop{}, nil
	}
	rdb, err := runlock.NewRedisClient(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, runlock.NewRedisLocker(rdb), nil
}

type app struct {
	db          *sql.DB
	redis       *redis.Client
	deposits    *service.DepositService
	withdrawals *service.WithdrawalService
	investments *service.InvestmentService
	queries     *service.QueryService
	engine      *profit.Engine
	idempotency *repository.IdempotencyRepository
}

func newApp(db *sql.DB, rdb *redis.Client, cfg *config.Config, loc *time.Location, rates map[int]decimal.Decimal, logger *slog.Logger) *app {
	users := repository.NewUserRepository(db)
	accounts := repository.NewAccountRepository(db)
	journal := repository.NewJournalRepository(db)
	deposits := repository.NewDepositRepository(db)
	withdrawals := repository.NewWithdrawalRepository(db)
	investments := repository.NewInvestmentRepository(db)
	runs := repository.NewProfitRunRepository(db)

	l := ledger.New(accounts, journal)

	return &app{
		db:          db,
		redis:       rdb,
		deposits:    service.NewDepositService(deposits, users, l, db),
		withdrawals: service.NewWithdrawalService(withdrawals, users, l, db),
		investments: service.NewInvestmentService(investments, users, l, db, rates, loc),
		queries:     service.NewQueryService(accounts, users, journal, runs),
		engine: profit.NewEngine(investments, journal, runs, l, db, logger.With("component", "profit_engine"), profit.Config{
			Location:        loc,
			StaleRunTimeout: cfg.StaleRunTimeout,
		}),
		idempotency: repository.NewIdempotencyRepository(db),
	}
}
