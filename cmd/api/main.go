package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/config"
	"github.com/lucas-garnier/ledgerbank/internal/handler"
	"github.com/lucas-garnier/ledgerbank/internal/logging"
	"github.com/lucas-garnier/ledgerbank/internal/middleware"
	"github.com/lucas-garnier/ledgerbank/internal/namematch"
	"github.com/lucas-garnier/ledgerbank/internal/repository"
	"github.com/lucas-garnier/ledgerbank/internal/service"
	"github.com/lucas-garnier/ledgerbank/internal/service/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("ledgerbank-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.System()

	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	scheduledRepo := repository.NewScheduledTransferRepository(db)

	verifier := namematch.NewVerifier()
	transferSvc := transfer.NewService(accountRepo, userRepo, ledgerRepo, scheduledRepo, verifier, db, clk)
	accountSvc := service.NewAccountService(accountRepo, ledgerRepo, userRepo, db, clk)

	processor := service.NewScheduledTransferProcessor(
		transferSvc,
		clk,
		slog.Default().With("component", "scheduler"),
		cfg.SchedulerInterval(),
		cfg.SchedulerBatchSize,
	)

	procCtx, stopProcessor := context.WithCancel(context.Background())
	go processor.Start(procCtx)

	authHandler := handler.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.JWTExpiry())
	accountHandler := handler.NewAccountHandler(accountSvc)
	transferHandler := handler.NewTransferHandler(transferSvc)

	mux := buildMux(cfg.JWTSecret, authHandler, accountHandler, transferHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func buildMux(
	jwtSecret string,
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	transferHandler *handler.TransferHandler,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Middleware run after mux dispatch so the matched route pattern is
	// available for metric labels.
	public := func(h http.HandlerFunc) http.Handler {
		return chain(h,
			middleware.Recovery,
			middleware.Tracing,
			middleware.Metrics,
			middleware.Logging,
		)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return chain(h,
			middleware.Recovery,
			middleware.Tracing,
			middleware.Metrics,
			middleware.Auth(jwtSecret),
			middleware.Logging,
		)
	}

	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/v1/auth/register", public(authHandler.Register))
	mux.Handle("POST /api/v1/auth/login", public(authHandler.Login))

	mux.Handle("POST /api/v1/accounts", protected(accountHandler.Create))
	mux.Handle("GET /api/v1/accounts", protected(accountHandler.List))
	mux.Handle("GET /api/v1/accounts/{id}/entries", protected(accountHandler.Entries))
	mux.Handle("GET /api/v1/accounts/{id}/statement", protected(accountHandler.Statement))
	mux.Handle("POST /api/v1/accounts/{id}/deposit", protected(accountHandler.Deposit))
	mux.Handle("POST /api/v1/accounts/{id}/withdraw", protected(accountHandler.Withdraw))
	mux.Handle("DELETE /api/v1/accounts/{id}", protected(accountHandler.Close))

	mux.Handle("POST /api/v1/transfers", protected(transferHandler.Create))
	mux.Handle("GET /api/v1/transfers/{id}", protected(transferHandler.Get))
	mux.Handle("POST /api/v1/scheduled-transfers", protected(transferHandler.Schedule))
	mux.Handle("GET /api/v1/scheduled-transfers", protected(transferHandler.ListScheduled))
	mux.Handle("DELETE /api/v1/scheduled-transfers/{id}", protected(transferHandler.CancelScheduled))

	return mux
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
