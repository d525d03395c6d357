package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/saldo-id/saldo/internal/ap"
	"github.com/saldo-id/saldo/internal/app"
	"github.com/saldo-id/saldo/internal/ar"
	"github.com/saldo-id/saldo/internal/assistant"
	"github.com/saldo-id/saldo/internal/audit"
	"github.com/saldo-id/saldo/internal/auth"
	"github.com/saldo-id/saldo/internal/compliance"
	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/periods"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/customers"
	"github.com/saldo-id/saldo/internal/masterdata/vendors"
	"github.com/saldo-id/saldo/internal/platform/db"
	"github.com/saldo-id/saldo/internal/reports"
	"github.com/saldo-id/saldo/internal/shared"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionStore(redisClient, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	accountsSvc := accounts.NewService(accounts.NewRepository(pool))
	journalsSvc := journals.NewService(journals.NewRepository(pool), auditLogger, idempotency)
	vendorsSvc := vendors.NewService(vendors.NewRepository(pool))
	customersSvc := customers.NewService(customers.NewRepository(pool))
	banksSvc := banks.NewService(banks.NewRepository(pool), accountsSvc)

	apSvc := ap.NewService(ap.NewRepository(pool), journalsSvc, vendorsSvc, banksSvc, auditLogger)
	arSvc := ar.NewService(ar.NewRepository(pool), journalsSvc, customersSvc, banksSvc, auditLogger)

	complianceSvc := compliance.NewService(compliance.NewRepository(pool), auditLogger, logger).
		WithThreshold(cfg.LargePaymentThreshold)
	periodsSvc := periods.NewService(periods.NewRepository(pool), complianceSvc, auditLogger)

	oracle := assistant.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	assistantSvc := assistant.NewService(assistant.NewRepository(pool), oracle, journalsSvc, accountsSvc, auditLogger, logger)

	reportsSvc := reports.NewService(reports.NewRepository(pool), apSvc, arSvc)
	authSvc := auth.NewService(auth.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Sessions: sessions,

		AuthHandler:       auth.NewHandler(logger, authSvc, sessions),
		AccountsHandler:   accounts.NewHandler(logger, accountsSvc),
		JournalsHandler:   journals.NewHandler(logger, journalsSvc),
		PeriodsHandler:    periods.NewHandler(logger, periodsSvc),
		VendorsHandler:    vendors.NewHandler(logger, vendorsSvc),
		CustomersHandler:  customers.NewHandler(logger, customersSvc),
		BanksHandler:      banks.NewHandler(logger, banksSvc),
		APHandler:         ap.NewHandler(logger, apSvc),
		ARHandler:         ar.NewHandler(logger, arSvc),
		ComplianceHandler: compliance.NewHandler(logger, complianceSvc),
		AssistantHandler:  assistant.NewHandler(logger, assistantSvc),
		AuditHandler:      audit.NewHandler(logger, audit.NewRepository(pool)),
		ReportsHandler:    reports.NewHandler(logger, reportsSvc),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}
