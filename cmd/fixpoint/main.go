package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fixpoint-erp/fixpoint-erp/internal/app"
	"github.com/fixpoint-erp/fixpoint-erp/internal/auth"
	"github.com/fixpoint-erp/fixpoint-erp/internal/finance"
	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/cache"
	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	reportshttp "github.com/fixpoint-erp/fixpoint-erp/internal/reports/http"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
	"github.com/fixpoint-erp/fixpoint-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := db.NewStore(pool)

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(store)
	authService := auth.NewService(authRepo, redisClient, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService)

	swapRepo := swaps.NewRepository(store)
	resolver := swaps.NewResolver(swapRepo, logger)
	ledger := swaps.NewLedger(swapRepo, resolver, logger)

	financeRepo := finance.NewRepository(store)
	aggregator := finance.NewAggregator(financeRepo, logger)

	siblings := reports.NewSiblings(store)
	builder := reports.NewBuilder(ledger, aggregator, siblings, logger)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsHandler := reportshttp.NewHandler(logger, builder, reportCache, metrics, jobsClient)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		ReportsHandler: reportsHandler,
		TokenVerifier:  authService,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
