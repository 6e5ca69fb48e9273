package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fixpoint-erp/fixpoint-erp/internal/app"
	"github.com/fixpoint-erp/fixpoint-erp/internal/finance"
	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/cache"
	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
	"github.com/fixpoint-erp/fixpoint-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	swapRepo := swaps.NewRepository(store)
	resolver := swaps.NewResolver(swapRepo, logger)
	ledger := swaps.NewLedger(swapRepo, resolver, logger)

	financeRepo := finance.NewRepository(store)
	aggregator := finance.NewAggregator(financeRepo, logger)

	siblings := reports.NewSiblings(store)
	builder := reports.NewBuilder(ledger, aggregator, siblings, logger)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	sweeper := jobs.NewProfitLinkSweeper(swapRepo, resolver, reportCache, metrics, logger)
	exporter := jobs.NewReportExporter(builder, cfg.ExportDir, metrics, logger)

	sweepTask, err := jobs.NewProfitLinkSweepTask(jobs.ProfitLinkSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeProfitLinkSweep, Handler: sweeper.Handle},
			{Type: jobs.TaskTypeReportExport, Handler: exporter.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
