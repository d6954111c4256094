package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bursar/internal/attachment"
	"bursar/internal/audit"
	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/notify"
	"bursar/internal/platform/config"
	"bursar/internal/platform/httpserver"
	"bursar/internal/platform/logger"
	"bursar/internal/platform/metrics"
	"bursar/internal/platform/postgres"
	platformredis "bursar/internal/platform/redis"
	"bursar/internal/proposal"
	transporthttp "bursar/internal/transport/http"
	"bursar/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bursar:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	rdb, err := platformredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	m := metrics.New()

	auditStore := audit.NewPostgresStore(pool)
	worker, err := audit.NewWorker(auditStore, audit.WorkerConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.AuditTopic,
		Interval:  cfg.AuditInterval,
		BatchSize: cfg.AuditBatchSize,
	}, log, m)
	if err != nil {
		return err
	}
	if err := worker.EnsureTopic(ctx); err != nil {
		return err
	}

	coordinator := workflow.New(workflow.Config{
		Expenditures:        expenditure.NewPostgresStore(pool),
		Proposals:           proposal.NewPostgresStore(pool),
		Ledger:              ledger.NewPostgresStore(pool),
		Attachments:         attachment.NewRedisStore(rdb),
		Runner:              postgres.NewTxRunner(pool),
		OverspendPolicy:     cfg.OverspendPolicy,
		VPApprovalLimit:     cfg.VPApprovalLimit,
		NearExhaustionRatio: cfg.NearExhaustionRatio,
	},
		workflow.WithLogger(log),
		workflow.WithAuditSink(audit.NewRecorder(auditStore, log)),
		workflow.WithNotifier(notify.NewRedisNotifier(rdb)),
		workflow.WithMetrics(m),
	)

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		Coordinator: coordinator,
		AuditTrail:  auditStore,
		Metrics:     m,
		SigningKey:  []byte(cfg.JWTSigningKey),
		Logger:      log,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(ctx, srv, log) })
	g.Go(func() error { return worker.Run(ctx) })

	log.Info("bursar started", "addr", cfg.Addr)
	return g.Wait()
}
