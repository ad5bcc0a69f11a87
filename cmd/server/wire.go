package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	approachhandler "github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/handler"
	approachservice "github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/service"
	approachstore "github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/store"
	audithandler "github.com/LeandroAbranti/sistema-de-abordagem/internal/audit/handler"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/backup"
	backuphandler "github.com/LeandroAbranti/sistema-de-abordagem/internal/backup/handler"
	checkpointhandler "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/handler"
	checkpointservice "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/service"
	checkpointstore "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/store"
	jwttoken "github.com/LeandroAbranti/sistema-de-abordagem/internal/jwt_token"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/config"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/metrics"
	redisclient "github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/redis"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	principalhandler "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/handler"
	principalservice "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/service"
	principalstore "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/store"
	ratelimit "github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/middleware"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/store/bucket"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/storage"
	httptransport "github.com/LeandroAbranti/sistema-de-abordagem/internal/transport/http"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/publisher"
	auditfile "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/store/file"
	auditsqlite "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/store/sqlite"
)

const tokenIssuer = "sistema-de-abordagem"

type buildOptions struct {
	clock       clock.Clock
	hashCost    int
	auditBuffer int
}

// app holds every long-lived component of the server process.
type app struct {
	cfg        config.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	records    *sqlite.Store
	audit      *publisher.Publisher
	principals *principalservice.Service
	backups    *backup.Manager
	handler    http.Handler

	closers []func() error
}

// build opens the stores and wires services, handlers and the router. On
// error anything already opened is closed.
func build(ctx context.Context, cfg config.Server, logger *slog.Logger, opts buildOptions) (_ *app, err error) {
	if opts.clock == nil {
		opts.clock = clock.Real()
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	auditDB, err := auditsqlite.Open(ctx, cfg.AuditDBPath, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	a.closers = append(a.closers, auditDB.Close)
	sinks := audit.MultiStore{auditDB}
	if cfg.LogDir != "" {
		securityLog, err := auditfile.Open(cfg.LogDir)
		if err != nil {
			return nil, fmt.Errorf("open security log: %w", err)
		}
		a.closers = append(a.closers, securityLog.Close)
		sinks = append(sinks, securityLog)
	}
	pubOpts := []publisher.Option{
		publisher.WithLogger(logger),
		publisher.WithMetrics(a.metrics),
		publisher.WithClock(opts.clock.Now),
	}
	if opts.auditBuffer > 0 {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(opts.auditBuffer))
	}
	a.audit = publisher.NewPublisher(sinks, pubOpts...)
	// Flushed before the audit stores close.
	a.closers = append(a.closers, a.audit.Close)

	a.records, err = sqlite.Open(ctx, cfg.DatabasePath,
		sqlite.WithMigrations(storage.Migrations()),
		sqlite.WithLogger(logger),
		sqlite.WithRejectHook(a.metrics.IncMaintenanceRejected),
	)
	if err != nil {
		return nil, fmt.Errorf("open records database: %w", err)
	}
	a.closers = append(a.closers, a.records.Close)

	tokens, err := jwttoken.NewJWTService(cfg.SigningKey(), tokenIssuer, opts.clock)
	if err != nil {
		return nil, err
	}
	gate, err := access.New(tokens,
		access.WithAuditPublisher(a.audit),
		access.WithMetrics(a.metrics),
		access.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	principalOpts := []principalservice.Option{
		principalservice.WithLogger(logger),
		principalservice.WithAuditPublisher(a.audit),
		principalservice.WithMetrics(a.metrics),
	}
	if opts.hashCost > 0 {
		principalOpts = append(principalOpts, principalservice.WithHashCost(opts.hashCost))
	}
	a.principals, err = principalservice.New(principalstore.NewSQLiteStore(a.records), principalOpts...)
	if err != nil {
		return nil, err
	}

	checkpoints, err := checkpointservice.New(checkpointstore.NewSQLiteStore(a.records), a.principals, gate,
		checkpointservice.WithLogger(logger),
		checkpointservice.WithAuditPublisher(a.audit),
		checkpointservice.WithIDGenerator(uuid.NewString),
	)
	if err != nil {
		return nil, err
	}
	approaches, err := approachservice.New(approachstore.NewSQLiteStore(a.records), checkpoints,
		approachservice.WithLogger(logger),
		approachservice.WithIDGenerator(uuid.NewString),
	)
	if err != nil {
		return nil, err
	}

	backupOpts := []backup.Option{
		backup.WithRetention(cfg.BackupRetention),
		backup.WithTimeout(cfg.BackupTimeout),
		backup.WithClock(opts.clock),
		backup.WithAuditPublisher(a.audit),
		backup.WithMetrics(a.metrics),
		backup.WithLogger(logger),
	}
	if cfg.S3.Bucket != "" {
		client, err := backup.NewS3Client(ctx, backup.S3Config(cfg.S3))
		if err != nil {
			return nil, err
		}
		backupOpts = append(backupOpts, backup.WithMirror(backup.NewS3Mirror(client, cfg.S3.Bucket, cfg.S3.Prefix, nil, logger)))
	}
	a.backups, err = backup.New(a.records, cfg.BackupDir, backupOpts...)
	if err != nil {
		return nil, err
	}

	limiter := a.limiter(ctx, opts.clock)

	a.handler = httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Now:            opts.clock.Now,
		AllowedOrigins: cfg.CORSOrigins(),
		HTTPSRedirect:  cfg.HTTPSRedirect,
		Auditor:        a.audit,
		Metrics:        a.metrics,
		Gate:           gate,
		Limiter:        limiter,
		Store:          a.records,
		Principals:     principalhandler.New(a.principals, tokens, logger),
		Checkpoints:    checkpointhandler.New(checkpoints, gate.RequireAdmin, logger),
		Approaches:     approachhandler.New(approaches, logger),
		Backups:        backuphandler.New(a.backups, logger),
		Audit:          audithandler.New(a.audit, logger),
	})
	return a, nil
}

// limiter counts in Redis when it is configured and reachable, and in
// process memory otherwise. The memory store also serves as the fallback
// while the Redis breaker is open.
func (a *app) limiter(ctx context.Context, clk clock.Clock) *ratelimit.Middleware {
	memory := bucket.NewInMemoryBucketStore(bucket.WithClock(clk.Now))
	opts := []ratelimit.Option{
		ratelimit.WithDisabled(!a.cfg.RateLimitEnabled),
		ratelimit.WithAuditor(a.audit),
		ratelimit.WithMetrics(a.metrics),
		ratelimit.WithLogger(a.logger),
	}

	client, err := redisclient.New(ctx, a.cfg.RedisURL)
	if err != nil {
		a.logger.Warn("redis unavailable, rate limiting in memory", "error", err)
	}
	if client == nil {
		return ratelimit.New(memory, opts...)
	}
	a.closers = append(a.closers, client.Close)
	opts = append(opts, ratelimit.WithFallback(memory))
	return ratelimit.New(bucket.NewRedisBucketStore(client.Client, bucket.WithRedisClock(clk.Now)), opts...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
