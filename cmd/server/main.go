package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/config"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/httpserver"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/logger"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/startup"
)

const auditBufferSize = 1024

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses flags, validates configuration and serves until SIGINT or
// SIGTERM. Business logic lives in the internal service packages.
func run(args []string, stdout io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flags.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "records database path")
	flags.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "YAML file of principals to create at startup")
	report := flags.Bool("config-report", false, "print the configuration report as JSON and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *report {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(startup.BuildReport(cfg, time.Now().UTC()))
	}

	log := logger.New(stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log, buildOptions{auditBuffer: auditBufferSize})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	rep, err := startup.Validate(ctx, cfg, a.audit, time.Now().UTC())
	if err != nil {
		if errors.Is(err, startup.ErrConfigFatal) {
			for _, f := range rep.Validation.Errors {
				log.Error("configuration check failed", "check", f.Check, "message", f.Message)
			}
		}
		return err
	}
	for _, f := range rep.Validation.Warnings {
		log.Warn("configuration warning", "check", f.Check, "message", f.Message)
	}
	log.Info("security score",
		"passed", rep.Security.Passed,
		"total", rep.Security.Total,
		"percentage", rep.Security.Percentage,
	)

	if err := seed(ctx, a, log); err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, a.handler)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "env", cfg.Env)
		return httpserver.Run(gctx, srv, cfg.SSLCertPath, cfg.SSLKeyPath, log)
	})
	g.Go(func() error {
		return a.backups.ScheduleAutomatic(gctx, cfg.BackupInterval, cfg.BackupGrace)
	})
	return g.Wait()
}

// seed creates the bootstrap administrator when absent, then the principals
// listed in the seed file.
func seed(ctx context.Context, a *app, log *slog.Logger) error {
	if _, err := a.principals.EnsureDefaultAdmin(ctx, a.cfg.AdminSecret()); err != nil {
		return fmt.Errorf("default admin: %w", err)
	}
	if a.cfg.SeedFile == "" {
		return nil
	}
	n, err := a.principals.SeedFromFile(ctx, a.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("seed principals: %w", err)
	}
	log.Info("principals seeded", "file", a.cfg.SeedFile, "created", n)
	return nil
}
