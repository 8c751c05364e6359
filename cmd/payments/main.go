package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/analytics"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/config"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/csvio"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/db"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/events"
	"github.com/spbu-ds-practicum-2025/payments-engine/internal/logging"
)

var errUsage = errors.New("usage")

// loggedError marks a failure that run has already written to the log.
type loggedError struct {
	err error
}

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, os.Stdout, os.Stderr); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// reportError prints err unless it was already shown as usage or logged.
func reportError(w io.Writer, err error) {
	var logged loggedError
	if errors.Is(err, errUsage) || errors.As(err, &logged) {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "usage: %s <transactions.csv>\n", filepath.Base(args[0]))
		return errUsage
	}
	path := args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	opts, cleanup, err := exportOptions(ctx, cfg, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	svc := domain.NewLedgerService(logger, append(opts, domain.WithShards(cfg.Shards))...)

	reader, err := csvio.OpenFile(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	ledgerRun, accounts, err := svc.Process(ctx, path, reader)
	if err != nil {
		logger.Error("ledger run failed", zap.String("source", path), zap.Error(err))
		return loggedError{err}
	}

	if err := csvio.WriteAccounts(stdout, accounts); err != nil {
		return fmt.Errorf("failed to write balances: %w", err)
	}

	if err := svc.Publish(ctx, ledgerRun, accounts); err != nil {
		logger.Error("failed to publish run", zap.String("run_id", ledgerRun.ID.String()), zap.Error(err))
		return loggedError{err}
	}

	return nil
}

// exportOptions connects every configured export target. Targets without
// connection settings are skipped. The returned cleanup is always safe to call.
func exportOptions(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]domain.Option, func(), error) {
	var (
		opts    []domain.Option
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Postgres.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create database pool: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			return nil, cleanup, err
		}

		opts = append(opts, domain.WithRunRepository(
			db.NewRunRepository(pool.Pool),
			db.NewTransactionManager(pool.Pool, logger),
		))
		logger.Info("postgres run export enabled")
	}

	if cfg.ClickHouse.Host != "" {
		client, err := analytics.NewClickHouseClient(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close clickhouse client", zap.Error(err))
			}
		})

		repo := analytics.NewSnapshotRepository(client, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, cleanup, err
		}

		opts = append(opts, domain.WithExporters(repo))
		logger.Info("clickhouse snapshot export enabled", zap.String("host", cfg.ClickHouse.Host))
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQ, logger)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close rabbitmq publisher", zap.Error(err))
			}
		})

		opts = append(opts, domain.WithExporters(publisher))
	}

	return opts, cleanup, nil
}
