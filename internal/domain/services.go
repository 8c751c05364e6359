package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNilRowSource is returned when Process is called without a row source
	ErrNilRowSource = errors.New("row source is required")

	// ErrRunNotFinished is returned when publishing a run that has not been replayed
	ErrRunNotFinished = errors.New("run has not finished")
)

// LedgerService turns a stream of raw rows into final client balances and
// hands the result to the configured recorders and exporters.
type LedgerService struct {
	logger    *zap.Logger
	shards    int
	runRepo   RunRepository
	txManager TransactionManager
	exporters []BalanceExporter
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithShards splits the replay into n client shards. Values below 2 replay sequentially.
func WithShards(n int) Option {
	return func(s *LedgerService) {
		s.shards = n
	}
}

// WithRunRepository records every published run through repo, inside a transaction of txManager.
func WithRunRepository(repo RunRepository, txManager TransactionManager) Option {
	return func(s *LedgerService) {
		s.runRepo = repo
		s.txManager = txManager
	}
}

// WithExporters adds balance exporters. They run concurrently on Publish.
func WithExporters(exporters ...BalanceExporter) Option {
	return func(s *LedgerService) {
		s.exporters = append(s.exporters, exporters...)
	}
}

// NewLedgerService creates a new instance of LedgerService.
// A nil logger disables logging.
func NewLedgerService(logger *zap.Logger, opts ...Option) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		logger: logger,
		shards: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process reads every row of rows, validates it and replays the accepted
// transactions. Invalid rows are logged with their line number and skipped.
// A read error from rows aborts the whole run.
func (s *LedgerService) Process(ctx context.Context, source string, rows RowSource) (*Run, []ClientAccount, error) {
	if rows == nil {
		return nil, nil, ErrNilRowSource
	}

	run := NewRun(source)
	logger := s.logger.With(zap.String("run_id", run.ID.String()), zap.String("source", source))

	records, err := s.collect(run, rows, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	accounts, err := ReplayParallel(ctx, records, s.shards)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replay transactions: %w", err)
	}

	run.FinishedAt = time.Now().UTC()
	run.Accounts = len(accounts)

	logger.Info("ledger replay finished",
		zap.Int("rows_read", run.RowsRead),
		zap.Int("rows_rejected", run.RowsRejected),
		zap.Int("records_accepted", run.RecordsAccepted),
		zap.Int("accounts", run.Accounts),
		zap.Int("shards", s.shards),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)

	return run, accounts, nil
}

// collect drains rows into validated transactions, keeping the full sequence in memory.
func (s *LedgerService) collect(run *Run, rows RowSource, logger *zap.Logger) ([]Transaction, error) {
	var records []Transaction
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		run.RowsRead++
		rec, ok := ParseTransaction(row.Fields)
		if !ok {
			run.RowsRejected++
			logger.Warn("invalid record", zap.Int("line", row.Line))
			continue
		}

		run.RecordsAccepted++
		records = append(records, rec)
	}
}

// Publish stores the run through the run repository, if any, and then runs all
// exporters concurrently. The first failure is returned.
func (s *LedgerService) Publish(ctx context.Context, run *Run, accounts []ClientAccount) error {
	if run == nil || run.FinishedAt.IsZero() {
		return ErrRunNotFinished
	}

	logger := s.logger.With(zap.String("run_id", run.ID.String()))

	if s.runRepo != nil && s.txManager != nil {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.runRepo.CreateRun(txCtx, run); err != nil {
				return fmt.Errorf("failed to create run record: %w", err)
			}
			if err := s.runRepo.SaveSnapshots(txCtx, run.ID, accounts); err != nil {
				return fmt.Errorf("failed to save account snapshots: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("run recorded", zap.Int("accounts", len(accounts)))
	}

	if len(s.exporters) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, exporter := range s.exporters {
		g.Go(func() error {
			return exporter.ExportBalances(gctx, run, accounts)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to export balances: %w", err)
	}
	logger.Info("balances exported", zap.Int("exporters", len(s.exporters)))

	return nil
}
