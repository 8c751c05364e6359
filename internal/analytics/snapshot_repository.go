package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
)

const createSnapshotsTable = `
	CREATE TABLE IF NOT EXISTS account_snapshots (
		run_id String,
		source String,
		client UInt16,
		available Decimal(38, 10),
		held Decimal(38, 10),
		total Decimal(38, 10),
		locked Bool,
		computed_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (client, computed_at)
`

// SnapshotRepository appends account snapshots to ClickHouse.
// It implements domain.BalanceExporter.
type SnapshotRepository struct {
	db     *ClickHouseClient
	logger *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *ClickHouseClient, logger *zap.Logger) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{db: db, logger: logger}
}

// EnsureSchema creates the account_snapshots table if it does not exist
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Conn().Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("failed to create account_snapshots table: %w", err)
	}
	return nil
}

// ExportBalances inserts every account of the run in a single batch.
func (r *SnapshotRepository) ExportBalances(ctx context.Context, run *domain.Run, accounts []domain.ClientAccount) error {
	if len(accounts) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO account_snapshots (
			run_id, source, client, available, held, total, locked, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}

	for _, acc := range accounts {
		err := batch.Append(
			run.ID.String(),
			run.Source,
			acc.Client,
			acc.Available,
			acc.Held,
			acc.Total,
			acc.Locked,
			run.FinishedAt,
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append snapshot for client %d: %w", acc.Client, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send snapshot batch: %w", err)
	}

	r.logger.Info("account snapshots exported",
		zap.String("run_id", run.ID.String()),
		zap.Int("accounts", len(accounts)),
	)
	return nil
}

// StoredSnapshot is an account_snapshots row as stored in ClickHouse.
type StoredSnapshot struct {
	Client     uint16
	Available  decimal.Decimal
	Held       decimal.Decimal
	Total      decimal.Decimal
	Locked     bool
	ComputedAt time.Time
}

// ListRunSnapshots returns the stored accounts of a run ordered by client
func (r *SnapshotRepository) ListRunSnapshots(ctx context.Context, runID string) ([]StoredSnapshot, error) {
	query := `
		SELECT client, available, held, total, locked, computed_at
		FROM account_snapshots
		WHERE run_id = ?
		ORDER BY client
	`

	rows, err := r.db.Conn().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for run %s: %w", runID, err)
	}
	defer rows.Close()

	var snapshots []StoredSnapshot
	for rows.Next() {
		var s StoredSnapshot
		if err := rows.Scan(&s.Client, &s.Available, &s.Held, &s.Total, &s.Locked, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}
