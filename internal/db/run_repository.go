package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
)

// ErrDuplicateRun is returned when a run with the same id has already been recorded.
var ErrDuplicateRun = errors.New("run already recorded")

// RunRepository implements domain.RunRepository using PostgreSQL.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// CreateRun inserts the run summary into ledger_runs.
// If called within a transaction context, uses the transaction.
func (r *RunRepository) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO ledger_runs (
			id, source, started_at, finished_at,
			rows_read, rows_rejected, records_accepted, accounts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		run.ID,
		run.Source,
		run.StartedAt,
		run.FinishedAt,
		run.RowsRead,
		run.RowsRejected,
		run.RecordsAccepted,
		run.Accounts,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrDuplicateRun
		}
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}

	return nil
}

// SaveSnapshots inserts one account_snapshots row per account in a single batch.
// Amounts are stored unrounded.
func (r *RunRepository) SaveSnapshots(ctx context.Context, runID uuid.UUID, accounts []domain.ClientAccount) error {
	if len(accounts) == 0 {
		return nil
	}

	query := `
		INSERT INTO account_snapshots (run_id, client, available, held, total, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, acc := range accounts {
		batch.Queue(query,
			runID,
			int32(acc.Client),
			acc.Available.String(),
			acc.Held.String(),
			acc.Total.String(),
			acc.Locked,
		)
	}

	results := conn(ctx, r.pool).SendBatch(ctx, batch)
	for _, acc := range accounts {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to save snapshot for client %d: %w", acc.Client, err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot batch: %w", err)
	}
	return nil
}

// Snapshot is a stored account row as read back for verification and reporting.
type Snapshot struct {
	Client    uint16
	Available string
	Held      string
	Total     string
	Locked    bool
}

// ListSnapshots returns the stored accounts of a run ordered by client.
// The engine never reads these back; this exists for operators and tests.
func (r *RunRepository) ListSnapshots(ctx context.Context, runID uuid.UUID) ([]Snapshot, error) {
	query := `
		SELECT client, available::text, held::text, total::text, locked
		FROM account_snapshots
		WHERE run_id = $1
		ORDER BY client
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for run %s: %w", runID, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var client int32
		if err := rows.Scan(&client, &s.Available, &s.Held, &s.Total, &s.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		s.Client = uint16(client)
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}
