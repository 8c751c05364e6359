package domain

import (
	"context"

	"github.com/google/uuid"
)

// RowSource yields raw rows in source order.
// Next returns io.EOF once the source is exhausted; any other error is a stream-level failure.
type RowSource interface {
	Next() (RawRow, error)
}

// RunRepository defines the interface for recording finished runs.
type RunRepository interface {
	// CreateRun persists the run summary.
	CreateRun(ctx context.Context, run *Run) error

	// SaveSnapshots persists the final account states of a run.
	// Must be called after CreateRun for the same run.
	SaveSnapshots(ctx context.Context, runID uuid.UUID, accounts []ClientAccount) error
}

// TransactionManager defines the interface for managing database transactions.
// This abstraction allows the service layer to work with transactions
// without being coupled to a specific database implementation.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BalanceExporter hands the final account states of a run to an external system
// (analytics store, message broker). Exporters never feed data back into the engine.
type BalanceExporter interface {
	ExportBalances(ctx context.Context, run *Run, accounts []ClientAccount) error
}
