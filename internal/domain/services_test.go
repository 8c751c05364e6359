package domain

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// sliceSource is a RowSource over an in-memory slice, optionally failing at the end.
type sliceSource struct {
	rows []RawRow
	err  error
}

func (s *sliceSource) Next() (RawRow, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return RawRow{}, s.err
		}
		return RawRow{}, io.EOF
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row, nil
}

func newSource(rows ...[]string) *sliceSource {
	src := &sliceSource{}
	for i, fields := range rows {
		// line 1 is the header
		src.rows = append(src.rows, RawRow{Line: i + 2, Fields: fields})
	}
	return src
}

type mockRunRepository struct {
	createErr error
	saveErr   error
	runs      []*Run
	snapshots map[uuid.UUID][]ClientAccount
}

func (m *mockRunRepository) CreateRun(ctx context.Context, run *Run) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRunRepository) SaveSnapshots(ctx context.Context, runID uuid.UUID, accounts []ClientAccount) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.snapshots == nil {
		m.snapshots = make(map[uuid.UUID][]ClientAccount)
	}
	m.snapshots[runID] = accounts
	return nil
}

type mockTransactionManager struct {
	calls      int
	rolledBack bool
}

func (m *mockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		m.rolledBack = true
		return err
	}
	return nil
}

type mockExporter struct {
	mu    sync.Mutex
	err   error
	calls int
	seen  []ClientAccount
}

func (m *mockExporter) ExportBalances(ctx context.Context, run *Run, accounts []ClientAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.seen = accounts
	return m.err
}

func TestProcess_ReportsRejectedRows(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewLedgerService(zap.New(core))

	run, accounts, err := svc.Process(context.Background(), "input.csv", newSource(
		[]string{"deposit", "1", "1", "20.0"},
		[]string{"deposit", "1", "2"},
		[]string{"bogus", "1", "3", "1.0"},
		[]string{"withdrawal", "1", "4", "5.0"},
	))
	require.NoError(t, err)

	assert.Equal(t, 4, run.RowsRead)
	assert.Equal(t, 2, run.RowsRejected)
	assert.Equal(t, 2, run.RecordsAccepted)
	assert.Equal(t, 1, run.Accounts)
	assert.False(t, run.FinishedAt.IsZero())

	require.Len(t, accounts, 1)
	assertAccount(t, accounts[0], "15", "0", "15", false)

	rejected := logs.FilterMessage("invalid record").All()
	require.Len(t, rejected, 2)
	assert.Equal(t, int64(3), rejected[0].ContextMap()["line"])
	assert.Equal(t, int64(4), rejected[1].ContextMap()["line"])
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)

	assert.Equal(t, 1, logs.FilterMessage("ledger replay finished").Len())
}

func TestProcess_RejectsUnboundedAmounts(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewLedgerService(zap.New(core))

	run, accounts, err := svc.Process(context.Background(), "input.csv", newSource(
		[]string{"deposit", "1", "1", "1e100000000"},
		[]string{"deposit", "1", "2", "0.0001"},
		[]string{"withdrawal", "1", "3", "1e-100000000"},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, run.RowsRejected)
	require.Len(t, accounts, 1)
	assertAccount(t, accounts[0], "0.0001", "0", "0.0001", false)
	assert.Equal(t, 2, logs.FilterMessage("invalid record").Len())
}

func TestProcess_StreamFailureAborts(t *testing.T) {
	readErr := errors.New("bare quote in field")
	src := newSource([]string{"deposit", "1", "1", "20.0"})
	src.err = readErr

	run, accounts, err := NewLedgerService(nil).Process(context.Background(), "broken.csv", src)

	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Nil(t, run)
	assert.Nil(t, accounts)
}

func TestProcess_NilSource(t *testing.T) {
	_, _, err := NewLedgerService(nil).Process(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrNilRowSource)
}

func TestProcess_ShardedMatchesSequential(t *testing.T) {
	rows := [][]string{
		{"deposit", "1", "1", "20.0"},
		{"deposit", "2", "2", "10.0"},
		{"dispute", "1", "1", ""},
		{"deposit", "3", "3", "1.5"},
		{"chargeback", "2", "2", ""},
		{"resolve", "1", "1", ""},
	}

	_, sequential, err := NewLedgerService(nil).Process(context.Background(), "a", newSource(rows...))
	require.NoError(t, err)

	_, sharded, err := NewLedgerService(nil, WithShards(4)).Process(context.Background(), "a", newSource(rows...))
	require.NoError(t, err)

	want := byClient(sequential)
	got := byClient(sharded)
	require.Len(t, got, len(want))
	for client, acc := range want {
		assertAccount(t, got[client], acc.Available.String(), acc.Held.String(), acc.Total.String(), acc.Locked)
	}
}

func TestPublish_RecordsRunAndExports(t *testing.T) {
	repo := &mockRunRepository{}
	txManager := &mockTransactionManager{}
	first, second := &mockExporter{}, &mockExporter{}

	svc := NewLedgerService(nil, WithRunRepository(repo, txManager), WithExporters(first, second))

	run, accounts, err := svc.Process(context.Background(), "input.csv", newSource(
		[]string{"deposit", "1", "1", "20.0"},
	))
	require.NoError(t, err)

	require.NoError(t, svc.Publish(context.Background(), run, accounts))

	assert.Equal(t, 1, txManager.calls)
	require.Len(t, repo.runs, 1)
	assert.Equal(t, run.ID, repo.runs[0].ID)
	assert.Len(t, repo.snapshots[run.ID], 1)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Len(t, first.seen, 1)
}

func TestPublish_RepositoryFailureRollsBack(t *testing.T) {
	repo := &mockRunRepository{saveErr: errors.New("disk full")}
	txManager := &mockTransactionManager{}
	exporter := &mockExporter{}

	svc := NewLedgerService(nil, WithRunRepository(repo, txManager), WithExporters(exporter))
	run, accounts, err := svc.Process(context.Background(), "input.csv", newSource(
		[]string{"deposit", "1", "1", "20.0"},
	))
	require.NoError(t, err)

	err = svc.Publish(context.Background(), run, accounts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save account snapshots")
	assert.True(t, txManager.rolledBack)
	assert.Equal(t, 0, exporter.calls)
}

func TestPublish_ExporterFailure(t *testing.T) {
	exportErr := errors.New("broker unreachable")
	svc := NewLedgerService(nil, WithExporters(&mockExporter{}, &mockExporter{err: exportErr}))

	run, accounts, err := svc.Process(context.Background(), "input.csv", newSource(
		[]string{"deposit", "1", "1", "20.0"},
	))
	require.NoError(t, err)

	err = svc.Publish(context.Background(), run, accounts)
	assert.ErrorIs(t, err, exportErr)
}

func TestPublish_UnfinishedRun(t *testing.T) {
	svc := NewLedgerService(nil)

	assert.ErrorIs(t, svc.Publish(context.Background(), nil, nil), ErrRunNotFinished)
	assert.ErrorIs(t, svc.Publish(context.Background(), NewRun("x"), nil), ErrRunNotFinished)
}

func TestPublish_NothingConfigured(t *testing.T) {
	svc := NewLedgerService(nil)
	run, accounts, err := svc.Process(context.Background(), "empty.csv", newSource())
	require.NoError(t, err)

	assert.Empty(t, accounts)
	assert.NoError(t, svc.Publish(context.Background(), run, accounts))
}
