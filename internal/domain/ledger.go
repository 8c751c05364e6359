package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// txKey identifies an originating transaction of a client.
type txKey struct {
	client uint16
	tx     uint32
}

// history answers point-in-time lookups over the complete record sequence.
// It is built once, before any record is applied, and is read-only afterwards.
type history struct {
	amounts  map[txKey]decimal.Decimal
	disputed map[txKey]struct{}
}

func newHistory(records []Transaction) *history {
	h := &history{
		amounts:  make(map[txKey]decimal.Decimal),
		disputed: make(map[txKey]struct{}),
	}
	for _, rec := range records {
		key := txKey{client: rec.Client, tx: rec.Tx}
		if rec.Amount.Valid {
			// first amount-bearing record wins
			if _, seen := h.amounts[key]; !seen {
				h.amounts[key] = rec.Amount.Decimal
			}
		}
		if rec.Type == TransactionTypeDispute {
			h.disputed[key] = struct{}{}
		}
	}
	return h
}

// lookupAmount returns the amount of the first record anywhere in the sequence
// with the same client and tx that carries an amount.
func (h *history) lookupAmount(client uint16, tx uint32) (decimal.Decimal, bool) {
	amount, ok := h.amounts[txKey{client: client, tx: tx}]
	return amount, ok
}

// isDisputed reports whether a dispute for client and tx exists anywhere in the sequence.
// It does not consider whether that dispute was later resolved or charged back.
func (h *history) isDisputed(client uint16, tx uint32) bool {
	_, ok := h.disputed[txKey{client: client, tx: tx}]
	return ok
}

// ledger holds the account state of one replay pass.
type ledger struct {
	history  *history
	accounts map[uint16]*ClientAccount
}

func newLedger(h *history) *ledger {
	return &ledger{
		history:  h,
		accounts: make(map[uint16]*ClientAccount),
	}
}

// apply performs the transition for a single record. Unmet preconditions are no-ops.
func (l *ledger) apply(rec Transaction) {
	account, exists := l.accounts[rec.Client]

	if rec.Type == TransactionTypeDeposit {
		if !exists {
			l.accounts[rec.Client] = NewClientAccount(rec.Client, rec.Amount.Decimal)
			return
		}
		account.Credit(rec.Amount.Decimal)
		return
	}

	if !exists {
		return
	}

	switch rec.Type {
	case TransactionTypeWithdrawal:
		account.Debit(rec.Amount.Decimal)

	case TransactionTypeDispute:
		if amount, ok := l.history.lookupAmount(rec.Client, rec.Tx); ok {
			account.Hold(amount)
		}

	case TransactionTypeResolve:
		amount, ok := l.history.lookupAmount(rec.Client, rec.Tx)
		if ok && l.history.isDisputed(rec.Client, rec.Tx) {
			account.Release(amount)
		}

	case TransactionTypeChargeback:
		// no dispute check here, unlike resolve
		if amount, ok := l.history.lookupAmount(rec.Client, rec.Tx); ok {
			account.Chargeback(amount)
		}
	}
}

func (l *ledger) snapshot() []ClientAccount {
	out := make([]ClientAccount, 0, len(l.accounts))
	for _, account := range l.accounts {
		out = append(out, *account)
	}
	return out
}

// Replay applies records in order and returns the final state of every client
// that made at least one deposit. The order of the result is unspecified.
func Replay(records []Transaction) []ClientAccount {
	l := newLedger(newHistory(records))
	for _, rec := range records {
		l.apply(rec)
	}
	return l.snapshot()
}

// ReplayParallel produces the same result as Replay, splitting the account
// mutation phase into shards by client id. Records of one client always land in
// the same shard and keep their relative order. Lookups see the whole sequence.
func ReplayParallel(ctx context.Context, records []Transaction, shards int) ([]ClientAccount, error) {
	if shards <= 1 {
		return Replay(records), nil
	}

	h := newHistory(records)

	partitions := make([][]Transaction, shards)
	for _, rec := range records {
		idx := int(rec.Client) % shards
		partitions[idx] = append(partitions[idx], rec)
	}

	results := make([][]ClientAccount, shards)
	g, ctx := errgroup.WithContext(ctx)
	for i, part := range partitions {
		g.Go(func() error {
			l := newLedger(h)
			for n, rec := range part {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				l.apply(rec)
			}
			results[i] = l.snapshot()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ClientAccount, 0)
	for _, part := range results {
		out = append(out, part...)
	}
	return out, nil
}
