package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of a transaction row.
type TransactionType string

const (
	// TransactionTypeDeposit credits the client's available funds
	TransactionTypeDeposit TransactionType = "deposit"

	// TransactionTypeWithdrawal debits the client's available funds
	TransactionTypeWithdrawal TransactionType = "withdrawal"

	// TransactionTypeDispute moves a referenced amount from available to held
	TransactionTypeDispute TransactionType = "dispute"

	// TransactionTypeResolve releases a disputed amount back to available
	TransactionTypeResolve TransactionType = "resolve"

	// TransactionTypeChargeback removes a held amount and locks the account
	TransactionTypeChargeback TransactionType = "chargeback"
)

// CarriesAmount reports whether rows of this type must carry their own amount.
// Dispute-family rows reference the amount of an earlier deposit or withdrawal instead.
func (t TransactionType) CarriesAmount() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// Transaction is one validated input row.
// Amount is always valid for deposits and withdrawals. Dispute-family rows keep
// a parsable amount if they carry one, but it is never used.
type Transaction struct {
	Type   TransactionType     // Kind of the transaction
	Client uint16              // Client identifier
	Tx     uint32              // Transaction identifier, not guaranteed unique
	Amount decimal.NullDecimal // Own amount, required for deposits and withdrawals
}

// ClientAccount is the running balance of a single client.
// Total always equals Available + Held.
type ClientAccount struct {
	Client    uint16          // Client identifier
	Available decimal.Decimal // Funds usable for withdrawal
	Held      decimal.Decimal // Funds frozen pending dispute resolution
	Total     decimal.Decimal // Available + Held
	Locked    bool            // Set once a chargeback has been applied, never reset
}

// NewClientAccount opens an account with an initial deposit.
func NewClientAccount(client uint16, amount decimal.Decimal) *ClientAccount {
	return &ClientAccount{
		Client:    client,
		Available: amount,
		Held:      decimal.Zero,
		Total:     amount,
	}
}

// Credit adds amount to available and total funds.
func (a *ClientAccount) Credit(amount decimal.Decimal) {
	a.Available = a.Available.Add(amount)
	a.Total = a.Total.Add(amount)
}

// Debit subtracts amount from available and total funds.
// Returns false and leaves the account untouched if available funds are insufficient.
func (a *ClientAccount) Debit(amount decimal.Decimal) bool {
	if !a.HasSufficientFunds(amount) {
		return false
	}
	a.Available = a.Available.Sub(amount)
	a.Total = a.Total.Sub(amount)
	return true
}

// HasSufficientFunds checks if the available balance covers amount.
func (a *ClientAccount) HasSufficientFunds(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(a.Available)
}

// Hold moves amount from available to held funds.
func (a *ClientAccount) Hold(amount decimal.Decimal) {
	a.Available = a.Available.Sub(amount)
	a.Held = a.Held.Add(amount)
}

// Release moves amount from held back to available funds.
func (a *ClientAccount) Release(amount decimal.Decimal) {
	a.Available = a.Available.Add(amount)
	a.Held = a.Held.Sub(amount)
}

// Chargeback removes amount from held and total funds and locks the account.
func (a *ClientAccount) Chargeback(amount decimal.Decimal) {
	a.Total = a.Total.Sub(amount)
	a.Held = a.Held.Sub(amount)
	a.Locked = true
}

// RawRow is one row as produced by a row source, before validation.
type RawRow struct {
	Line   int      // 1-based line number in the source
	Fields []string // Whitespace-trimmed fields
}

// Run summarizes one pass over an input source.
type Run struct {
	ID              uuid.UUID // Unique identifier of the run
	Source          string    // Human-readable name of the input (file path)
	StartedAt       time.Time // When reading started
	FinishedAt      time.Time // When the replay finished
	RowsRead        int       // Rows pulled from the source, header excluded
	RowsRejected    int       // Rows the validator refused
	RecordsAccepted int       // Rows turned into transactions
	Accounts        int       // Accounts in the final state
}

// NewRun creates a Run for the given source, stamped with the current time.
func NewRun(source string) *Run {
	return &Run{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}
