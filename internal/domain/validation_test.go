package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amountOf(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestParseTransaction_Valid(t *testing.T) {
	tests := []struct {
		name     string
		fields   []string
		expected Transaction
	}{
		{
			name:     "deposit",
			fields:   []string{"deposit", "1", "1", "20.00"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 1, Tx: 1, Amount: amountOf("20.00")},
		},
		{
			name:     "deposit with many fractional digits",
			fields:   []string{"deposit", "1", "1", "20.987654321"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 1, Tx: 1, Amount: amountOf("20.987654321")},
		},
		{
			name:     "amount at the exponent bound",
			fields:   []string{"deposit", "1", "1", "1e28"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 1, Tx: 1, Amount: amountOf("1e28")},
		},
		{
			name:     "amount at the scale bound",
			fields:   []string{"deposit", "1", "1", "0.0000000000000000000000000001"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 1, Tx: 1, Amount: amountOf("0.0000000000000000000000000001")},
		},
		{
			name:     "withdrawal",
			fields:   []string{"withdrawal", "1", "1", "20.00"},
			expected: Transaction{Type: TransactionTypeWithdrawal, Client: 1, Tx: 1, Amount: amountOf("20.00")},
		},
		{
			name:     "dispute without amount",
			fields:   []string{"dispute", "1", "1", ""},
			expected: Transaction{Type: TransactionTypeDispute, Client: 1, Tx: 1},
		},
		{
			name:     "resolve without amount",
			fields:   []string{"resolve", "1", "1", ""},
			expected: Transaction{Type: TransactionTypeResolve, Client: 1, Tx: 1},
		},
		{
			name:     "chargeback without amount",
			fields:   []string{"chargeback", "1", "1", ""},
			expected: Transaction{Type: TransactionTypeChargeback, Client: 1, Tx: 1},
		},
		{
			name:     "dispute with unparsable amount",
			fields:   []string{"dispute", "2", "7", "n/a"},
			expected: Transaction{Type: TransactionTypeDispute, Client: 2, Tx: 7},
		},
		{
			name:     "dispute keeps a parsable amount",
			fields:   []string{"dispute", "2", "7", "3.5"},
			expected: Transaction{Type: TransactionTypeDispute, Client: 2, Tx: 7, Amount: amountOf("3.5")},
		},
		{
			name:     "type is case-insensitive",
			fields:   []string{"DePoSiT", "3", "9", "1"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 3, Tx: 9, Amount: amountOf("1")},
		},
		{
			name:     "identifier bounds",
			fields:   []string{"deposit", "65535", "4294967295", "0.0001"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 65535, Tx: 4294967295, Amount: amountOf("0.0001")},
		},
		{
			name:     "leading plus on identifiers",
			fields:   []string{"deposit", "+4", "+5", "2"},
			expected: Transaction{Type: TransactionTypeDeposit, Client: 4, Tx: 5, Amount: amountOf("2")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTransaction(tt.fields)
			require.True(t, ok)

			assert.Equal(t, tt.expected.Type, got.Type)
			assert.Equal(t, tt.expected.Client, got.Client)
			assert.Equal(t, tt.expected.Tx, got.Tx)
			require.Equal(t, tt.expected.Amount.Valid, got.Amount.Valid)
			if tt.expected.Amount.Valid {
				assert.True(t, tt.expected.Amount.Decimal.Equal(got.Amount.Decimal),
					"expected amount %s, got %s", tt.expected.Amount.Decimal, got.Amount.Decimal)
			}
		})
	}
}

func TestParseTransaction_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{name: "no fields", fields: nil},
		{name: "empty type", fields: []string{"", "1", "1", "20.00"}},
		{name: "unknown type", fields: []string{"transfer", "1", "1", "20.00"}},
		{name: "empty client", fields: []string{"deposit", "", "1", "20.00"}},
		{name: "empty tx", fields: []string{"deposit", "1", "", "20.00"}},
		{name: "empty amount on deposit", fields: []string{"deposit", "1", "1", ""}},
		{name: "empty amount on withdrawal", fields: []string{"withdrawal", "1", "1", ""}},
		{name: "unparsable amount on deposit", fields: []string{"deposit", "1", "1", "lots"}},
		{name: "missing type column", fields: []string{"1", "1", "20.00"}},
		{name: "three columns", fields: []string{"deposit", "1", "20.00"}},
		{name: "three columns on dispute", fields: []string{"dispute", "1", "1"}},
		{name: "five columns", fields: []string{"deposit", "1", "1", "20.00", "extra"}},
		{name: "client out of range", fields: []string{"deposit", "65536", "1", "1"}},
		{name: "negative client", fields: []string{"deposit", "-1", "1", "1"}},
		{name: "tx out of range", fields: []string{"deposit", "1", "4294967296", "1"}},
		{name: "fractional tx", fields: []string{"deposit", "1", "1.5", "1"}},
		{name: "bare plus client", fields: []string{"deposit", "+", "1", "1"}},
		{name: "huge exponent", fields: []string{"deposit", "1", "1", "1e100000000"}},
		{name: "huge negative exponent", fields: []string{"withdrawal", "1", "1", "1e-100000000"}},
		{name: "exponent just past the bound", fields: []string{"deposit", "1", "1", "1e29"}},
		{name: "too many fractional digits", fields: []string{"deposit", "1", "1", "0.00000000000000000000000000001"}},
		{name: "too many digits", fields: []string{"deposit", "1", "1", "123456789012345678901234567890123456789"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseTransaction(tt.fields)
			assert.False(t, ok)
		})
	}
}

func TestParseTransactionType(t *testing.T) {
	for _, raw := range []string{"deposit", "WITHDRAWAL", "Dispute", "resolve", "chargeBack"} {
		_, ok := ParseTransactionType(raw)
		assert.True(t, ok, raw)
	}

	_, ok := ParseTransactionType("refund")
	assert.False(t, ok)
}
