package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldsPerRow is the fixed column layout shared by every transaction type:
// type, client, tx, amount.
const FieldsPerRow = 4

// Amount bounds. Exponents and coefficients outside them would make decimal
// arithmetic rescale to arbitrarily many digits.
const (
	MaxAmountScale  = 28
	MaxAmountDigits = 38
)

// ParseTransaction converts one raw row into a Transaction.
// The second return value is false if the row is malformed; the caller decides how to report it.
func ParseTransaction(fields []string) (Transaction, bool) {
	if len(fields) == 0 {
		return Transaction{}, false
	}

	txType, ok := ParseTransactionType(fields[0])
	if !ok {
		return Transaction{}, false
	}

	if len(fields) != FieldsPerRow {
		return Transaction{}, false
	}

	client, err := parseUint(fields[1], 16)
	if err != nil {
		return Transaction{}, false
	}

	tx, err := parseUint(fields[2], 32)
	if err != nil {
		return Transaction{}, false
	}

	var amount decimal.NullDecimal
	if value, ok := parseAmount(fields[3]); ok {
		amount = decimal.NewNullDecimal(value)
	} else if txType.CarriesAmount() {
		return Transaction{}, false
	}

	return Transaction{
		Type:   txType,
		Client: uint16(client),
		Tx:     uint32(tx),
		Amount: amount,
	}, true
}

// ParseTransactionType matches a type column case-insensitively.
func ParseTransactionType(value string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToLower(value)); t {
	case TransactionTypeDeposit,
		TransactionTypeWithdrawal,
		TransactionTypeDispute,
		TransactionTypeResolve,
		TransactionTypeChargeback:
		return t, true
	default:
		return "", false
	}
}

// parseUint parses an unsigned decimal integer of the given bit size.
// A single leading '+' is accepted.
func parseUint(value string, bitSize int) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(value, "+"), 10, bitSize)
}

// parseAmount parses a decimal amount within MaxAmountScale and MaxAmountDigits.
func parseAmount(value string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	exp := amount.Exponent()
	if exp < -MaxAmountScale || exp > MaxAmountScale || amount.NumDigits() > MaxAmountDigits {
		return decimal.Decimal{}, false
	}
	return amount, true
}
