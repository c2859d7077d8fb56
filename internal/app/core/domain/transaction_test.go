package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionKindNames(t *testing.T) {
	for _, name := range []string{"Deposit", "Withdrawal", "Transfer Out", "Transfer In"} {
		k, err := ParseTransactionKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, k.String())
	}

	_, err := ParseTransactionKind("TransferOut")
	assert.ErrorIs(t, err, ErrInvalidTransactionKind)
}

func TestNewTransactionRecord(t *testing.T) {
	r, err := NewTransactionRecord(7, TransactionKindDeposit, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.AccountNumber)

	_, err = NewTransactionRecord(7, TransactionKindDeposit, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewTransactionRecord(7, TransactionKind(0), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidTransactionKind)
}

func TestPostingGetLockIDs(t *testing.T) {
	tests := []struct {
		name    string
		posting Posting
		want    []int64
	}{
		{name: "transfer ascending", posting: Posting{Type: TransactionTypeTransfer, From: 1, To: 2}, want: []int64{1, 2}},
		{name: "transfer descending", posting: Posting{Type: TransactionTypeTransfer, From: 9, To: 3}, want: []int64{3, 9}},
		{name: "self transfer", posting: Posting{Type: TransactionTypeTransfer, From: 4, To: 4}, want: []int64{4}},
		{name: "deposit", posting: Posting{Type: TransactionTypeDeposit, To: 5}, want: []int64{5}},
		{name: "withdraw", posting: Posting{Type: TransactionTypeWithdraw, From: 6}, want: []int64{6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.posting.GetLockIDs())
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "none", ErrorKind(nil))
	assert.Equal(t, "account_not_found", ErrorKind(&AccountNotFoundError{Number: 1, Side: SideDestination}))
	assert.Equal(t, "insufficient_funds", ErrorKind(ErrInsufficientFunds))
	assert.Equal(t, "io_failure", ErrorKind(ErrIOFailure))
	assert.Equal(t, "unknown", ErrorKind(assert.AnError))

	err := &AccountNotFoundError{Number: 200, Side: SideDestination}
	assert.Equal(t, "destination account 200: account not found", err.Error())
}
