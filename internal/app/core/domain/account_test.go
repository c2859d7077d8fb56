package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	a, err := NewAccount(100, decimal.NewFromInt(500), AccountKindSavings)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Number)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(500)))

	_, err = NewAccount(1, decimal.NewFromInt(-1), AccountKindSavings)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewAccount(1, decimal.Zero, AccountKind(9))
	assert.ErrorIs(t, err, ErrInvalidAccountKind)
}

func TestAccountApplyDelta(t *testing.T) {
	a, err := NewAccount(1, decimal.NewFromInt(100), AccountKindCurrent)
	require.NoError(t, err)

	require.NoError(t, a.ApplyDelta(decimal.NewFromInt(-100)))
	assert.True(t, a.Balance.IsZero())

	err = a.ApplyDelta(decimal.RequireFromString("-0.01"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, a.Balance.IsZero(), "balance must be unchanged after a rejected delta")
}

func TestAccountCredit(t *testing.T) {
	a, _ := NewAccount(1, decimal.Zero, AccountKindCurrent)

	a.Credit(decimal.RequireFromString("0.01"))
	a.Credit(decimal.NewFromInt(99))
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("99.01")), a.Balance.String())
}

func TestAccountDepositWithdraw(t *testing.T) {
	a, _ := NewAccount(1, decimal.NewFromInt(10), AccountKindSavings)

	assert.ErrorIs(t, a.Deposit(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, a.Withdraw(decimal.NewFromInt(-3)), ErrInvalidAmount)

	require.NoError(t, a.Deposit(decimal.RequireFromString("2.5")))
	require.NoError(t, a.Withdraw(decimal.RequireFromString("12.5")))
	assert.True(t, a.Balance.IsZero())

	assert.ErrorIs(t, a.Withdraw(decimal.NewFromInt(1)), ErrInsufficientFunds)
}

func TestParseAccountKind(t *testing.T) {
	k, err := ParseAccountKind("Savings")
	require.NoError(t, err)
	assert.Equal(t, AccountKindSavings, k)
	assert.Equal(t, "Savings", k.String())

	k, err = ParseAccountKind("Current")
	require.NoError(t, err)
	assert.Equal(t, "Current", k.String())

	_, err = ParseAccountKind("savings")
	assert.True(t, errors.Is(err, ErrInvalidAccountKind))
}
