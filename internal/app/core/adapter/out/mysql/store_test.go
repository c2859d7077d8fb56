package mysql

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestRowsRoundTrip(t *testing.T) {
	snap := domain.Snapshot{
		Accounts: []domain.Account{
			{Number: 200, Balance: decimal.NewFromInt(300), Kind: domain.AccountKindCurrent},
			{Number: 100, Balance: decimal.NewFromInt(200), Kind: domain.AccountKindSavings},
		},
		Transactions: []domain.TransactionRecord{
			{AccountNumber: 100, Kind: domain.TransactionKindTransferOut, Amount: decimal.NewFromInt(300)},
			{AccountNumber: 200, Kind: domain.TransactionKindTransferIn, Amount: decimal.NewFromInt(300)},
		},
	}

	accounts, transactions := toRows(snap)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(1), accounts[0].Position)
	assert.Equal(t, "Current", accounts[0].Kind)
	assert.Equal(t, int64(2), transactions[1].Position)
	assert.Equal(t, "Transfer In", transactions[1].Kind)

	got, skipped := fromRows(accounts, transactions)
	assert.Empty(t, skipped)
	assert.Equal(t, snap, got)
}

func TestFromRowsSkipsBadRows(t *testing.T) {
	accounts := []sqlAccount{
		{Number: 1, Position: 1, Balance: decimal.NewFromInt(1), Kind: "Savings"},
		{Number: 2, Position: 2, Balance: decimal.NewFromInt(1), Kind: "Gold"},
		{Number: 3, Position: 3, Balance: decimal.NewFromInt(-1), Kind: "Current"},
	}
	transactions := []sqlTransaction{
		{Position: 1, AccountNumber: 1, Kind: "Deposit", Amount: decimal.NewFromInt(1)},
		{Position: 2, AccountNumber: 1, Kind: "Deposit", Amount: decimal.Zero},
	}

	got, skipped := fromRows(accounts, transactions)
	assert.Len(t, got.Accounts, 1)
	assert.Len(t, got.Transactions, 1)
	assert.Len(t, skipped, 3)
}
