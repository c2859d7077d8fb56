package memory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestTransactionLog_AppendAndAll(t *testing.T) {
	l := NewTransactionLog()
	assert.Equal(t, 0, l.Len())

	seq := l.Append(domain.TransactionRecord{AccountNumber: 1, Kind: domain.TransactionKindDeposit, Amount: decimal.NewFromInt(5)})
	assert.Equal(t, uint64(1), seq)

	seq = l.Append(
		domain.TransactionRecord{AccountNumber: 1, Kind: domain.TransactionKindTransferOut, Amount: decimal.NewFromInt(2)},
		domain.TransactionRecord{AccountNumber: 2, Kind: domain.TransactionKindTransferIn, Amount: decimal.NewFromInt(2)},
	)
	assert.Equal(t, uint64(3), seq)

	all := l.All()
	assert.Len(t, all, 3)
	assert.Equal(t, domain.TransactionKindTransferOut, all[1].Kind)
	assert.Equal(t, domain.TransactionKindTransferIn, all[2].Kind)

	// 回傳的是副本
	all[0].AccountNumber = 99
	assert.Equal(t, int64(1), l.All()[0].AccountNumber)
}

func TestNewTransactionLog_KeepsLoadedOrder(t *testing.T) {
	loaded := []domain.TransactionRecord{
		{AccountNumber: 3, Kind: domain.TransactionKindWithdrawal, Amount: decimal.NewFromInt(1)},
		{AccountNumber: 1, Kind: domain.TransactionKindDeposit, Amount: decimal.NewFromInt(2)},
	}
	l := NewTransactionLog(loaded...)
	assert.Equal(t, loaded, l.All())
	assert.Equal(t, uint64(3), l.Append(loaded[0]))
}
