package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// newLedger 建立帳本並開好 100 (Savings, 500) 與 200 (Current, 0)
func newLedger(t *testing.T) *MutexLedger {
	t.Helper()
	l, err := NewMutexLedger(domain.Snapshot{})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = l.CreateAccount(ctx, 100, d(500), domain.AccountKindSavings)
	require.NoError(t, err)
	_, err = l.CreateAccount(ctx, 200, d(0), domain.AccountKindCurrent)
	require.NoError(t, err)
	return l
}

func balance(t *testing.T, l *MutexLedger, number int64) decimal.Decimal {
	t.Helper()
	b, err := l.GetAccountBalance(context.Background(), number)
	require.NoError(t, err)
	return b
}

func TestMutexLedger_TransferScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	receipt, err := l.Transfer(ctx, 100, 200, d(300))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.Sequence)
	assert.True(t, balance(t, l, 100).Equal(d(200)))
	assert.True(t, balance(t, l, 200).Equal(d(300)))

	records, _ := l.ListTransactions(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, domain.TransactionKindTransferOut, records[0].Kind)
	assert.Equal(t, int64(100), records[0].AccountNumber)
	assert.Equal(t, domain.TransactionKindTransferIn, records[1].Kind)
	assert.Equal(t, int64(200), records[1].AccountNumber)
	assert.True(t, records[0].Amount.Equal(d(300)))
	assert.True(t, records[1].Amount.Equal(d(300)))

	_, err = l.Withdraw(ctx, 100, d(500))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, balance(t, l, 100).Equal(d(200)))
	assert.True(t, balance(t, l, 200).Equal(d(300)))

	records, _ = l.ListTransactions(ctx)
	assert.Len(t, records, 2)
}

func TestMutexLedger_Deposit(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	receipt, err := l.Deposit(ctx, 200, decimal.RequireFromString("12.34"))
	require.NoError(t, err)
	require.Len(t, receipt.Records, 1)
	assert.Equal(t, domain.TransactionKindDeposit, receipt.Records[0].Kind)
	got, ok := receipt.BalanceOf(200)
	require.True(t, ok)
	assert.Equal(t, "12.34", got.String())

	_, err = l.Deposit(ctx, 999, d(1))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = l.Deposit(ctx, 200, d(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	records, _ := l.ListTransactions(ctx)
	assert.Len(t, records, 1)
}

func TestMutexLedger_Withdraw(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.Withdraw(ctx, 100, d(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = l.Withdraw(ctx, 300, d(5))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = l.Withdraw(ctx, 100, d(501))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	receipt, err := l.Withdraw(ctx, 100, d(500))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindWithdrawal, receipt.Records[0].Kind)
	assert.True(t, balance(t, l, 100).IsZero())
}

func TestMutexLedger_TransferRejectedLeavesNoTrace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to int64
		amount   decimal.Decimal
		wantErr  error
		wantSide string
	}{
		{name: "insufficient funds", from: 100, to: 200, amount: d(501), wantErr: domain.ErrInsufficientFunds},
		{name: "missing destination", from: 100, to: 999, amount: d(10), wantErr: domain.ErrAccountNotFound, wantSide: domain.SideDestination},
		{name: "missing source", from: 999, to: 200, amount: d(10), wantErr: domain.ErrAccountNotFound, wantSide: domain.SideSource},
		{name: "zero amount", from: 100, to: 200, amount: d(0), wantErr: domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			before, _ := l.Snapshot(ctx)

			_, err := l.Transfer(ctx, tt.from, tt.to, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantSide != "" {
				var notFound *domain.AccountNotFoundError
				require.True(t, errors.As(err, &notFound))
				assert.Equal(t, tt.wantSide, notFound.Side)
			}

			after, _ := l.Snapshot(ctx)
			assert.Equal(t, before, after)
		})
	}
}

func TestMutexLedger_SelfTransfer(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	receipt, err := l.Transfer(ctx, 100, 100, d(500))
	require.NoError(t, err)
	require.Len(t, receipt.Records, 2)
	assert.True(t, balance(t, l, 100).Equal(d(500)))

	_, err = l.Transfer(ctx, 100, 100, d(501))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestMutexLedger_CreateAccount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.CreateAccount(ctx, 100, d(1), domain.AccountKindCurrent)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)

	_, err = l.CreateAccount(ctx, 300, d(-1), domain.AccountKindCurrent)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	accounts, _ := l.ListAccounts(ctx)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(100), accounts[0].Number)
	assert.Equal(t, domain.AccountKindCurrent, accounts[1].Kind)
}

func TestNewMutexLedger_RestoresSnapshot(t *testing.T) {
	snap := domain.Snapshot{
		Accounts: []domain.Account{
			{Number: 1, Balance: d(10), Kind: domain.AccountKindSavings},
			{Number: 2, Balance: d(20), Kind: domain.AccountKindCurrent},
		},
		Transactions: []domain.TransactionRecord{
			{AccountNumber: 1, Kind: domain.TransactionKindDeposit, Amount: d(10)},
		},
	}
	l, err := NewMutexLedger(snap)
	require.NoError(t, err)

	got, _ := l.Snapshot(context.Background())
	assert.Equal(t, snap, got)

	snap.Accounts = append(snap.Accounts, domain.Account{Number: 1, Kind: domain.AccountKindSavings})
	_, err = NewMutexLedger(snap)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestMutexLedger_ConcurrentOppositeTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	l, _ := NewMutexLedger(domain.Snapshot{})
	_, _ = l.CreateAccount(ctx, 1, d(1000), domain.AccountKindSavings)
	_, _ = l.CreateAccount(ctx, 2, d(1000), domain.AccountKindCurrent)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := l.Transfer(ctx, 1, 2, d(1))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := l.Transfer(ctx, 2, 1, d(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := balance(t, l, 1).Add(balance(t, l, 2))
	assert.True(t, total.Equal(d(2000)), "total=%s", total)

	records, _ := l.ListTransactions(ctx)
	assert.Len(t, records, 4*n)
	for i := 0; i < len(records); i += 2 {
		assert.Equal(t, domain.TransactionKindTransferOut, records[i].Kind)
		assert.Equal(t, domain.TransactionKindTransferIn, records[i+1].Kind)
	}
}

func TestMutexLedger_SnapshotNeverSeesHalfTransfer(t *testing.T) {
	ctx := context.Background()
	l, _ := NewMutexLedger(domain.Snapshot{})
	_, _ = l.CreateAccount(ctx, 1, d(100), domain.AccountKindSavings)
	_, _ = l.CreateAccount(ctx, 2, d(100), domain.AccountKindSavings)
	_, _ = l.CreateAccount(ctx, 3, d(100), domain.AccountKindSavings)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	pairs := [][2]int64{{1, 2}, {2, 3}, {3, 1}, {2, 1}}
	for _, p := range pairs {
		wg.Add(1)
		go func(from, to int64) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = l.Transfer(ctx, from, to, d(1))
				}
			}
		}(p[0], p[1])
	}

	for i := 0; i < 200; i++ {
		snap, err := l.Snapshot(ctx)
		require.NoError(t, err)
		total := decimal.Zero
		for _, a := range snap.Accounts {
			require.False(t, a.Balance.IsNegative())
			total = total.Add(a.Balance)
		}
		require.True(t, total.Equal(d(300)), "total=%s", total)
		require.Zero(t, len(snap.Transactions)%2)
	}
	close(stop)
	wg.Wait()
}

func TestMutexLedger_DepositsAndWithdrawalsChangeTotalByInjectedAmount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.Deposit(ctx, 200, d(40))
	require.NoError(t, err)
	_, err = l.Withdraw(ctx, 100, d(15))
	require.NoError(t, err)
	_, err = l.Transfer(ctx, 200, 100, d(25))
	require.NoError(t, err)

	accounts, _ := l.ListAccounts(ctx)
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	assert.True(t, total.Equal(d(500+40-15)))
}
