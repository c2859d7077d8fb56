package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

type nopPersister struct{}

func (nopPersister) Save(ctx context.Context, snapshot domain.Snapshot) error { return nil }

func (nopPersister) Load(ctx context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{}, nil
}

func newClient(t *testing.T) *LedgerServiceClient {
	t.Helper()
	ledger, err := memory.NewMutexLedger(domain.Snapshot{})
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger, nopPersister{})

	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(logging.NewNoOpLogger())))
	RegisterLedgerServiceServer(s, NewGrpcServer(core))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewLedgerServiceClient(conn)
}

func createAccount(t *testing.T, c *LedgerServiceClient, id int64, balance, kind string) {
	t.Helper()
	resp, err := c.CreateAccount(context.Background(), &CreateAccountRequest{AccountId: id, InitialBalance: balance, Kind: kind})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
}

func TestGrpcServer_TransferFlow(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	createAccount(t, c, 100, "500", "Savings")
	createAccount(t, c, 200, "0", "Current")

	resp, err := c.Transfer(ctx, &TransferRequest{
		RefId:         uuid.NewString(),
		FromAccountId: 100,
		ToAccountId:   200,
		Amount:        "300",
		Type:          TransactionTypeTransfer,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "200", resp.CurrentBalance)
	assert.Equal(t, uint64(2), resp.Sequence)

	resp, err = c.Transfer(ctx, &TransferRequest{FromAccountId: 100, Amount: "500", Type: TransactionTypeWithdraw})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "insufficient_funds", resp.ErrorKind)
	assert.Zero(t, resp.Sequence)

	resp, err = c.Transfer(ctx, &TransferRequest{ToAccountId: 200, Amount: "0.5", Type: TransactionTypeDeposit})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "300.5", resp.CurrentBalance)

	balance, err := c.GetBalance(ctx, &GetBalanceRequest{AccountId: 200})
	require.NoError(t, err)
	assert.Equal(t, "300.5", balance.Balance)
	assert.Equal(t, "Current", balance.Kind)

	txs, err := c.ListTransactions(ctx, &ListTransactionsRequest{})
	require.NoError(t, err)
	require.Len(t, txs.Transactions, 3)
	assert.Equal(t, &Transaction{Position: 1, AccountId: 100, Kind: "Transfer Out", Amount: "300"}, txs.Transactions[0])
	assert.Equal(t, &Transaction{Position: 2, AccountId: 200, Kind: "Transfer In", Amount: "300"}, txs.Transactions[1])

	accounts, err := c.ListAccounts(ctx, &ListAccountsRequest{})
	require.NoError(t, err)
	require.Len(t, accounts.Accounts, 2)
	assert.Equal(t, int64(100), accounts.Accounts[0].AccountId)
}

func TestGrpcServer_SoftFailures(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	createAccount(t, c, 1, "10", "Savings")

	tests := []struct {
		name     string
		req      *TransferRequest
		wantKind string
	}{
		{"bad ref_id", &TransferRequest{RefId: "nope", ToAccountId: 1, Amount: "1", Type: TransactionTypeDeposit}, "invalid_request"},
		{"bad type", &TransferRequest{ToAccountId: 1, Amount: "1"}, "invalid_kind"},
		{"bad amount", &TransferRequest{ToAccountId: 1, Amount: "abc", Type: TransactionTypeDeposit}, "invalid_amount"},
		{"negative amount", &TransferRequest{ToAccountId: 1, Amount: "-1", Type: TransactionTypeDeposit}, "invalid_amount"},
		{"missing destination", &TransferRequest{FromAccountId: 1, ToAccountId: 2, Amount: "1", Type: TransactionTypeTransfer}, "account_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Transfer(ctx, tt.req)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.NotEmpty(t, resp.Message)
		})
	}

	created, err := c.CreateAccount(ctx, &CreateAccountRequest{AccountId: 1, Kind: "Savings"})
	require.NoError(t, err)
	assert.False(t, created.Success)
	assert.Equal(t, "duplicate_account", created.ErrorKind)

	created, err = c.CreateAccount(ctx, &CreateAccountRequest{AccountId: 2, Kind: "Gold"})
	require.NoError(t, err)
	assert.Equal(t, "invalid_kind", created.ErrorKind)

	_, err = c.GetBalance(ctx, &GetBalanceRequest{AccountId: 99})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGrpcServer_RefIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	createAccount(t, c, 1, "0", "Savings")

	req := &TransferRequest{RefId: uuid.NewString(), ToAccountId: 1, Amount: "5", Type: TransactionTypeDeposit}
	first, err := c.Transfer(ctx, req)
	require.NoError(t, err)
	second, err := c.Transfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	balance, err := c.GetBalance(ctx, &GetBalanceRequest{AccountId: 1})
	require.NoError(t, err)
	assert.Equal(t, "5", balance.Balance)
}
