package grpc

import (
	"context"

	"google.golang.org/grpc"

	pkggrpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// ServiceName 完整服務名稱
const ServiceName = "ledger.v1.LedgerService"

// TransactionType 交易請求類型
type TransactionType int32

const (
	TransactionTypeUnspecified TransactionType = 0
	TransactionTypeDeposit     TransactionType = 1
	TransactionTypeWithdraw    TransactionType = 2
	TransactionTypeTransfer    TransactionType = 3
)

// Account 帳戶
type Account struct {
	AccountId int64  `json:"account_id"`
	Balance   string `json:"balance"`
	Kind      string `json:"kind"`
}

// Transaction 交易紀錄，Position 從 1 開始
type Transaction struct {
	Position  int64  `json:"position"`
	AccountId int64  `json:"account_id"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
}

type CreateAccountRequest struct {
	AccountId      int64  `json:"account_id"`
	InitialBalance string `json:"initial_balance"`
	// Kind: Savings 或 Current
	Kind string `json:"kind"`
}

type CreateAccountResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Account   *Account `json:"account,omitempty"`
}

// TransferRequest 存款只看 To，提款只看 From，轉帳兩邊都看
type TransferRequest struct {
	// RefId: UUID，相同 RefId 只會執行一次；空字串表示不做冪等
	RefId         string          `json:"ref_id"`
	FromAccountId int64           `json:"from_account_id"`
	ToAccountId   int64           `json:"to_account_id"`
	Amount        string          `json:"amount"`
	Type          TransactionType `json:"type"`
}

type TransferResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	// CurrentBalance: 轉帳/提款為 From 的餘額，存款為 To 的餘額
	CurrentBalance string `json:"current_balance,omitempty"`
	// Sequence: 提交後 log 的長度，0 表示沒有提交
	Sequence uint64 `json:"sequence,omitempty"`
}

type GetBalanceRequest struct {
	AccountId int64 `json:"account_id"`
}

type GetBalanceResponse struct {
	Balance string `json:"balance"`
	Kind    string `json:"kind"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type ListTransactionsRequest struct{}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

// LedgerServiceServer 伺服器端介面
type LedgerServiceServer interface {
	CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error)
}

// unaryHandler 產生 MethodDesc，負責解碼與 interceptor 串接
func unaryHandler[Req any, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerServiceDesc 服務描述
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateAccount", LedgerServiceServer.CreateAccount),
		unaryHandler("Transfer", LedgerServiceServer.Transfer),
		unaryHandler("GetBalance", LedgerServiceServer.GetBalance),
		unaryHandler("ListAccounts", LedgerServiceServer.ListAccounts),
		unaryHandler("ListTransactions", LedgerServiceServer.ListTransactions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.json",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// LedgerServiceClient 客戶端，訊息一律以 JSON 編碼
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerServiceClient 建立客戶端
func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(pkggrpc.JSONCodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error) {
	return invoke[CreateAccountResponse](ctx, c.cc, "CreateAccount", in, opts)
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, "Transfer", in, opts)
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	return invoke[GetBalanceResponse](ctx, c.cc, "GetBalance", in, opts)
}

func (c *LedgerServiceClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	return invoke[ListAccountsResponse](ctx, c.cc, "ListAccounts", in, opts)
}

func (c *LedgerServiceClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	return invoke[ListTransactionsResponse](ctx, c.cc, "ListTransactions", in, opts)
}
