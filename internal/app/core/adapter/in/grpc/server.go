package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*CreateAccountResponse, error) {
	kind, err := domain.ParseAccountKind(req.Kind)
	if err != nil {
		return &CreateAccountResponse{Message: err.Error(), ErrorKind: domain.ErrorKind(err)}, nil
	}
	balance := decimal.Zero
	if req.InitialBalance != "" {
		balance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			return &CreateAccountResponse{Message: "invalid initial_balance: " + err.Error(), ErrorKind: domain.ErrorKind(domain.ErrInvalidAmount)}, nil
		}
	}

	account, err := s.core.CreateAccount(ctx, req.AccountId, balance, kind)
	if err != nil {
		resp := &CreateAccountResponse{Message: err.Error(), ErrorKind: domain.ErrorKind(err)}
		// 存檔失敗時帳戶已經建立
		if errors.Is(err, domain.ErrIOFailure) {
			resp.Account = toAccount(account)
		}
		return resp, nil
	}
	return &CreateAccountResponse{Success: true, Account: toAccount(account)}, nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	// 1. UUID 解析
	var refID uuid.UUID
	if req.RefId != "" {
		u, err := uuid.Parse(req.RefId)
		if err != nil {
			return &TransferResponse{
				Message:   "invalid ref_id: " + err.Error(),
				ErrorKind: "invalid_request",
			}, nil
		}
		refID = u
	}

	// 2. 轉換交易類型
	var txType domain.TransactionType
	switch req.Type {
	case TransactionTypeDeposit:
		txType = domain.TransactionTypeDeposit
	case TransactionTypeWithdraw:
		txType = domain.TransactionTypeWithdraw
	case TransactionTypeTransfer:
		txType = domain.TransactionTypeTransfer
	default:
		return &TransferResponse{
			Message:   "invalid transaction type",
			ErrorKind: domain.ErrorKind(domain.ErrInvalidTransactionType),
		}, nil
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return &TransferResponse{
			Message:   "invalid amount: " + err.Error(),
			ErrorKind: domain.ErrorKind(domain.ErrInvalidAmount),
		}, nil
	}

	// 3. 執行交易
	receipt, err := s.core.PostTransaction(ctx, &domain.Posting{
		RefID:  refID,
		From:   req.FromAccountId,
		To:     req.ToAccountId,
		Amount: amount,
		Type:   txType,
	})

	// 4. 回傳最新餘額，直接取自回條
	resp := &TransferResponse{Success: err == nil, Sequence: receipt.Sequence}
	if err != nil {
		// 業務邏輯錯誤，Soft Failure
		resp.Message = err.Error()
		resp.ErrorKind = domain.ErrorKind(err)
	}
	target := req.FromAccountId
	if txType == domain.TransactionTypeDeposit {
		target = req.ToAccountId
	}
	if balance, ok := receipt.BalanceOf(target); ok {
		resp.CurrentBalance = balance.String()
	}
	return resp, nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	account, err := s.core.GetAccount(ctx, req.AccountId)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &GetBalanceResponse{
		Balance: account.Balance.String(),
		Kind:    account.Kind.String(),
	}, nil
}

func (s *GrpcServer) ListAccounts(ctx context.Context, req *ListAccountsRequest) (*ListAccountsResponse, error) {
	accounts, err := s.core.ListAccounts(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp := &ListAccountsResponse{Accounts: make([]*Account, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccount(a))
	}
	return resp, nil
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	records, err := s.core.ListTransactions(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp := &ListTransactionsResponse{Transactions: make([]*Transaction, 0, len(records))}
	for i, r := range records {
		resp.Transactions = append(resp.Transactions, &Transaction{
			Position:  int64(i + 1),
			AccountId: r.AccountNumber,
			Kind:      r.Kind.String(),
			Amount:    r.Amount.String(),
		})
	}
	return resp, nil
}

// LoggingInterceptor 記錄每一個 RPC 的耗時與結果
func LoggingInterceptor(logger *logging.Logger) grpc.UnaryServerInterceptor {
	logger = logger.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.String("code", status.Code(err).String()), zap.Error(err))...)
			return resp, err
		}
		logger.Debug("rpc handled", fields...)
		return resp, nil
	}
}

func toAccount(a domain.Account) *Account {
	return &Account{
		AccountId: a.Number,
		Balance:   a.Balance.String(),
		Kind:      a.Kind.String(),
	}
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
