package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務引擎的介面
type Ledger interface {
	// CreateAccount 建立帳戶
	CreateAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error)
	// 不分 Deposit/Withdraw/Transfer，直接看 posting.Type 決定
	PostTransaction(ctx context.Context, posting *domain.Posting) (domain.Receipt, error)
	// GetAccount 取得帳戶副本
	GetAccount(ctx context.Context, number int64) (domain.Account, error)
	// ListAccounts 依建立順序列出帳戶
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	// ListTransactions 依提交順序列出交易紀錄
	ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error)
	// Snapshot 取得跨帳戶一致的完整狀態
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Persister 持久化後端 (flat file / MySQL)
type Persister interface {
	// Save 整份覆寫
	Save(ctx context.Context, snapshot domain.Snapshot) error
	// Load 讀回完整狀態，儲存不存在時回傳空狀態
	Load(ctx context.Context) (domain.Snapshot, error)
}

// Journal 是 WAL 的介面 (pkg/wal.WAL)
type Journal interface {
	Write(v any) error
	ReadAll(callback func(jsonRaw []byte) error) error
	Rewrite(keep func(jsonRaw []byte) (bool, error)) error
}
