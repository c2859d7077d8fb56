package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	accounts: 帳戶資料，每個帳戶各自一把鎖
//	log: 只能追加的交易紀錄
//	gate: 寫入操作持有讀鎖 (彼此可並行)，快照持有寫鎖，
//	      因此快照永遠不會看到做到一半的轉帳
type MutexLedger struct {
	accounts *AccountStore
	log      *TransactionLog
	gate     sync.RWMutex
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	snapshot: 啟動時載入的狀態 (可為空)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如快照中有重複帳號或負餘額)
func NewMutexLedger(snapshot domain.Snapshot) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts: NewAccountStore(),
		log:      NewTransactionLog(snapshot.Transactions...),
	}
	for _, account := range snapshot.Accounts {
		if _, err := ledger.accounts.Create(account.Number, account.Balance, account.Kind); err != nil {
			return nil, fmt.Errorf("restore account %d: %w", account.Number, err)
		}
	}
	return ledger, nil
}

// CreateAccount 建立帳戶
func (m *MutexLedger) CreateAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	m.gate.RLock()
	defer m.gate.RUnlock()
	return m.accounts.Create(number, initialBalance, kind)
}

// Deposit 存款
func (m *MutexLedger) Deposit(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error) {
	return m.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeDeposit, To: number, Amount: amount})
}

// Withdraw 提款
func (m *MutexLedger) Withdraw(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error) {
	return m.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeWithdraw, From: number, Amount: amount})
}

// Transfer 轉帳
func (m *MutexLedger) Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) (domain.Receipt, error) {
	return m.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeTransfer, From: from, To: to, Amount: amount})
}

// PostTransaction 處理交易請求
//
// 參數:
//
//	ctx: 上下文
//	posting: 交易請求物件
//
// 回傳:
//
//	domain.Receipt: 提交回條
//	error: 處理錯誤，發生錯誤時帳戶與 log 都不會有任何變動
//
// 驗證 -> 依帳號順序上鎖 -> 修改餘額 -> 追加紀錄 -> 釋放
func (m *MutexLedger) PostTransaction(ctx context.Context, posting *domain.Posting) (domain.Receipt, error) {
	if err := m.validate(posting); err != nil {
		return domain.Receipt{}, err
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	locked, err := m.accounts.lock(posting.GetLockIDs())
	if err != nil {
		return domain.Receipt{}, err
	}
	defer locked.unlock()

	var records []domain.TransactionRecord
	switch posting.Type {
	case domain.TransactionTypeDeposit:
		records, err = m.handleDeposit(locked, posting)
	case domain.TransactionTypeWithdraw:
		records, err = m.handleWithdraw(locked, posting)
	case domain.TransactionTypeTransfer:
		records, err = m.handleTransfer(locked, posting)
	}
	if err != nil {
		return domain.Receipt{}, err
	}

	sequence := m.log.Append(records...)
	return domain.Receipt{
		Sequence: sequence,
		Records:  records,
		Accounts: locked.copies(),
	}, nil
}

// validate 在動到任何狀態之前檢查金額、類型與帳戶是否存在
func (m *MutexLedger) validate(posting *domain.Posting) error {
	if !posting.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	switch posting.Type {
	case domain.TransactionTypeDeposit:
		if !m.accounts.Exists(posting.To) {
			return &domain.AccountNotFoundError{Number: posting.To}
		}
	case domain.TransactionTypeWithdraw:
		if !m.accounts.Exists(posting.From) {
			return &domain.AccountNotFoundError{Number: posting.From}
		}
	case domain.TransactionTypeTransfer:
		if !m.accounts.Exists(posting.From) {
			return &domain.AccountNotFoundError{Number: posting.From, Side: domain.SideSource}
		}
		if !m.accounts.Exists(posting.To) {
			return &domain.AccountNotFoundError{Number: posting.To, Side: domain.SideDestination}
		}
	default:
		return domain.ErrInvalidTransactionType
	}
	return nil
}

// handleDeposit 處理存款邏輯
func (m *MutexLedger) handleDeposit(locked *lockedAccounts, posting *domain.Posting) ([]domain.TransactionRecord, error) {
	if err := locked.get(posting.To).ApplyDelta(posting.Amount); err != nil {
		return nil, err
	}
	return []domain.TransactionRecord{
		{AccountNumber: posting.To, Kind: domain.TransactionKindDeposit, Amount: posting.Amount},
	}, nil
}

// handleWithdraw 處理提款邏輯
func (m *MutexLedger) handleWithdraw(locked *lockedAccounts, posting *domain.Posting) ([]domain.TransactionRecord, error) {
	if err := locked.get(posting.From).ApplyDelta(posting.Amount.Neg()); err != nil {
		return nil, err
	}
	return []domain.TransactionRecord{
		{AccountNumber: posting.From, Kind: domain.TransactionKindWithdrawal, Amount: posting.Amount},
	}, nil
}

// handleTransfer 處理轉帳邏輯
// 先扣款再入帳，只有扣款腿可能失敗
func (m *MutexLedger) handleTransfer(locked *lockedAccounts, posting *domain.Posting) ([]domain.TransactionRecord, error) {
	if err := locked.get(posting.From).ApplyDelta(posting.Amount.Neg()); err != nil {
		return nil, err
	}
	locked.get(posting.To).Credit(posting.Amount)
	return []domain.TransactionRecord{
		{AccountNumber: posting.From, Kind: domain.TransactionKindTransferOut, Amount: posting.Amount},
		{AccountNumber: posting.To, Kind: domain.TransactionKindTransferIn, Amount: posting.Amount},
	}, nil
}

// GetAccount 取得帳戶副本
func (m *MutexLedger) GetAccount(ctx context.Context, number int64) (domain.Account, error) {
	account, ok := m.accounts.Find(number)
	if !ok {
		return domain.Account{}, &domain.AccountNotFoundError{Number: number}
	}
	return account, nil
}

// GetAccountBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetAccountBalance(ctx context.Context, number int64) (decimal.Decimal, error) {
	account, err := m.GetAccount(ctx, number)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListAccounts 依建立順序列出帳戶 (一致快照)
func (m *MutexLedger) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	m.gate.Lock()
	defer m.gate.Unlock()
	return m.accounts.List(), nil
}

// ListTransactions 依提交順序列出交易紀錄
func (m *MutexLedger) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	return m.log.All(), nil
}

// Snapshot 擋住所有寫入後取得帳戶與紀錄
func (m *MutexLedger) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	m.gate.Lock()
	defer m.gate.Unlock()
	return domain.Snapshot{
		Accounts:     m.accounts.List(),
		Transactions: m.log.All(),
	}, nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
