package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// ErrLedgerStopped 核心迴圈已停止
var ErrLedgerStopped = errors.New("ledger stopped")

// command 交給核心迴圈執行的工作，done 讓呼叫端等待結果
type command struct {
	fn   func()
	done chan struct{}
}

// SequencerLedger 單一 goroutine 處理所有讀寫 (LMAX 風格)
//
// 呼叫端 -> Channel -> Run Loop (唯一可以碰狀態的地方) -> done -> 呼叫端
//
// 狀態不需要任何鎖，快照與轉帳天然互斥
type SequencerLedger struct {
	accounts map[int64]*domain.Account
	order    []int64
	log      *TransactionLog

	// 輸送帶
	commands chan *command
	stopped  chan struct{}
	// Pool 減少 GC 壓力
	commandPool sync.Pool
}

// NewSequencerLedger 建立 SequencerLedger，需要呼叫 Start 才會開始處理
//
// 參數:
//
//	snapshot: 啟動時載入的狀態
//	buffer: 輸送帶容量
//
// 回傳:
//
//	*SequencerLedger: 實例
//	error: 快照中有重複帳號或不合法的帳戶
func NewSequencerLedger(snapshot domain.Snapshot, buffer int) (*SequencerLedger, error) {
	l := &SequencerLedger{
		accounts: make(map[int64]*domain.Account, len(snapshot.Accounts)),
		order:    make([]int64, 0, len(snapshot.Accounts)),
		log:      NewTransactionLog(snapshot.Transactions...),
		commands: make(chan *command, buffer),
		stopped:  make(chan struct{}),
		commandPool: sync.Pool{
			New: func() interface{} {
				return &command{done: make(chan struct{}, 1)}
			},
		},
	}
	for _, a := range snapshot.Accounts {
		if _, err := l.create(a.Number, a.Balance, a.Kind); err != nil {
			return nil, fmt.Errorf("restore account %d: %w", a.Number, err)
		}
	}
	return l, nil
}

// Start 啟動核心迴圈，ctx 結束時處理完已排隊的工作後停止
func (l *SequencerLedger) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *SequencerLedger) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case cmd := <-l.commands:
			cmd.fn()
			cmd.done <- struct{}{}
		}
	}
}

func (l *SequencerLedger) drain() {
	for {
		select {
		case cmd := <-l.commands:
			cmd.fn()
			cmd.done <- struct{}{}
		default:
			return
		}
	}
}

// execute 把 fn 放上輸送帶並等待執行完成
func (l *SequencerLedger) execute(ctx context.Context, fn func()) error {
	select {
	case <-l.stopped:
		return ErrLedgerStopped
	default:
	}

	cmd := l.commandPool.Get().(*command)
	cmd.fn = fn

	select {
	case l.commands <- cmd:
	case <-l.stopped:
		l.commandPool.Put(cmd)
		return ErrLedgerStopped
	case <-ctx.Done():
		l.commandPool.Put(cmd)
		return ctx.Err()
	}

	// 排進去之後不理會 ctx，否則可能回傳錯誤但交易其實已經提交
	select {
	case <-cmd.done:
	case <-l.stopped:
		select {
		case <-cmd.done:
		default:
			// 迴圈結束後才排進去，不會被執行，也不能放回 Pool
			return ErrLedgerStopped
		}
	}
	cmd.fn = nil
	l.commandPool.Put(cmd)
	return nil
}

// CreateAccount 建立帳戶
func (l *SequencerLedger) CreateAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	var account domain.Account
	var err error
	if execErr := l.execute(ctx, func() {
		account, err = l.create(number, initialBalance, kind)
	}); execErr != nil {
		return domain.Account{}, execErr
	}
	return account, err
}

func (l *SequencerLedger) create(number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	account, err := domain.NewAccount(number, initialBalance, kind)
	if err != nil {
		return domain.Account{}, err
	}
	if _, ok := l.accounts[number]; ok {
		return domain.Account{}, fmt.Errorf("account %d: %w", number, domain.ErrDuplicateAccount)
	}
	l.accounts[number] = account
	l.order = append(l.order, number)
	return *account, nil
}

// PostTransaction 處理交易請求
func (l *SequencerLedger) PostTransaction(ctx context.Context, posting *domain.Posting) (domain.Receipt, error) {
	var receipt domain.Receipt
	var err error
	if execErr := l.execute(ctx, func() {
		receipt, err = l.apply(posting)
	}); execErr != nil {
		return domain.Receipt{}, execErr
	}
	return receipt, err
}

// apply 在核心迴圈中執行，先驗證再修改，失敗時不留下任何變動
func (l *SequencerLedger) apply(posting *domain.Posting) (domain.Receipt, error) {
	if !posting.Amount.IsPositive() {
		return domain.Receipt{}, domain.ErrInvalidAmount
	}

	var records []domain.TransactionRecord
	switch posting.Type {
	case domain.TransactionTypeDeposit:
		to, ok := l.accounts[posting.To]
		if !ok {
			return domain.Receipt{}, &domain.AccountNotFoundError{Number: posting.To}
		}
		if err := to.ApplyDelta(posting.Amount); err != nil {
			return domain.Receipt{}, err
		}
		records = append(records, domain.TransactionRecord{AccountNumber: posting.To, Kind: domain.TransactionKindDeposit, Amount: posting.Amount})
	case domain.TransactionTypeWithdraw:
		from, ok := l.accounts[posting.From]
		if !ok {
			return domain.Receipt{}, &domain.AccountNotFoundError{Number: posting.From}
		}
		if err := from.ApplyDelta(posting.Amount.Neg()); err != nil {
			return domain.Receipt{}, err
		}
		records = append(records, domain.TransactionRecord{AccountNumber: posting.From, Kind: domain.TransactionKindWithdrawal, Amount: posting.Amount})
	case domain.TransactionTypeTransfer:
		from, ok := l.accounts[posting.From]
		if !ok {
			return domain.Receipt{}, &domain.AccountNotFoundError{Number: posting.From, Side: domain.SideSource}
		}
		to, ok := l.accounts[posting.To]
		if !ok {
			return domain.Receipt{}, &domain.AccountNotFoundError{Number: posting.To, Side: domain.SideDestination}
		}
		if err := from.ApplyDelta(posting.Amount.Neg()); err != nil {
			return domain.Receipt{}, err
		}
		to.Credit(posting.Amount)
		records = append(records,
			domain.TransactionRecord{AccountNumber: posting.From, Kind: domain.TransactionKindTransferOut, Amount: posting.Amount},
			domain.TransactionRecord{AccountNumber: posting.To, Kind: domain.TransactionKindTransferIn, Amount: posting.Amount},
		)
	default:
		return domain.Receipt{}, domain.ErrInvalidTransactionType
	}

	ids := posting.GetLockIDs()
	accounts := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, *l.accounts[id])
	}

	return domain.Receipt{
		Sequence: l.log.Append(records...),
		Records:  records,
		Accounts: accounts,
	}, nil
}

// GetAccount 取得帳戶副本
func (l *SequencerLedger) GetAccount(ctx context.Context, number int64) (domain.Account, error) {
	var account domain.Account
	var ok bool
	if err := l.execute(ctx, func() {
		var a *domain.Account
		if a, ok = l.accounts[number]; ok {
			account = *a
		}
	}); err != nil {
		return domain.Account{}, err
	}
	if !ok {
		return domain.Account{}, &domain.AccountNotFoundError{Number: number}
	}
	return account, nil
}

// ListAccounts 依建立順序列出帳戶
func (l *SequencerLedger) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	err := l.execute(ctx, func() {
		accounts = l.list()
	})
	return accounts, err
}

func (l *SequencerLedger) list() []domain.Account {
	accounts := make([]domain.Account, 0, len(l.order))
	for _, number := range l.order {
		accounts = append(accounts, *l.accounts[number])
	}
	return accounts
}

// ListTransactions 依提交順序列出交易紀錄
// TransactionLog 本身有鎖，不需要排隊
func (l *SequencerLedger) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	return l.log.All(), nil
}

// Snapshot 取得完整狀態
func (l *SequencerLedger) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := l.execute(ctx, func() {
		snapshot = domain.Snapshot{
			Accounts:     l.list(),
			Transactions: l.log.All(),
		}
	})
	return snapshot, err
}

var _ usecase.Ledger = (*SequencerLedger)(nil)
