package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// CoreUseCase 是核心業務邏輯層
//
// 每一個寫入操作的流程:
//
//	Ledger 提交 -> 寫入 Journal -> 整份 Save -> 壓縮 Journal
//
// Save 失敗時記憶體中的變更仍然有效，回傳 ErrIOFailure 與回條，
// 下一次成功的 Save (或重啟時的 Journal 重放) 會補上
type CoreUseCase struct {
	ledger    Ledger
	persister Persister
	journal   Journal
	logger    *logging.Logger
	collector metrics.Collector
	backend   string

	// persistMu 讓 Snapshot + Save + 壓縮 依序執行，存檔內容只會前進
	persistMu sync.Mutex

	inflight  singleflight.Group
	mu        sync.Mutex
	processed map[uuid.UUID]domain.Receipt
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithJournal 啟用 WAL
func WithJournal(journal Journal) Option {
	return func(c *CoreUseCase) {
		c.journal = journal
	}
}

// WithLogger 設定 logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = logger
	}
}

// WithCollector 設定指標收集器
func WithCollector(collector metrics.Collector) Option {
	return func(c *CoreUseCase) {
		c.collector = collector
	}
}

// WithBackendName 設定持久化後端名稱 (metrics label)
func WithBackendName(name string) Option {
	return func(c *CoreUseCase) {
		c.backend = name
	}
}

// NewCoreUseCase 建立 CoreUseCase
//
// 參數:
//
//	ledger: 帳務引擎
//	persister: 持久化後端
//	opts: 其他設定
//
// 回傳:
//
//	*CoreUseCase: CoreUseCase 實例
func NewCoreUseCase(ledger Ledger, persister Persister, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger:    ledger,
		persister: persister,
		logger:    logging.NewNoOpLogger(),
		collector: metrics.NoOpCollector{},
		backend:   "default",
		processed: make(map[uuid.UUID]domain.Receipt),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("core")
	return c
}

// CreateAccount 建立帳戶並存檔
func (c *CoreUseCase) CreateAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	start := time.Now()
	account, err := c.createAccount(ctx, number, initialBalance, kind)
	c.collector.RecordOperation("create_account", domain.ErrorKind(err), time.Since(start))
	return account, err
}

func (c *CoreUseCase) createAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	// 以建立前的 log 長度當作 Sequence，重放時排在之後引用它的交易之前
	transactions, err := c.ledger.ListTransactions(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := c.ledger.CreateAccount(ctx, number, initialBalance, kind)
	if err != nil {
		c.logger.Info("create account rejected",
			zap.Int64("account", number),
			zap.String("error_kind", domain.ErrorKind(err)),
			zap.Error(err),
		)
		return domain.Account{}, err
	}

	entry := domain.JournalEntry{
		Sequence:    uint64(len(transactions)),
		OperationID: uuid.New(),
		Account:     &account,
		CreatedAt:   time.Now().UnixMilli(),
	}
	c.logger.Info("account created",
		zap.Int64("account", account.Number),
		zap.String("kind", account.Kind.String()),
		zap.String("amount", account.Balance.String()),
	)
	return account, c.durable(ctx, entry)
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error) {
	return c.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeDeposit, To: number, Amount: amount})
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error) {
	return c.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeWithdraw, From: number, Amount: amount})
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) (domain.Receipt, error) {
	return c.PostTransaction(ctx, &domain.Posting{Type: domain.TransactionTypeTransfer, From: from, To: to, Amount: amount})
}

type postResult struct {
	receipt domain.Receipt
	err     error
}

// PostTransaction 處理交易
//
// RefID 不為空時具備冪等性:
//   - 已成功提交過的 RefID 直接回傳當時的回條
//   - 同時進來的相同 RefID 只會執行一次
func (c *CoreUseCase) PostTransaction(ctx context.Context, posting *domain.Posting) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := c.postTransaction(ctx, posting)
	c.collector.RecordOperation(operationName(posting.Type), domain.ErrorKind(err), time.Since(start))
	return receipt, err
}

func (c *CoreUseCase) postTransaction(ctx context.Context, posting *domain.Posting) (domain.Receipt, error) {
	if posting.RefID == uuid.Nil {
		return c.commit(ctx, posting)
	}

	if receipt, ok := c.lookup(posting.RefID); ok {
		c.logger.Debug("duplicate ref_id", zap.String("ref_id", posting.RefID.String()))
		return receipt, nil
	}

	v, _, _ := c.inflight.Do(posting.RefID.String(), func() (interface{}, error) {
		// 排隊期間可能已經有人完成
		if receipt, ok := c.lookup(posting.RefID); ok {
			return postResult{receipt: receipt}, nil
		}
		receipt, err := c.commit(ctx, posting)
		if receipt.Sequence > 0 {
			c.mu.Lock()
			c.processed[posting.RefID] = receipt
			c.mu.Unlock()
		}
		return postResult{receipt: receipt, err: err}, nil
	})
	result := v.(postResult)
	return result.receipt, result.err
}

func (c *CoreUseCase) lookup(refID uuid.UUID) (domain.Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.processed[refID]
	return receipt, ok
}

// commit 交給 Ledger 提交後確保落地
// 回傳的 Receipt.Sequence > 0 代表 Ledger 已經提交
func (c *CoreUseCase) commit(ctx context.Context, posting *domain.Posting) (domain.Receipt, error) {
	receipt, err := c.ledger.PostTransaction(ctx, posting)
	if err != nil {
		c.logger.Info("transaction rejected",
			zap.String("type", posting.Type.String()),
			zap.Int64("from", posting.From),
			zap.Int64("to", posting.To),
			zap.String("amount", posting.Amount.String()),
			zap.String("error_kind", domain.ErrorKind(err)),
			zap.Error(err),
		)
		return domain.Receipt{}, err
	}

	operationID := posting.RefID
	if operationID == uuid.Nil {
		operationID = uuid.New()
	}
	committed := *posting
	committed.RefID = operationID
	entry := domain.JournalEntry{
		Sequence:    receipt.Sequence,
		OperationID: operationID,
		Posting:     &committed,
		CreatedAt:   time.Now().UnixMilli(),
	}
	c.logger.Debug("transaction committed",
		zap.String("type", posting.Type.String()),
		zap.Uint64("sequence", receipt.Sequence),
		zap.String("amount", posting.Amount.String()),
	)
	return receipt, c.durable(ctx, entry)
}

// durable 寫 Journal 後存檔
// Journal 寫入失敗只記 log，是否回報錯誤由存檔結果決定
func (c *CoreUseCase) durable(ctx context.Context, entry domain.JournalEntry) error {
	if c.journal != nil {
		if err := c.journal.Write(entry); err != nil {
			c.logger.Error("journal write failed", zap.Uint64("sequence", entry.Sequence), zap.Error(err))
		}
	}
	return c.Persist(ctx)
}

// Persist 將目前完整狀態存檔，成功後壓縮 Journal
func (c *CoreUseCase) Persist(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	snapshot, err := c.ledger.Snapshot(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.persister.Save(ctx, snapshot)
	c.collector.RecordPersist(c.backend, err == nil, time.Since(start))
	if err != nil {
		c.logger.Error("save failed",
			zap.Int("accounts", len(snapshot.Accounts)),
			zap.Int("transactions", len(snapshot.Transactions)),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrIOFailure) {
			err = fmt.Errorf("save: %w: %w", domain.ErrIOFailure, err)
		}
		return err
	}

	if c.journal != nil {
		if err := c.compact(snapshot); err != nil {
			// 存檔已成功，Journal 只是多留幾筆，重放時會被略過
			c.logger.Warn("journal compaction failed", zap.Error(err))
		}
	}
	return nil
}

// compact 移除已經包含在 snapshot 中的 Journal 紀錄
func (c *CoreUseCase) compact(snapshot domain.Snapshot) error {
	saved := uint64(len(snapshot.Transactions))
	accounts := make(map[int64]struct{}, len(snapshot.Accounts))
	for _, a := range snapshot.Accounts {
		accounts[a.Number] = struct{}{}
	}
	return c.journal.Rewrite(func(jsonRaw []byte) (bool, error) {
		var entry domain.JournalEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return false, nil
		}
		if entry.Account != nil {
			_, ok := accounts[entry.Account.Number]
			return !ok, nil
		}
		return entry.Sequence > saved, nil
	})
}

// Recover 重放 Journal 中尚未存檔的操作
// 呼叫前 Ledger 必須已經以 Persister.Load 的結果建立
//
// 回傳:
//
//	int: 重放的筆數
//	error: 讀取 Journal 或重放後存檔失敗
func (c *CoreUseCase) Recover(ctx context.Context) (int, error) {
	if c.journal == nil {
		return 0, nil
	}

	var entries []domain.JournalEntry
	err := c.journal.ReadAll(func(jsonRaw []byte) error {
		var entry domain.JournalEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			c.logger.Warn("skipping malformed journal entry", zap.Error(err))
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read journal: %w: %w", domain.ErrIOFailure, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})

	transactions, err := c.ledger.ListTransactions(ctx)
	if err != nil {
		return 0, err
	}
	// Persister 保證兩份資料屬於同一次 Save，log 長度即為存檔位置
	base := uint64(len(transactions))

	replayed := 0
	for _, entry := range entries {
		switch {
		case entry.Account != nil:
			if _, err := c.ledger.GetAccount(ctx, entry.Account.Number); err == nil {
				continue
			}
			if _, err := c.ledger.CreateAccount(ctx, entry.Account.Number, entry.Account.Balance, entry.Account.Kind); err != nil {
				c.logger.Warn("journal replay failed",
					zap.Int64("account", entry.Account.Number),
					zap.Error(err),
				)
				continue
			}
			replayed++
		case entry.Posting != nil:
			if entry.Sequence <= base {
				continue
			}
			receipt, err := c.ledger.PostTransaction(ctx, entry.Posting)
			if err != nil {
				c.logger.Warn("journal replay failed",
					zap.Uint64("sequence", entry.Sequence),
					zap.String("error_kind", domain.ErrorKind(err)),
					zap.Error(err),
				)
				continue
			}
			if receipt.Sequence != entry.Sequence {
				c.logger.Warn("journal replay sequence drift",
					zap.Uint64("sequence", entry.Sequence),
					zap.Uint64("replayed_as", receipt.Sequence),
				)
			}
			c.mu.Lock()
			c.processed[entry.OperationID] = receipt
			c.mu.Unlock()
			replayed++
		}
	}

	c.collector.RecordJournalReplay(replayed)
	if replayed == 0 {
		return 0, nil
	}
	c.logger.Info("journal replayed", zap.Int("entries", replayed))
	return replayed, c.Persist(ctx)
}

// LogCorruptJournalLine 給 wal.WithCorruptHandler 使用，被略過的行記 warning
func LogCorruptJournalLine(logger *logging.Logger) func(line int, raw []byte) {
	logger = logger.Named("journal")
	return func(line int, raw []byte) {
		logger.Warn("skipping corrupt journal line",
			zap.Int("line", line),
			zap.ByteString("raw", raw),
		)
	}
}

// GetAccount 取得帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, number int64) (domain.Account, error) {
	return c.ledger.GetAccount(ctx, number)
}

// GetAccountBalance 取得帳戶餘額
func (c *CoreUseCase) GetAccountBalance(ctx context.Context, number int64) (decimal.Decimal, error) {
	account, err := c.ledger.GetAccount(ctx, number)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListAccounts 列出所有帳戶
func (c *CoreUseCase) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return c.ledger.ListAccounts(ctx)
}

// ListTransactions 列出所有交易紀錄
func (c *CoreUseCase) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	return c.ledger.ListTransactions(ctx)
}

func operationName(t domain.TransactionType) string {
	switch t {
	case domain.TransactionTypeDeposit:
		return "deposit"
	case domain.TransactionTypeWithdraw:
		return "withdraw"
	case domain.TransactionTypeTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}
