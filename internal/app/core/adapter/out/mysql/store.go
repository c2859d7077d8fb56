package mysql

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// batchSize 批次寫入筆數
const batchSize = 500

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	Number int64 `gorm:"primaryKey;autoIncrement:false"`
	// Position: 建立順序，讀回時依此排序
	Position  int64           `gorm:"index"`
	Balance   decimal.Decimal `gorm:"type:decimal(24,8);not null"`
	Kind      string          `gorm:"type:varchar(16);not null"`
	UpdatedAt int64           `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	// Position: 在 log 中的位置 (從 1 開始)，同時是主鍵
	Position      int64           `gorm:"primaryKey;autoIncrement:false"`
	AccountNumber int64           `gorm:"index"`
	Kind          string          `gorm:"type:varchar(16);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(24,8);not null"`
	CreatedAt     int64           `gorm:"autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLStore 以 MySQL 作為帳本的持久化後端
// Save 在同一個 DB Transaction 內清空並重寫兩張表
type MySQLStore struct {
	client *mysql.Client
	logger *logging.Logger
}

// NewMySQLStore 建立 MySQLStore
func NewMySQLStore(client *mysql.Client, logger *logging.Logger) *MySQLStore {
	return &MySQLStore{
		client: client,
		logger: logger.Named("mysql"),
	}
}

// Migrate 建立或更新資料表
func (s *MySQLStore) Migrate(ctx context.Context) error {
	if err := s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return fmt.Errorf("migrate: %w: %w", domain.ErrIOFailure, err)
	}
	return nil
}

// Save 整份覆寫
func (s *MySQLStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	accounts, transactions := toRows(snapshot)

	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&sqlTransaction{}).Error; err != nil {
			return err
		}
		if err := global.Delete(&sqlAccount{}).Error; err != nil {
			return err
		}
		if len(accounts) > 0 {
			if err := tx.CreateInBatches(accounts, batchSize).Error; err != nil {
				return err
			}
		}
		if len(transactions) > 0 {
			if err := tx.CreateInBatches(transactions, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save ledger: %w: %w", domain.ErrIOFailure, err)
	}
	return nil
}

// Load 讀回完整帳本，無法解析的資料列會被略過
func (s *MySQLStore) Load(ctx context.Context) (domain.Snapshot, error) {
	var accounts []sqlAccount
	if err := s.client.DB().WithContext(ctx).Order("position").Find(&accounts).Error; err != nil {
		return domain.Snapshot{}, fmt.Errorf("load accounts: %w: %w", domain.ErrIOFailure, err)
	}
	var transactions []sqlTransaction
	if err := s.client.DB().WithContext(ctx).Order("position").Find(&transactions).Error; err != nil {
		return domain.Snapshot{}, fmt.Errorf("load transactions: %w: %w", domain.ErrIOFailure, err)
	}

	snapshot, skipped := fromRows(accounts, transactions)
	for _, err := range skipped {
		s.logger.Warn("skipping malformed row", zap.Error(err))
	}
	return snapshot, nil
}

// toRows 將快照轉成資料列，Position 依快照順序從 1 編號
func toRows(snapshot domain.Snapshot) ([]sqlAccount, []sqlTransaction) {
	accounts := make([]sqlAccount, 0, len(snapshot.Accounts))
	for i, a := range snapshot.Accounts {
		accounts = append(accounts, sqlAccount{
			Number:   a.Number,
			Position: int64(i + 1),
			Balance:  a.Balance,
			Kind:     a.Kind.String(),
		})
	}
	transactions := make([]sqlTransaction, 0, len(snapshot.Transactions))
	for i, r := range snapshot.Transactions {
		transactions = append(transactions, sqlTransaction{
			Position:      int64(i + 1),
			AccountNumber: r.AccountNumber,
			Kind:          r.Kind.String(),
			Amount:        r.Amount,
		})
	}
	return accounts, transactions
}

// fromRows 將資料列轉回快照，回傳被略過的資料列錯誤
func fromRows(accounts []sqlAccount, transactions []sqlTransaction) (domain.Snapshot, []error) {
	var snapshot domain.Snapshot
	var skipped []error

	for _, row := range accounts {
		kind, err := domain.ParseAccountKind(row.Kind)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("account %d: %w", row.Number, err))
			continue
		}
		account, err := domain.NewAccount(row.Number, row.Balance, kind)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("account %d: %w", row.Number, err))
			continue
		}
		snapshot.Accounts = append(snapshot.Accounts, *account)
	}

	for _, row := range transactions {
		kind, err := domain.ParseTransactionKind(row.Kind)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("transaction %d: %w", row.Position, err))
			continue
		}
		record, err := domain.NewTransactionRecord(row.AccountNumber, kind, row.Amount)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("transaction %d: %w", row.Position, err))
			continue
		}
		snapshot.Transactions = append(snapshot.Transactions, record)
	}
	return snapshot, skipped
}

var _ usecase.Persister = (*MySQLStore)(nil)
