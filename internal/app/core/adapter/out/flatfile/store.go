package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

const fileMode fs.FileMode = 0644

// Store 把帳本存成兩個文字檔
//
//	accounts:     accountNumber|balance|kind
//	transactions: accountNumber|kind|amount
//
// 每次 Save 都整份覆寫，兩個檔案一起提交:
//
//	寫入兩個 .tmp (fsync) -> 建立 commit 標記 -> 兩次 rename -> 刪除標記
//
// 標記存在代表兩個 .tmp 都已完整落地，Load/Save 會先把剩下的 rename 做完。
// 標記建立前失敗則原檔完全不動，兩個檔案永遠屬於同一次 Save。
type Store struct {
	accountsPath     string
	transactionsPath string
	logger           *logging.Logger
}

// NewStore 建立 flat file Store
func NewStore(accountsPath, transactionsPath string, logger *logging.Logger) *Store {
	return &Store{
		accountsPath:     accountsPath,
		transactionsPath: transactionsPath,
		logger:           logger.Named("flatfile"),
	}
}

// Save 覆寫兩個檔案
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var accounts bytes.Buffer
	for _, a := range snapshot.Accounts {
		accounts.WriteString(FormatAccount(a))
		accounts.WriteByte('\n')
	}
	var transactions bytes.Buffer
	for _, r := range snapshot.Transactions {
		transactions.WriteString(FormatTransaction(r))
		transactions.WriteByte('\n')
	}

	// 上一次 Save 若停在 rename 中間，先補完再覆寫 .tmp
	if err := s.finishPending(); err != nil {
		return err
	}

	if err := writeSync(tmpPath(s.accountsPath), accounts.Bytes()); err != nil {
		return fmt.Errorf("save accounts: %w: %w", domain.ErrIOFailure, err)
	}
	if err := writeSync(tmpPath(s.transactionsPath), transactions.Bytes()); err != nil {
		os.Remove(tmpPath(s.accountsPath))
		return fmt.Errorf("save transactions: %w: %w", domain.ErrIOFailure, err)
	}
	if err := writeSync(s.commitPath(), []byte(fmt.Sprintf("%d\n", len(snapshot.Transactions)))); err != nil {
		os.Remove(tmpPath(s.accountsPath))
		os.Remove(tmpPath(s.transactionsPath))
		return fmt.Errorf("save commit marker: %w: %w", domain.ErrIOFailure, err)
	}
	return s.finishPending()
}

// commitPath commit 標記放在 accounts 檔旁邊
func (s *Store) commitPath() string {
	return s.accountsPath + ".commit"
}

func tmpPath(path string) string {
	return path + ".tmp"
}

// finishPending 標記存在時把兩個 .tmp rename 成正式檔並移除標記
// .tmp 已不存在代表該檔案先前已 rename 完成
func (s *Store) finishPending() error {
	if _, err := os.Stat(s.commitPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat commit marker: %w: %w", domain.ErrIOFailure, err)
	}

	for _, path := range []string{s.accountsPath, s.transactionsPath} {
		err := os.Rename(tmpPath(path), path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("commit %s: %w: %w", path, domain.ErrIOFailure, err)
		}
	}
	if err := os.Remove(s.commitPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove commit marker: %w: %w", domain.ErrIOFailure, err)
	}
	return nil
}

// Load 讀回兩個檔案
// 檔案不存在等同空帳本；格式錯誤的行會被略過並記錄 warning
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	if err := s.finishPending(); err != nil {
		return domain.Snapshot{}, err
	}

	var snapshot domain.Snapshot
	seen := make(map[int64]struct{})
	err := s.scan(s.accountsPath, func(lineNo int, line string) {
		account, err := ParseAccount(line)
		if err != nil {
			s.skip(s.accountsPath, lineNo, err)
			return
		}
		if _, dup := seen[account.Number]; dup {
			s.skip(s.accountsPath, lineNo, fmt.Errorf("account %d: %w", account.Number, domain.ErrDuplicateAccount))
			return
		}
		seen[account.Number] = struct{}{}
		snapshot.Accounts = append(snapshot.Accounts, account)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	err = s.scan(s.transactionsPath, func(lineNo int, line string) {
		record, err := ParseTransaction(line)
		if err != nil {
			s.skip(s.transactionsPath, lineNo, err)
			return
		}
		snapshot.Transactions = append(snapshot.Transactions, record)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.logger.Info("ledger loaded",
		zap.Int("accounts", len(snapshot.Accounts)),
		zap.Int("transactions", len(snapshot.Transactions)),
	)
	return snapshot, nil
}

// scan 逐行讀取，空白行略過
func (s *Store) scan(path string, fn func(lineNo int, line string)) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	return nil
}

func (s *Store) skip(path string, lineNo int, err error) {
	s.logger.Warn("skipping malformed line",
		zap.String("file", path),
		zap.Int("line", lineNo),
		zap.Error(err),
	)
}

// writeSync 建立目錄後寫入檔案並 fsync
func writeSync(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

var _ usecase.Persister = (*Store)(nil)
