package mysql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 連線 MySQL，失敗時依設定重試
//
// 參數:
//
//	ctx: 取消時停止重試
//	cfg: 連線與連線池設定
//	log: 重試警告與 GORM 日誌
//
// 回傳:
//
//	*Client: 已通過 Ping 的客戶端
//	error: 重試用盡或 ctx 結束
func NewClient(ctx context.Context, cfg Config, log *logging.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	log = log.Named("mysql")

	gormConfig := &gorm.Config{
		// 帳本整份覆寫時會自己開 Transaction，其餘操作不需要預設事務
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(log, cfg.LogLevel),
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		db, err := open(ctx, cfg, gormConfig)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}

		log.Warn("connect failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("retry_interval", cfg.RetryInterval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect mysql: %w", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("connect mysql after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// open 建立連線、設定連線池並 Ping
func open(ctx context.Context, cfg Config, gormConfig *gorm.Config) (*Client, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Client{db: db}, nil
}

// DB 回傳底層的 *gorm.DB 實例
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter 讓 GORM 的輸出走 zap
type gormWriter struct {
	log *logging.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info(fmt.Sprintf(format, args...))
}

// newGormLogger level: silent, error (預設), warn, info
func newGormLogger(log *logging.Logger, level string) logger.Interface {
	return logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  parseGormLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

func parseGormLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "silent":
		return logger.Silent
	default:
		return logger.Error
	}
}
