package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/resilient"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// 持久化後端
const (
	BackendFlatFile = "flatfile"
	BackendMySQL    = "mysql"
)

// 帳本引擎
const (
	EngineMutex     = "mutex"
	EngineSequencer = "sequencer"
)

// Config 服務設定
// 讀取順序: 預設值 -> yaml 檔 -> 環境變數
type Config struct {
	Ledger  LedgerConfig     `yaml:"ledger"`
	Storage StorageConfig    `yaml:"storage"`
	MySQL   mysql.Config     `yaml:"mysql"`
	GRPC    GRPCConfig       `yaml:"grpc"`
	HTTP    HTTPConfig       `yaml:"http"`
	Log     logging.Config   `yaml:"log"`
	Breaker resilient.Config `yaml:"breaker"`
}

// LedgerConfig 帳本引擎設定
type LedgerConfig struct {
	// Engine: mutex (帳戶鎖) 或 sequencer (單一 goroutine)
	Engine string `yaml:"engine"`
	// QueueSize: sequencer 輸送帶容量
	QueueSize int `yaml:"queue_size"`
}

// StorageConfig 持久化設定
type StorageConfig struct {
	// Backend: flatfile 或 mysql
	Backend          string `yaml:"backend"`
	AccountsFile     string `yaml:"accounts_file"`
	TransactionsFile string `yaml:"transactions_file"`
	// JournalFile: 空字串表示不使用 WAL
	JournalFile string `yaml:"journal_file"`
}

// GRPCConfig gRPC 設定
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// HTTPConfig 管理介面設定 (health / metrics / 查詢)
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default 回傳預設設定，不需要任何設定檔即可執行
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			Engine:    EngineMutex,
			QueueSize: 1024,
		},
		Storage: StorageConfig{
			Backend:          BackendFlatFile,
			AccountsFile:     "accounts.txt",
			TransactionsFile: "transactions.txt",
			JournalFile:      "journal.log",
		},
		MySQL: mysql.Config{}.WithDefaults(),
		GRPC: GRPCConfig{
			Addr: ":50051",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log:     logging.DefaultConfig(),
		Breaker: resilient.DefaultConfig(),
	}
}

// Load 載入設定
//
// 參數:
//
//	path: yaml 檔路徑，檔案不存在時只使用預設值與環境變數
//
// 回傳:
//
//	Config: 設定
//	error: 檔案無法解析或內容不合法
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	cfg.MySQL = cfg.MySQL.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 檢查設定
func (c Config) Validate() error {
	switch c.Ledger.Engine {
	case EngineMutex:
	case EngineSequencer:
		if c.Ledger.QueueSize < 0 {
			return errors.New("ledger: queue_size must not be negative")
		}
	default:
		return fmt.Errorf("ledger: unknown engine %q", c.Ledger.Engine)
	}

	switch c.Storage.Backend {
	case BackendFlatFile:
		if c.Storage.AccountsFile == "" || c.Storage.TransactionsFile == "" {
			return errors.New("storage: accounts_file and transactions_file are required")
		}
	case BackendMySQL:
		if c.MySQL.Host == "" || c.MySQL.DBName == "" {
			return errors.New("mysql: host and db_name are required")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Ledger.Engine = getEnvOrDefault("LEDGER_ENGINE", cfg.Ledger.Engine)
	cfg.Ledger.QueueSize = getEnvAsInt("LEDGER_QUEUE_SIZE", cfg.Ledger.QueueSize)

	cfg.Storage.Backend = getEnvOrDefault("LEDGER_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.AccountsFile = getEnvOrDefault("LEDGER_ACCOUNTS_FILE", cfg.Storage.AccountsFile)
	cfg.Storage.TransactionsFile = getEnvOrDefault("LEDGER_TRANSACTIONS_FILE", cfg.Storage.TransactionsFile)
	cfg.Storage.JournalFile = getEnvOrDefault("LEDGER_JOURNAL_FILE", cfg.Storage.JournalFile)

	cfg.MySQL.Host = getEnvOrDefault("LEDGER_DB_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("LEDGER_DB_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnvOrDefault("LEDGER_DB_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DBName = getEnvOrDefault("LEDGER_DB_NAME", cfg.MySQL.DBName)

	cfg.GRPC.Addr = getEnvOrDefault("LEDGER_GRPC_ADDR", cfg.GRPC.Addr)
	cfg.HTTP.Addr = getEnvOrDefault("LEDGER_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = getEnvAsDuration("LEDGER_HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Log.Level = getEnvOrDefault("LEDGER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LEDGER_LOG_FORMAT", cfg.Log.Format)

	cfg.Breaker.Timeout = getEnvAsDuration("LEDGER_BREAKER_TIMEOUT", cfg.Breaker.Timeout)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
