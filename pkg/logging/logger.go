package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 封裝 zap.Logger
type Logger struct {
	*zap.Logger
}

// Config 日誌設定
type Config struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: json 或 console
	Format string `yaml:"format"`
	// OutputPaths: 預設 stdout
	OutputPaths []string `yaml:"output_paths"`
	// Development: 開發模式 (彩色輸出、caller、stacktrace)
	Development bool `yaml:"development"`
}

// DefaultConfig 回傳預設設定
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// NewLogger 依設定建立 Logger
//
// 參數:
//
//	cfg: Config - 日誌設定
//
// 回傳值:
//
//	*Logger: 封裝後的 Logger
//	error: 設定不合法時回傳錯誤
func NewLogger(cfg Config) (*Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	format := cfg.Format
	if format == "" {
		format = "json"
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger}, nil
}

// NewNoOpLogger 丟棄所有輸出 (測試用)
func NewNoOpLogger() *Logger {
	return &Logger{zap.NewNop()}
}

// parseLevel 將字串轉為 zapcore.Level，無法辨識時使用 info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With 建立帶有額外欄位的子 Logger
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named 建立帶名稱的子 Logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}
