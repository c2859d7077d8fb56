package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// ErrCircuitOpen 斷路器開啟中，請求未送到後端
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config 斷路器設定
type Config struct {
	// MaxRequests: half-open 時允許通過的請求數
	MaxRequests uint32 `yaml:"max_requests"`
	// Interval: closed 狀態下清空計數的週期，0 表示不清空
	Interval time.Duration `yaml:"interval"`
	// Timeout: open 多久後轉為 half-open
	Timeout time.Duration `yaml:"timeout"`
	// ConsecutiveFailures: 連續失敗幾次後跳脫
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	// OperationTimeout: 單次 Save/Load 的逾時，0 表示不限制
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// DefaultConfig 回傳預設設定
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
		OperationTimeout:    5 * time.Second,
	}
}

// Persister 以斷路器保護另一個 Persister
// 後端持續失敗時直接拒絕，避免每筆交易都卡在存檔逾時
type Persister struct {
	next      usecase.Persister
	name      string
	cb        *gobreaker.CircuitBreaker
	timeout   time.Duration
	collector metrics.Collector
	logger    *logging.Logger
}

// NewPersister 建立 Persister
//
// 參數:
//
//	next: 實際的持久化後端
//	name: 斷路器名稱 (log / metrics 使用)
//	cfg: 斷路器設定
//	collector: 指標收集器
//	logger: logger
func NewPersister(next usecase.Persister, name string, cfg Config, collector metrics.Collector, logger *logging.Logger) *Persister {
	p := &Persister{
		next:      next,
		name:      name,
		timeout:   cfg.OperationTimeout,
		collector: collector,
		logger:    logger.Named("resilient").With(zap.String("breaker", name)),
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultConfig().ConsecutiveFailures
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			p.collector.RecordBreakerState(name, toBreakerState(to))
		},
	})
	return p
}

// Save 經過斷路器存檔
func (p *Persister) Save(ctx context.Context, snapshot domain.Snapshot) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.next.Save(ctx, snapshot)
	})
	return p.translate("save", err)
}

// Load 經過斷路器讀檔
func (p *Persister) Load(ctx context.Context) (domain.Snapshot, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	v, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.Load(ctx)
	})
	if err != nil {
		return domain.Snapshot{}, p.translate("load", err)
	}
	return v.(domain.Snapshot), nil
}

// State 目前的斷路器狀態
func (p *Persister) State() metrics.BreakerState {
	return toBreakerState(p.cb.State())
}

func (p *Persister) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

func (p *Persister) translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.logger.Warn("circuit breaker open - request rejected", zap.String("operation", op))
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIOFailure, ErrCircuitOpen)
	case errors.Is(err, domain.ErrIOFailure):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIOFailure, err)
	}
}

func toBreakerState(s gobreaker.State) metrics.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

var _ usecase.Persister = (*Persister)(nil)
