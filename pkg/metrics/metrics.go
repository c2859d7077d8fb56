package metrics

import (
	"time"
)

// Collector 帳本指標收集介面
// 實作可以輸出到 Prometheus 或其他後端
type Collector interface {
	// RecordOperation 記錄一次帳務操作，errorKind 為 "none" 表示成功
	RecordOperation(op string, errorKind string, duration time.Duration)
	// RecordPersist 記錄一次持久化
	RecordPersist(backend string, success bool, duration time.Duration)
	// RecordJournalReplay 記錄啟動時從 WAL 重放的筆數
	RecordJournalReplay(entries int)
	// RecordBreakerState 記錄斷路器狀態
	RecordBreakerState(name string, state BreakerState)
}

// BreakerState 斷路器狀態
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector 不做任何事，預設使用
type NoOpCollector struct{}

func (NoOpCollector) RecordOperation(op string, errorKind string, duration time.Duration) {}

func (NoOpCollector) RecordPersist(backend string, success bool, duration time.Duration) {}

func (NoOpCollector) RecordJournalReplay(entries int) {}

func (NoOpCollector) RecordBreakerState(name string, state BreakerState) {}
