package memory

import (
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// TransactionLog 只能追加的交易紀錄
type TransactionLog struct {
	mu      sync.RWMutex
	records []domain.TransactionRecord
}

// NewTransactionLog 以既有紀錄建立 log (載入時使用)
func NewTransactionLog(records ...domain.TransactionRecord) *TransactionLog {
	l := &TransactionLog{
		records: make([]domain.TransactionRecord, 0, len(records)),
	}
	l.records = append(l.records, records...)
	return l
}

// Append 一次追加多筆紀錄，保證彼此相鄰
// 回傳追加後的長度，作為這次提交的 Sequence
func (l *TransactionLog) Append(records ...domain.TransactionRecord) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return uint64(len(l.records))
}

// All 依追加順序回傳所有紀錄的副本
func (l *TransactionLog) All() []domain.TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.TransactionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len 紀錄筆數
func (l *TransactionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
