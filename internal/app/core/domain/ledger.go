package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt 一次成功提交的回條
type Receipt struct {
	// Sequence: 提交後 transaction log 的長度，同時作為全局順序號
	Sequence uint64
	// Records: 這次追加的紀錄 (轉帳為 TransferOut, TransferIn)
	Records []TransactionRecord
	// Accounts: 受影響帳戶在提交後的副本，依帳號遞增排序
	Accounts []Account
}

// BalanceOf 取得受影響帳戶提交後的餘額
func (r Receipt) BalanceOf(number int64) (decimal.Decimal, bool) {
	for _, a := range r.Accounts {
		if a.Number == number {
			return a.Balance, true
		}
	}
	return decimal.Zero, false
}

// Snapshot 帳本某一時間點的完整狀態
type Snapshot struct {
	Accounts     []Account
	Transactions []TransactionRecord
}

// JournalEntry WAL 中的一筆紀錄
// Posting 與 Account 只會有一個非 nil
type JournalEntry struct {
	Sequence    uint64    `json:"sequence"`
	OperationID uuid.UUID `json:"operation_id"`
	Posting     *Posting  `json:"posting,omitempty"`
	Account     *Account  `json:"account,omitempty"`
	CreatedAt   int64     `json:"created_at"`
}
