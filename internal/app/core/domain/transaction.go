package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易請求類型
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
	// 轉帳
	TransactionTypeTransfer TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "DEPOSIT"
	case TransactionTypeWithdraw:
		return "WITHDRAW"
	case TransactionTypeTransfer:
		return "TRANSFER"
	default:
		return fmt.Sprintf("TransactionType(%d)", uint8(t))
	}
}

// TransactionKind 交易紀錄類型 (寫入 transactions 檔的那一欄)
type TransactionKind uint8

const (
	TransactionKindDeposit     TransactionKind = 1
	TransactionKindWithdrawal  TransactionKind = 2
	TransactionKindTransferOut TransactionKind = 3
	TransactionKindTransferIn  TransactionKind = 4
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionKindDeposit:
		return "Deposit"
	case TransactionKindWithdrawal:
		return "Withdrawal"
	case TransactionKindTransferOut:
		return "Transfer Out"
	case TransactionKindTransferIn:
		return "Transfer In"
	default:
		return fmt.Sprintf("TransactionKind(%d)", uint8(k))
	}
}

// Valid 是否為已知類型
func (k TransactionKind) Valid() bool {
	return k >= TransactionKindDeposit && k <= TransactionKindTransferIn
}

// ParseTransactionKind 解析 "Deposit" / "Withdrawal" / "Transfer Out" / "Transfer In"
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch s {
	case "Deposit":
		return TransactionKindDeposit, nil
	case "Withdrawal":
		return TransactionKindWithdrawal, nil
	case "Transfer Out":
		return TransactionKindTransferOut, nil
	case "Transfer In":
		return TransactionKindTransferIn, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTransactionKind)
	}
}

// TransactionRecord 一筆已提交的交易紀錄
// 沒有 ID，身分就是它在 log 中的位置
type TransactionRecord struct {
	AccountNumber int64           `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          TransactionKind `json:"kind"`
}

// NewTransactionRecord 建立交易紀錄，金額必須 > 0
func NewTransactionRecord(accountNumber int64, kind TransactionKind, amount decimal.Decimal) (TransactionRecord, error) {
	if !kind.Valid() {
		return TransactionRecord{}, ErrInvalidTransactionKind
	}
	if !amount.IsPositive() {
		return TransactionRecord{}, ErrInvalidAmount
	}
	return TransactionRecord{
		AccountNumber: accountNumber,
		Amount:        amount,
		Kind:          kind,
	}, nil
}

// Posting 交易請求
// 存款只看 To，提款只看 From，轉帳兩邊都看
type Posting struct {
	// RefID: 外部追蹤號，用於冪等
	RefID  uuid.UUID       `json:"ref_id"`
	From   int64           `json:"from"`
	To     int64           `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionType `json:"type"`
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
// 自己轉給自己時只回傳一個
func (p *Posting) GetLockIDs() (ids []int64) {
	ids = make([]int64, 0, 2)
	switch p.Type {
	case TransactionTypeTransfer:
		switch {
		case p.From < p.To:
			ids = append(ids, p.From, p.To)
		case p.From > p.To:
			ids = append(ids, p.To, p.From)
		default:
			ids = append(ids, p.From)
		}
	case TransactionTypeDeposit:
		ids = append(ids, p.To)
	case TransactionTypeWithdraw:
		ids = append(ids, p.From)
	}
	return ids
}
