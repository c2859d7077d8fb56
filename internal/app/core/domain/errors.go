package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount 金額不合法 (交易金額 <= 0 或初始餘額 < 0)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount 帳戶已存在
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrIOFailure 持久化讀寫失敗
	ErrIOFailure = errors.New("persistence io failure")

	// ErrInvalidAccountKind 未知的帳戶類型
	ErrInvalidAccountKind = errors.New("invalid account kind")

	// ErrInvalidTransactionKind 未知的交易紀錄類型
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")

	// ErrInvalidTransactionType 未知的交易請求類型
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

// 轉帳時用來標示缺少的是哪一邊
const (
	SideSource      = "source"
	SideDestination = "destination"
)

// AccountNotFoundError 帶有帳號與方向資訊的 ErrAccountNotFound
type AccountNotFoundError struct {
	Number int64
	// Side 只有轉帳會填，其餘為空字串
	Side string
}

func (e *AccountNotFoundError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("account %d: %s", e.Number, ErrAccountNotFound)
	}
	return fmt.Sprintf("%s account %d: %s", e.Side, e.Number, ErrAccountNotFound)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

// ErrorKind 將錯誤分類成固定字串，給 log / metrics / RPC 回應使用
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrDuplicateAccount):
		return "duplicate_account"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrIOFailure):
		return "io_failure"
	case errors.Is(err, ErrInvalidAccountKind),
		errors.Is(err, ErrInvalidTransactionKind),
		errors.Is(err, ErrInvalidTransactionType):
		return "invalid_kind"
	default:
		return "unknown"
	}
}
