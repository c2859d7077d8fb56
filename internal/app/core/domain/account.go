package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountKind 帳戶類型
// Savings 與 Current 目前行為完全相同，只作為資料保存
type AccountKind uint8

const (
	// 儲蓄帳戶
	AccountKindSavings AccountKind = 1
	// 活期帳戶
	AccountKindCurrent AccountKind = 2
)

// String 回傳檔案格式使用的名稱
func (k AccountKind) String() string {
	switch k {
	case AccountKindSavings:
		return "Savings"
	case AccountKindCurrent:
		return "Current"
	default:
		return fmt.Sprintf("AccountKind(%d)", uint8(k))
	}
}

// Valid 是否為已知類型
func (k AccountKind) Valid() bool {
	return k == AccountKindSavings || k == AccountKindCurrent
}

// ParseAccountKind 解析 "Savings" / "Current"
func ParseAccountKind(s string) (AccountKind, error) {
	switch s {
	case "Savings":
		return AccountKindSavings, nil
	case "Current":
		return AccountKindCurrent, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidAccountKind)
	}
}

// Account 帳戶
// 帳號建立後不可變更，餘額永遠 >= 0
type Account struct {
	Number  int64           `json:"number"`
	Balance decimal.Decimal `json:"balance"`
	Kind    AccountKind     `json:"kind"`
}

// NewAccount 建立帳戶，初始餘額不得為負
func NewAccount(number int64, balance decimal.Decimal, kind AccountKind) (*Account, error) {
	if balance.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if !kind.Valid() {
		return nil, ErrInvalidAccountKind
	}
	return &Account{
		Number:  number,
		Balance: balance,
		Kind:    kind,
	}, nil
}

// ApplyDelta 以 delta 調整餘額 (提款時 delta 為負)
// 結果若為負數則不修改並回傳 ErrInsufficientFunds
func (a *Account) ApplyDelta(delta decimal.Decimal) error {
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return ErrInsufficientFunds
	}
	a.Balance = next
	return nil
}

// Credit 入帳，amount 必須已驗證為正數
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return a.ApplyDelta(amount)
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return a.ApplyDelta(amount.Neg())
}
