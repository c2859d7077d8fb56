package flatfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// fieldSeparator 欄位分隔字元
const fieldSeparator = "|"

// FormatAccount 輸出 accountNumber|balance|kind
func FormatAccount(a domain.Account) string {
	return strconv.FormatInt(a.Number, 10) + fieldSeparator + a.Balance.String() + fieldSeparator + a.Kind.String()
}

// ParseAccount 解析一行 accountNumber|balance|kind
func ParseAccount(line string) (domain.Account, error) {
	fields, err := split(line)
	if err != nil {
		return domain.Account{}, err
	}
	number, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account number %q: %w", fields[0], err)
	}
	balance, err := decimal.NewFromString(fields[1])
	if err != nil {
		return domain.Account{}, fmt.Errorf("balance %q: %w", fields[1], err)
	}
	kind, err := domain.ParseAccountKind(fields[2])
	if err != nil {
		return domain.Account{}, err
	}
	account, err := domain.NewAccount(number, balance, kind)
	if err != nil {
		return domain.Account{}, fmt.Errorf("balance %q: %w", fields[1], err)
	}
	return *account, nil
}

// FormatTransaction 輸出 accountNumber|kind|amount
func FormatTransaction(r domain.TransactionRecord) string {
	return strconv.FormatInt(r.AccountNumber, 10) + fieldSeparator + r.Kind.String() + fieldSeparator + r.Amount.String()
}

// ParseTransaction 解析一行 accountNumber|kind|amount
func ParseTransaction(line string) (domain.TransactionRecord, error) {
	fields, err := split(line)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	number, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("account number %q: %w", fields[0], err)
	}
	kind, err := domain.ParseTransactionKind(fields[1])
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	amount, err := decimal.NewFromString(fields[2])
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("amount %q: %w", fields[2], err)
	}
	return domain.NewTransactionRecord(number, kind, amount)
}

func split(line string) ([]string, error) {
	fields := strings.Split(line, fieldSeparator)
	if len(fields) != 3 {
		return nil, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}
