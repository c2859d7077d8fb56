package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Bank 選單會用到的操作 (usecase.CoreUseCase)
type Bank interface {
	CreateAccount(ctx context.Context, number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error)
	Deposit(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error)
	Withdraw(ctx context.Context, number int64, amount decimal.Decimal) (domain.Receipt, error)
	Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) (domain.Receipt, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error)
}

// errInvalidInput 輸入無法解析
var errInvalidInput = errors.New("invalid input")

// Menu 互動式選單
// 每個操作的錯誤都會印出並回到選單，只有輸入結束或選擇離開才會結束
type Menu struct {
	bank Bank
	in   *bufio.Scanner
	out  io.Writer
}

// NewMenu 建立互動式選單
//
// 參數:
//
//	bank: 帳務操作
//	in: 使用者輸入
//	out: 選單與結果輸出
//
// 回傳:
//
//	*Menu: 選單實例
func NewMenu(bank Bank, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		bank: bank,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

const menuText = `
Banking System
1. Create Account
2. Deposit Money
3. Withdraw Money
4. Transfer Money
5. Display All Accounts
6. Display All Transactions
7. Exit
`

// Run 執行選單直到離開或輸入結束
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprint(m.out, menuText)
		choice, err := m.prompt("Enter your choice: ")
		if err != nil {
			return ignoreEOF(err)
		}

		switch choice {
		case "1":
			err = m.createAccount(ctx)
		case "2":
			err = m.deposit(ctx)
		case "3":
			err = m.withdraw(ctx)
		case "4":
			err = m.transfer(ctx)
		case "5":
			err = m.displayAccounts(ctx)
		case "6":
			err = m.displayTransactions(ctx)
		case "7":
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid choice.")
			continue
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		m.report(err)
	}
}

func (m *Menu) createAccount(ctx context.Context) error {
	number, err := m.promptInt("Enter account number: ")
	if err != nil {
		return err
	}
	balance, err := m.promptDecimal("Enter balance: ")
	if err != nil {
		return err
	}
	kindStr, err := m.prompt("Enter account type (1: Savings, 2: Current): ")
	if err != nil {
		return err
	}
	var kind domain.AccountKind
	switch kindStr {
	case "1":
		kind = domain.AccountKindSavings
	case "2":
		kind = domain.AccountKindCurrent
	default:
		return fmt.Errorf("%q: %w", kindStr, domain.ErrInvalidAccountKind)
	}

	account, err := m.bank.CreateAccount(ctx, number, balance, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Account %d created (%s, balance %s).\n", account.Number, account.Kind, account.Balance)
	return nil
}

func (m *Menu) deposit(ctx context.Context) error {
	number, err := m.promptInt("Enter account number: ")
	if err != nil {
		return err
	}
	amount, err := m.promptDecimal("Enter amount to deposit: ")
	if err != nil {
		return err
	}
	receipt, err := m.bank.Deposit(ctx, number, amount)
	if err != nil {
		return err
	}
	m.printBalance(receipt, number)
	return nil
}

func (m *Menu) withdraw(ctx context.Context) error {
	number, err := m.promptInt("Enter account number: ")
	if err != nil {
		return err
	}
	amount, err := m.promptDecimal("Enter amount to withdraw: ")
	if err != nil {
		return err
	}
	receipt, err := m.bank.Withdraw(ctx, number, amount)
	if err != nil {
		return err
	}
	m.printBalance(receipt, number)
	return nil
}

func (m *Menu) transfer(ctx context.Context) error {
	from, err := m.promptInt("Enter from account number: ")
	if err != nil {
		return err
	}
	to, err := m.promptInt("Enter to account number: ")
	if err != nil {
		return err
	}
	amount, err := m.promptDecimal("Enter amount to transfer: ")
	if err != nil {
		return err
	}
	receipt, err := m.bank.Transfer(ctx, from, to, amount)
	if err != nil {
		return err
	}
	m.printBalance(receipt, from)
	if to != from {
		m.printBalance(receipt, to)
	}
	return nil
}

func (m *Menu) displayAccounts(ctx context.Context) error {
	accounts, err := m.bank.ListAccounts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tTYPE\tBALANCE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%s\n", a.Number, a.Kind, a.Balance)
	}
	return w.Flush()
}

func (m *Menu) displayTransactions(ctx context.Context) error {
	records, err := m.bank.ListTransactions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tACCOUNT\tTYPE\tAMOUNT")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i+1, r.AccountNumber, r.Kind, r.Amount)
	}
	return w.Flush()
}

func (m *Menu) printBalance(receipt domain.Receipt, number int64) {
	if balance, ok := receipt.BalanceOf(number); ok {
		fmt.Fprintf(m.out, "Account %d balance: %s\n", number, balance)
	}
}

// report 依錯誤種類印出訊息
func (m *Menu) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIOFailure):
		fmt.Fprintf(m.out, "Warning: the change was applied but could not be saved: %v\n", err)
	case errors.Is(err, errInvalidInput):
		fmt.Fprintln(m.out, "Invalid input.")
	default:
		fmt.Fprintf(m.out, "Error: %v\n", err)
	}
}

func (m *Menu) prompt(label string) (string, error) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *Menu) promptInt(label string) (int64, error) {
	s, err := m.prompt(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errInvalidInput
	}
	return n, nil
}

func (m *Menu) promptDecimal(label string) (decimal.Decimal, error) {
	s, err := m.prompt(label)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errInvalidInput
	}
	return d, nil
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
