package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

type memPersister struct {
	saved domain.Snapshot
	fail  bool
}

func (p *memPersister) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if p.fail {
		return errors.New("read-only file system")
	}
	p.saved = snapshot
	return nil
}

func (p *memPersister) Load(ctx context.Context) (domain.Snapshot, error) {
	return p.saved, nil
}

func runMenu(t *testing.T, p *memPersister, input string) string {
	t.Helper()
	ledger, err := memory.NewMutexLedger(p.saved)
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger, p)

	var out bytes.Buffer
	require.NoError(t, NewMenu(core, strings.NewReader(input), &out).Run(context.Background()))
	return out.String()
}

func lines(in ...string) string {
	return strings.Join(in, "\n") + "\n"
}

func TestMenu_Scenario(t *testing.T) {
	p := &memPersister{}
	out := runMenu(t, p, lines(
		"1", "100", "500", "1",
		"1", "200", "0", "2",
		"4", "100", "200", "300",
		"3", "100", "500",
		"5",
		"6",
		"7",
	))

	assert.Contains(t, out, "Account 100 created (Savings, balance 500).")
	assert.Contains(t, out, "Account 100 balance: 200")
	assert.Contains(t, out, "Account 200 balance: 300")
	assert.Contains(t, out, "Error: insufficient funds")
	assert.Contains(t, out, "Transfer Out")
	assert.Contains(t, out, "Transfer In")

	require.Len(t, p.saved.Transactions, 2)
	require.Len(t, p.saved.Accounts, 2)
	assert.True(t, p.saved.Accounts[0].Balance.Equal(decimal.NewFromInt(200)))
	assert.True(t, p.saved.Accounts[1].Balance.Equal(decimal.NewFromInt(300)))
}

func TestMenu_ReportsErrorsAndKeepsRunning(t *testing.T) {
	p := &memPersister{}
	out := runMenu(t, p, lines(
		"9",
		"1", "abc",
		"1", "1", "10", "3",
		"1", "1", "-5", "1",
		"1", "1", "10", "1",
		"1", "1", "10", "2",
		"2", "2", "5",
		"4", "1", "2", "5",
		"2", "1", "0",
		"7",
	))

	assert.Contains(t, out, "Invalid choice.")
	assert.Contains(t, out, "Invalid input.")
	assert.Contains(t, out, "Error: \"3\": invalid account kind")
	assert.Contains(t, out, "Error: invalid amount")
	assert.Contains(t, out, "Error: account 1: account already exists")
	assert.Contains(t, out, "Error: account 2: account not found")
	assert.Contains(t, out, "Error: destination account 2: account not found")
	assert.Len(t, p.saved.Accounts, 1)
	assert.Empty(t, p.saved.Transactions)
}

func TestMenu_SaveFailureIsAWarning(t *testing.T) {
	p := &memPersister{fail: true}
	out := runMenu(t, p, lines("1", "1", "10", "1", "5"))

	assert.Contains(t, out, "Warning: the change was applied but could not be saved")
	assert.Regexp(t, `1\s+Savings\s+10`, out)
}

func TestMenu_EOFExits(t *testing.T) {
	out := runMenu(t, &memPersister{}, "1\n100\n")
	assert.Contains(t, out, "Enter balance: ")
}
