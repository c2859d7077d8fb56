package memory

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// accountSlot 單一帳戶與它自己的鎖
type accountSlot struct {
	mu      sync.Mutex
	account domain.Account
}

// AccountStore 以帳號為 key 保存所有帳戶
//
// 結構:
//
//	mu: 保護 slots/order 本身 (新增帳戶時寫入)
//	slots: 帳號 -> 帳戶 slot，每個 slot 各自一把鎖
//	order: 建立順序，列表與持久化依此輸出
type AccountStore struct {
	mu    sync.RWMutex
	slots map[int64]*accountSlot
	order []int64
}

// NewAccountStore 建立空的 AccountStore
func NewAccountStore() *AccountStore {
	return &AccountStore{
		slots: make(map[int64]*accountSlot),
	}
}

// Create 建立帳戶
//
// 參數:
//
//	number: 帳號 (由呼叫端指定)
//	initialBalance: 初始餘額，不得為負
//	kind: 帳戶類型
//
// 回傳:
//
//	domain.Account: 新帳戶的副本
//	error: ErrInvalidAmount / ErrInvalidAccountKind / ErrDuplicateAccount
func (s *AccountStore) Create(number int64, initialBalance decimal.Decimal, kind domain.AccountKind) (domain.Account, error) {
	account, err := domain.NewAccount(number, initialBalance, kind)
	if err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[number]; ok {
		return domain.Account{}, fmt.Errorf("account %d: %w", number, domain.ErrDuplicateAccount)
	}
	s.slots[number] = &accountSlot{account: *account}
	s.order = append(s.order, number)
	return *account, nil
}

// Find 查詢帳戶，回傳副本
func (s *AccountStore) Find(number int64) (domain.Account, bool) {
	slot, ok := s.slot(number)
	if !ok {
		return domain.Account{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.account, true
}

// Exists 帳戶是否存在
// 帳戶不會被刪除，所以回傳 true 之後永遠成立
func (s *AccountStore) Exists(number int64) bool {
	_, ok := s.slot(number)
	return ok
}

// ApplyDelta 調整單一帳戶餘額
//
// 回傳:
//
//	error: ErrAccountNotFound / ErrInsufficientFunds，失敗時餘額不變
func (s *AccountStore) ApplyDelta(number int64, delta decimal.Decimal) error {
	slot, ok := s.slot(number)
	if !ok {
		return &domain.AccountNotFoundError{Number: number}
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.account.ApplyDelta(delta)
}

// List 依建立順序回傳所有帳戶副本
// 各帳戶分別加鎖讀取，需要跨帳戶一致的快照時由上層擋住寫入
func (s *AccountStore) List() []domain.Account {
	s.mu.RLock()
	slots := make([]*accountSlot, 0, len(s.order))
	for _, number := range s.order {
		slots = append(slots, s.slots[number])
	}
	s.mu.RUnlock()

	out := make([]domain.Account, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.account)
		slot.mu.Unlock()
	}
	return out
}

// Len 帳戶數量
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *AccountStore) slot(number int64) (*accountSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[number]
	return slot, ok
}

// lock 依 ids 的順序鎖定帳戶
// ids 必須已經遞增排序且不重複 (見 domain.Posting.GetLockIDs)
func (s *AccountStore) lock(ids []int64) (*lockedAccounts, error) {
	slots := make([]*accountSlot, 0, len(ids))
	for _, id := range ids {
		slot, ok := s.slot(id)
		if !ok {
			return nil, &domain.AccountNotFoundError{Number: id}
		}
		slots = append(slots, slot)
	}
	for _, slot := range slots {
		slot.mu.Lock()
	}
	return &lockedAccounts{slots: slots}, nil
}

// lockedAccounts 一組已持有鎖的帳戶
type lockedAccounts struct {
	slots []*accountSlot
}

func (l *lockedAccounts) get(number int64) *domain.Account {
	for _, slot := range l.slots {
		if slot.account.Number == number {
			return &slot.account
		}
	}
	return nil
}

func (l *lockedAccounts) copies() []domain.Account {
	out := make([]domain.Account, 0, len(l.slots))
	for _, slot := range l.slots {
		out = append(out, slot.account)
	}
	return out
}

// unlock 反向釋放
func (l *lockedAccounts) unlock() {
	for i := len(l.slots) - 1; i >= 0; i-- {
		l.slots[i].mu.Unlock()
	}
}
