// Package memstore is a single-process spin store. Claims are compare-and-increment under a per-reward mutex,
// accounts are held exclusively for the length of a unit of work, and a failed unit undoes its claims.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"
)

type rewardSlot struct {
	mu     sync.Mutex
	reward models.Reward
	// bumped by every reset so a late rollback leaves the new period's counters alone
	dailyGen   uint64
	monthlyGen uint64
}

type claim struct {
	rewardID   int64
	dailyGen   uint64
	monthlyGen uint64
}

type accountSlot struct {
	lock    chan struct{}
	account models.Account
}

type Store struct {
	mu       sync.Mutex
	rewards  map[int64]*rewardSlot
	accounts map[int64]*accountSlot
	history  []models.SpinHistory
	attempts map[string]int

	nextRewardID  int64
	nextAccountID int64
	nextHistoryID int64

	beforeCommit func() error
}

func New() *Store {
	return &Store{
		rewards:  map[int64]*rewardSlot{},
		accounts: map[int64]*accountSlot{},
		attempts: map[string]int{},
	}
}

// PutReward inserts or replaces a reward. A zero ID gets the next free one.
func (s *Store) PutReward(reward models.Reward) models.Reward {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reward.ID == 0 {
		s.nextRewardID++
		reward.ID = s.nextRewardID
	} else if reward.ID > s.nextRewardID {
		s.nextRewardID = reward.ID
	}

	slot, ok := s.rewards[reward.ID]
	if !ok {
		s.rewards[reward.ID] = &rewardSlot{reward: reward}
		return reward
	}

	slot.mu.Lock()
	slot.reward = reward
	slot.mu.Unlock()
	return reward
}

func (s *Store) PutAccount(account models.Account) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == 0 {
		s.nextAccountID++
		account.ID = s.nextAccountID
	} else if account.ID > s.nextAccountID {
		s.nextAccountID = account.ID
	}

	slot, ok := s.accounts[account.ID]
	if !ok {
		s.accounts[account.ID] = &accountSlot{lock: make(chan struct{}, 1), account: account}
		return account
	}

	slot.account = account
	return account
}

func (s *Store) Reward(rewardID int64) (models.Reward, bool) {
	s.mu.Lock()
	slot, ok := s.rewards[rewardID]
	s.mu.Unlock()
	if !ok {
		return models.Reward{}, false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.reward, true
}

func (s *Store) Account(accountID int64) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, false
	}
	return slot.account, true
}

// History returns every committed entry in insertion order.
func (s *Store) History() []models.SpinHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.SpinHistory, len(s.history))
	copy(out, s.history)
	return out
}

// SetBeforeCommit installs a hook that runs after a unit of work succeeded and before it is committed.
// A non-nil error from the hook aborts the unit.
func (s *Store) SetBeforeCommit(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = fn
}

// ResetDailyClaimed zeroes the daily counter of every reward.
func (s *Store) ResetDailyClaimed() {
	s.eachRewardSlot(func(slot *rewardSlot) {
		slot.reward.DailyClaimed = 0
		slot.dailyGen++
	})
}

// ResetMonthlyClaimed zeroes the monthly counter of every reward.
func (s *Store) ResetMonthlyClaimed() {
	s.eachRewardSlot(func(slot *rewardSlot) {
		slot.reward.MonthlyClaimed = 0
		slot.monthlyGen++
	})
}

func (s *Store) eachRewardSlot(fn func(slot *rewardSlot)) {
	s.mu.Lock()
	slots := make([]*rewardSlot, 0, len(s.rewards))
	for _, slot := range s.rewards {
		slots = append(slots, slot)
	}
	s.mu.Unlock()

	for _, slot := range slots {
		slot.mu.Lock()
		fn(slot)
		slot.reward.UpdatedAt = time.Now()
		slot.mu.Unlock()
	}
}

func (s *Store) ActiveRewards(ctx context.Context) ([]models.Reward, error) {
	s.mu.Lock()
	slots := make([]*rewardSlot, 0, len(s.rewards))
	for _, slot := range s.rewards {
		slots = append(slots, slot)
	}
	s.mu.Unlock()

	rewards := make([]models.Reward, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		reward := slot.reward
		slot.mu.Unlock()
		if reward.IsActive {
			rewards = append(rewards, reward)
		}
	}

	sort.Slice(rewards, func(i, j int) bool {
		if rewards[i].WheelPosition != rewards[j].WheelPosition {
			return rewards[i].WheelPosition < rewards[j].WheelPosition
		}
		return rewards[i].ID < rewards[j].ID
	})
	return rewards, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.SpinTx) error) error {
	t := &tx{store: s, accounts: map[int64]models.Account{}}

	err := fn(ctx, t)
	if err == nil {
		s.mu.Lock()
		hook := s.beforeCommit
		s.mu.Unlock()
		if hook != nil {
			err = hook()
		}
	}
	// like a database transaction, a cancelled context never commits
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		t.rollback()
		return err
	}

	return t.commit()
}

func (s *Store) FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.attempts[attemptID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	entry := s.history[i]
	return &entry, nil
}

func (s *Store) ListSpinHistory(ctx context.Context, accountID int64, limit, offset int) ([]models.SpinHistory, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.SpinHistory
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].AccountID == accountID {
			entries = append(entries, s.history[i])
		}
	}

	total := len(entries)
	if offset >= total {
		return []models.SpinHistory{}, total, nil
	}

	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

func (s *Store) rewardSlot(rewardID int64) (*rewardSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.rewards[rewardID]
	return slot, ok
}

func (s *Store) accountSlot(accountID int64) (*accountSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.accounts[accountID]
	return slot, ok
}

type tx struct {
	store    *Store
	locked   []*accountSlot
	accounts map[int64]models.Account
	claims   []claim
	history  []models.SpinHistory
}

func (t *tx) GetAccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error) {
	if staged, ok := t.accounts[accountID]; ok {
		return &staged, nil
	}

	slot, ok := t.store.accountSlot(accountID)
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	select {
	case slot.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.locked = append(t.locked, slot)

	t.store.mu.Lock()
	account := slot.account
	t.store.mu.Unlock()

	t.accounts[accountID] = account
	return &account, nil
}

func (t *tx) FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	return t.store.FindSpinHistoryByAttemptID(ctx, attemptID)
}

func (t *tx) ClaimReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	slot, ok := t.store.rewardSlot(rewardID)
	if !ok {
		return nil, interfaces.ErrClaimRejected
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	r := &slot.reward
	if !r.IsActive || r.DailyExhausted() || r.MonthlyExhausted() {
		return nil, interfaces.ErrClaimRejected
	}

	r.DailyClaimed++
	r.MonthlyClaimed++
	r.UpdatedAt = time.Now()
	t.claims = append(t.claims, claim{rewardID: rewardID, dailyGen: slot.dailyGen, monthlyGen: slot.monthlyGen})

	claimed := *r
	return &claimed, nil
}

func (t *tx) UpdateAccountSpin(ctx context.Context, account *models.Account) error {
	if _, ok := t.accounts[account.ID]; !ok {
		return interfaces.ErrNotFound
	}

	account.UpdatedAt = time.Now()
	t.accounts[account.ID] = *account
	return nil
}

func (t *tx) InsertSpinHistory(ctx context.Context, entry *models.SpinHistory) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, ok := t.store.attempts[entry.AttemptID]; ok {
		return interfaces.ErrDuplicateAttempt
	}

	t.store.nextHistoryID++
	entry.ID = t.store.nextHistoryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	t.history = append(t.history, *entry)
	return nil
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	for _, entry := range t.history {
		if _, ok := s.attempts[entry.AttemptID]; ok {
			s.mu.Unlock()
			t.rollback()
			return interfaces.ErrDuplicateAttempt
		}
	}

	for id, account := range t.accounts {
		if slot, ok := s.accounts[id]; ok {
			slot.account = account
		}
	}
	for _, entry := range t.history {
		s.attempts[entry.AttemptID] = len(s.history)
		s.history = append(s.history, entry)
	}
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *tx) rollback() {
	for _, c := range t.claims {
		slot, ok := t.store.rewardSlot(c.rewardID)
		if !ok {
			continue
		}

		slot.mu.Lock()
		// a counter reset since the claim no longer holds this unit's increment
		if slot.dailyGen == c.dailyGen && slot.reward.DailyClaimed > 0 {
			slot.reward.DailyClaimed--
		}
		if slot.monthlyGen == c.monthlyGen && slot.reward.MonthlyClaimed > 0 {
			slot.reward.MonthlyClaimed--
		}
		slot.mu.Unlock()
	}
	t.claims = nil
	t.release()
}

func (t *tx) release() {
	for _, slot := range t.locked {
		<-slot.lock
	}
	t.locked = nil
}
