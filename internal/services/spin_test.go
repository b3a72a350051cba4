package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"spinwheel/internal/datastore/memstore"
	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
)

var spinNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestSpin(store *memstore.Store, opts SpinOptions) *ServiceSpin {
	if opts.Now == nil {
		opts.Now = func() time.Time { return spinNow }
	}
	return NewSpinCoordinator(store, store, opts)
}

// staleSource serves a fixed snapshot regardless of what has been claimed since.
type staleSource struct {
	rewards []models.Reward
}

func (s staleSource) ActiveRewards(ctx context.Context) ([]models.Reward, error) {
	return s.rewards, nil
}

// conflictStore aborts the first conflicts units of work with a retryable conflict.
type conflictStore struct {
	*memstore.Store
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *conflictStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.SpinTx) error) error {
	s.mu.Lock()
	s.calls++
	conflict := s.calls <= s.conflicts
	s.mu.Unlock()

	if conflict {
		return interfaces.ErrConflict
	}
	return s.Store.RunInTx(ctx, fn)
}

type mapReplayCache struct {
	mu      sync.Mutex
	entries map[string]models.SpinHistory
	failSet bool
}

func (c *mapReplayCache) GetSpin(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[attemptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *mapReplayCache) SetSpin(ctx context.Context, entry *models.SpinHistory) error {
	if c.failSet {
		return errors.New("redis down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.AttemptID] = *entry
	return nil
}

func TestSpinCreditsReward(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "50 Credits", Kind: models.RewardKindCredits, Value: 50, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{Username: "alice"})

	result, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{IP: "10.0.0.1", UserAgent: "wheel/1.0"})
	require.NoError(t, err)
	require.Equal(t, reward.ID, result.Reward.ID)
	require.Equal(t, 50.0, result.AmountCredited)
	require.Equal(t, models.CREDITED_BALANCE_CREDITS, result.CreditedBalance)
	require.True(t, result.IsFreeSpin)
	require.False(t, result.Replayed)

	after, _ := store.Account(account.ID)
	require.Equal(t, 50.0, after.CreditsBalance)
	require.Equal(t, 1, after.SpinsUsedToday)
	require.Equal(t, spinNow, *after.LastSpinDate)

	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 1, claimed.DailyClaimed)
	require.Equal(t, 1, claimed.MonthlyClaimed)

	history := store.History()
	require.Len(t, history, 1)
	require.Equal(t, account.ID, history[0].AccountID)
	require.Equal(t, reward.ID, history[0].RewardID)
	require.Equal(t, 50.0, history[0].RewardSnapshot.Value)
	require.Equal(t, "10.0.0.1", history[0].IP)
	require.Equal(t, "wheel/1.0", history[0].UserAgent)
	require.NotEmpty(t, history[0].AttemptID)
}

func TestSpinRewardEffects(t *testing.T) {
	tests := []struct {
		name    string
		reward  models.Reward
		credits float64
		tokens  float64
		amount  float64
		balance string
		payload bool
	}{
		{"credits", models.Reward{Kind: models.RewardKindCredits, Value: 10}, 10, 0, 10, models.CREDITED_BALANCE_CREDITS, false},
		{"token", models.Reward{Kind: models.RewardKindToken, Value: 3}, 0, 3, 3, models.CREDITED_BALANCE_TOKENS, false},
		{"item", models.Reward{Kind: models.RewardKindItem, Value: 99, Payload: map[string]interface{}{"sku": "mystery-1"}}, 0, 0, 0, models.CREDITED_BALANCE_NONE, true},
		{"nothing", models.Reward{Kind: models.RewardKindNothing}, 0, 0, 0, models.CREDITED_BALANCE_NONE, false},
	}

	for _, ts := range tests {
		store := memstore.New()
		ts.reward.Name = ts.name
		ts.reward.Weight = 1
		ts.reward.IsActive = true
		store.PutReward(ts.reward)
		account := store.PutAccount(models.Account{})

		result, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{})
		require.NoError(t, err, ts.name)
		require.Equal(t, ts.amount, result.AmountCredited, ts.name)
		require.Equal(t, ts.balance, result.CreditedBalance, ts.name)

		after, _ := store.Account(account.ID)
		require.Equal(t, ts.credits, after.CreditsBalance, ts.name)
		require.Equal(t, ts.tokens, after.TokenBalance, ts.name)

		details := store.History()[0].Details
		require.Equal(t, ts.name, details["reward_name"], ts.name)
		_, hasPayload := details["payload"]
		require.Equal(t, ts.payload, hasPayload, ts.name)
	}
}

func TestSpinPurchasedSpin(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	earlier := spinNow.Add(-time.Hour)
	account := store.PutAccount(models.Account{SpinsUsedToday: 1, LastSpinDate: &earlier, PurchasedSpinsAvailable: 2})

	result, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.False(t, result.IsFreeSpin)

	after, _ := store.Account(account.ID)
	require.Equal(t, 1, after.PurchasedSpinsAvailable)
	require.Equal(t, 2, after.SpinsUsedToday)
}

func TestSpinInsufficientSpinsHasNoSideEffects(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	earlier := spinNow.Add(-time.Hour)
	account := store.PutAccount(models.Account{SpinsUsedToday: 1, LastSpinDate: &earlier})

	_, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{})
	require.ErrorIs(t, err, ErrInsufficientSpins)

	after, _ := store.Account(account.ID)
	require.Equal(t, account, after)
	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 0, claimed.DailyClaimed)
	require.Empty(t, store.History())
}

func TestSpinAccountNotFound(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})

	_, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), 404, SpinMeta{})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSpinSkipsUnselectableRewards(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "inactive", Kind: models.RewardKindCredits, Value: 1, Weight: 100, IsActive: false})
	store.PutReward(models.Reward{Name: "weightless", Kind: models.RewardKindCredits, Value: 1, Weight: 0, IsActive: true})
	store.PutReward(models.Reward{Name: "sold out today", Kind: models.RewardKindCredits, Value: 1, Weight: 100, DailyLimit: 2, DailyClaimed: 2, IsActive: true})
	store.PutReward(models.Reward{Name: "sold out this month", Kind: models.RewardKindCredits, Value: 1, Weight: 100, MonthlyLimit: 5, MonthlyClaimed: 5, IsActive: true})
	account := store.PutAccount(models.Account{})

	_, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{})
	require.ErrorIs(t, err, ErrNoRewardsAvailable)

	after, _ := store.Account(account.ID)
	require.Equal(t, 0, after.SpinsUsedToday, "a failed spin must not consume the allowance")
	require.Nil(t, after.LastSpinDate)

	open := store.PutReward(models.Reward{Name: "open", Kind: models.RewardKindCredits, Value: 1, Weight: 0.5, IsActive: true})
	service := newTestSpin(store, SpinOptions{Rand: rand.New(rand.NewSource(7))})
	result, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Equal(t, open.ID, result.Reward.ID)
}

func TestSpinDailyLimitZeroIsUnlimited(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "unlimited", Kind: models.RewardKindCredits, Value: 1, Weight: 1, DailyLimit: 0, DailyClaimed: 1000000, IsActive: true})
	account := store.PutAccount(models.Account{})

	result, err := newTestSpin(store, SpinOptions{}).Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Equal(t, reward.ID, result.Reward.ID)

	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 1000001, claimed.DailyClaimed)
}

// One reward, one unit of daily supply, two concurrent spins.
func TestSpinConcurrentSingleUnitOfSupply(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "Jackpot", Kind: models.RewardKindCredits, Value: 1000, Weight: 1, DailyLimit: 1, IsActive: true})
	first := store.PutAccount(models.Account{})
	second := store.PutAccount(models.Account{})
	service := newTestSpin(store, SpinOptions{})

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i, accountID := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, accountID int64) {
			defer wg.Done()
			<-start
			_, errs[i] = service.Spin(context.Background(), accountID, SpinMeta{})
		}(i, accountID)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrNoRewardsAvailable)
	}
	require.Equal(t, 1, succeeded)

	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 1, claimed.DailyClaimed)
	require.Len(t, store.History(), 1)
}

func TestSpinConcurrentSpinsNeverExceedCap(t *testing.T) {
	const spins = 50
	const capacity = 5

	store := memstore.New()
	// the zero source always lands on the lightest selectable reward, so every spin goes for the capped one first
	capped := store.PutReward(models.Reward{Name: "capped", Kind: models.RewardKindItem, Weight: 1, DailyLimit: capacity, MonthlyLimit: 100, IsActive: true})
	filler := store.PutReward(models.Reward{Name: "filler", Kind: models.RewardKindCredits, Value: 1, Weight: 10, IsActive: true})

	accounts := make([]int64, spins)
	for i := range accounts {
		accounts[i] = store.PutAccount(models.Account{}).ID
	}

	service := newTestSpin(store, SpinOptions{Rand: rand.New(zeroSource{})})

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*SpinResult, spins)
	errs := make([]error, spins)
	for i, accountID := range accounts {
		wg.Add(1)
		go func(i int, accountID int64) {
			defer wg.Done()
			<-start
			results[i], errs[i] = service.Spin(context.Background(), accountID, SpinMeta{})
		}(i, accountID)
	}
	close(start)
	wg.Wait()

	won := map[int64]int{}
	for i := range results {
		require.NoError(t, errs[i])
		won[results[i].Reward.ID]++
	}
	require.Equal(t, capacity, won[capped.ID])
	require.Equal(t, spins-capacity, won[filler.ID])

	after, _ := store.Reward(capped.ID)
	require.Equal(t, capacity, after.DailyClaimed)
	require.Equal(t, capacity, after.MonthlyClaimed)
	require.Len(t, store.History(), spins)
}

func TestSpinStaleSnapshotNarrowsToRemaining(t *testing.T) {
	store := memstore.New()
	exhausted := store.PutReward(models.Reward{Name: "gone", Kind: models.RewardKindCredits, Value: 100, Weight: 1, DailyLimit: 1, DailyClaimed: 1, IsActive: true})
	remaining := store.PutReward(models.Reward{Name: "still here", Kind: models.RewardKindCredits, Value: 5, Weight: 9, IsActive: true})
	account := store.PutAccount(models.Account{})

	stale := exhausted
	stale.DailyClaimed = 0
	source := staleSource{[]models.Reward{stale, remaining}}

	service := NewSpinCoordinator(store, source, SpinOptions{
		Rand: rand.New(zeroSource{}),
		Now:  func() time.Time { return spinNow },
	})

	result, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Equal(t, remaining.ID, result.Reward.ID)

	gone, _ := store.Reward(exhausted.ID)
	require.Equal(t, 1, gone.DailyClaimed)
}

func TestSpinStaleSnapshotWithNothingLeft(t *testing.T) {
	store := memstore.New()
	exhausted := store.PutReward(models.Reward{Name: "gone", Kind: models.RewardKindCredits, Value: 100, Weight: 1, DailyLimit: 1, DailyClaimed: 1, IsActive: true})
	account := store.PutAccount(models.Account{})

	stale := exhausted
	stale.DailyClaimed = 0
	service := NewSpinCoordinator(store, staleSource{[]models.Reward{stale}}, SpinOptions{})

	_, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.ErrorIs(t, err, ErrNoRewardsAvailable)

	after, _ := store.Account(account.ID)
	require.Equal(t, 0, after.SpinsUsedToday)
}

func TestSpinRollsBackClaimWhenCommitFails(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "Jackpot", Kind: models.RewardKindCredits, Value: 1000, Weight: 1, DailyLimit: 1, IsActive: true})
	account := store.PutAccount(models.Account{})
	service := newTestSpin(store, SpinOptions{})

	crash := errors.New("crash before commit")
	store.SetBeforeCommit(func() error { return crash })

	_, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.ErrorIs(t, err, crash)

	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 0, claimed.DailyClaimed)
	require.Equal(t, 0, claimed.MonthlyClaimed)
	after, _ := store.Account(account.ID)
	require.Equal(t, account, after)
	require.Empty(t, store.History())

	store.SetBeforeCommit(nil)
	result, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Equal(t, reward.ID, result.Reward.ID)
}

func TestSpinReplayIsIdempotent(t *testing.T) {
	store := memstore.New()
	reward := store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{PurchasedSpinsAvailable: 5})
	other := store.PutAccount(models.Account{PurchasedSpinsAvailable: 5})
	service := newTestSpin(store, SpinOptions{})

	first, err := service.Spin(context.Background(), account.ID, SpinMeta{AttemptID: "attempt-1"})
	require.NoError(t, err)
	require.False(t, first.Replayed)

	again, err := service.Spin(context.Background(), account.ID, SpinMeta{AttemptID: "attempt-1"})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, first.History.ID, again.History.ID)
	require.Equal(t, first.AmountCredited, again.AmountCredited)
	require.Equal(t, reward.ID, again.Reward.ID)

	after, _ := store.Account(account.ID)
	require.Equal(t, 10.0, after.CreditsBalance)
	require.Equal(t, 1, after.SpinsUsedToday)
	require.Equal(t, 5, after.PurchasedSpinsAvailable)
	claimed, _ := store.Reward(reward.ID)
	require.Equal(t, 1, claimed.DailyClaimed)
	require.Len(t, store.History(), 1)

	_, err = service.Spin(context.Background(), other.ID, SpinMeta{AttemptID: "attempt-1"})
	require.ErrorIs(t, err, ErrAttemptMismatch)
}

func TestSpinConcurrentReplaysCommitOnce(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{})
	service := newTestSpin(store, SpinOptions{})

	const requests = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*SpinResult, requests)
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = service.Spin(context.Background(), account.ID, SpinMeta{AttemptID: "double-tap"})
		}(i)
	}
	close(start)
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].History.ID, results[i].History.ID)
		if !results[i].Replayed {
			fresh++
		}
	}
	require.Equal(t, 1, fresh)
	require.Len(t, store.History(), 1)

	after, _ := store.Account(account.ID)
	require.Equal(t, 10.0, after.CreditsBalance)
}

func TestSpinReplayCache(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{})
	cache := &mapReplayCache{entries: map[string]models.SpinHistory{}}
	service := newTestSpin(store, SpinOptions{ReplayCache: cache})

	first, err := service.Spin(context.Background(), account.ID, SpinMeta{AttemptID: "cached"})
	require.NoError(t, err)
	require.Contains(t, cache.entries, "cached")

	again, err := service.Spin(context.Background(), account.ID, SpinMeta{AttemptID: "cached"})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, first.History.ID, again.History.ID)
}

func TestSpinReplayCacheFailureDoesNotFailSpin(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{})
	cache := &mapReplayCache{entries: map[string]models.SpinHistory{}, failSet: true}

	_, err := newTestSpin(store, SpinOptions{ReplayCache: cache}).Spin(context.Background(), account.ID, SpinMeta{AttemptID: "a"})
	require.NoError(t, err)
	require.Len(t, store.History(), 1)
}

func TestSpinRetriesStorageConflict(t *testing.T) {
	inner := memstore.New()
	inner.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := inner.PutAccount(models.Account{})

	store := &conflictStore{Store: inner, conflicts: 2}
	service := NewSpinCoordinator(store, inner, SpinOptions{MaxTxAttempts: 3})

	_, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Equal(t, 3, store.calls)
	require.Len(t, inner.History(), 1)
}

func TestSpinStorageConflictExhaustsRetries(t *testing.T) {
	inner := memstore.New()
	inner.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := inner.PutAccount(models.Account{})

	store := &conflictStore{Store: inner, conflicts: 100}
	service := NewSpinCoordinator(store, inner, SpinOptions{MaxTxAttempts: 3})

	_, err := service.Spin(context.Background(), account.ID, SpinMeta{})
	require.ErrorIs(t, err, ErrStorageConflict)
	require.Equal(t, 3, store.calls)
	require.Empty(t, inner.History())
}

func TestSpinSurvivesCallerCancellation(t *testing.T) {
	store := memstore.New()
	store.PutReward(models.Reward{Name: "10 Credits", Kind: models.RewardKindCredits, Value: 10, Weight: 1, IsActive: true})
	account := store.PutAccount(models.Account{})

	ctx, cancel := context.WithCancel(context.Background())
	service := newTestSpin(store, SpinOptions{})
	store.SetBeforeCommit(func() error {
		cancel()
		return nil
	})

	_, err := service.Spin(ctx, account.ID, SpinMeta{})
	require.NoError(t, err)
	require.Len(t, store.History(), 1)
}
