package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"spinwheel/internal/datastore/redis_store"
	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

type SpinMeta struct {
	IP        string
	UserAgent string
	// AttemptID makes the spin idempotent. Empty means a fresh id is generated.
	AttemptID string
}

type SpinResult struct {
	Reward          models.Reward       `json:"reward"`
	AmountCredited  float64             `json:"amount_credited"`
	CreditedBalance string              `json:"credited_balance"`
	IsFreeSpin      bool                `json:"is_free_spin"`
	History         *models.SpinHistory `json:"history"`
	Replayed        bool                `json:"replayed"`
}

type SpinOptions struct {
	Location         *time.Location
	// FreeSpinsPerDay below 1 means the default of one free spin a day.
	FreeSpinsPerDay  int
	MaxClaimAttempts int
	MaxTxAttempts    int
	Timeout          time.Duration
	Rand             *rand.Rand
	Now              func() time.Time
	Locker           interfaces.Locker
	ReplayCache      interfaces.ReplayCache
	Logger           *zap.Logger
}

// ServiceSpin coordinates a spin end to end: eligibility, candidate filtering, weighted pick, claim, account
// mutation and history, as one unit of work.
type ServiceSpin struct {
	store       interfaces.SpinStore
	rewards     interfaces.RewardSource
	selector    *WeightedSelector
	ledger      *ClaimLedger
	locker      interfaces.Locker
	replayCache interfaces.ReplayCache
	logger      *zap.Logger

	location        *time.Location
	now             func() time.Time
	freeSpinsPerDay int
	maxTxAttempts   int
	timeout         time.Duration
}

func NewSpinCoordinator(store interfaces.SpinStore, rewards interfaces.RewardSource, opts SpinOptions) *ServiceSpin {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FreeSpinsPerDay < 1 {
		opts.FreeSpinsPerDay = DEFAULT_FREE_SPINS_PER_DAY
	}
	if opts.MaxTxAttempts < 1 {
		opts.MaxTxAttempts = DEFAULT_SPIN_TX_ATTEMPTS
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DEFAULT_SPIN_TIMEOUT
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &ServiceSpin{
		store:           store,
		rewards:         rewards,
		selector:        NewWeightedSelector(opts.Rand),
		ledger:          NewClaimLedger(opts.Logger, opts.MaxClaimAttempts),
		locker:          opts.Locker,
		replayCache:     opts.ReplayCache,
		logger:          opts.Logger,
		location:        opts.Location,
		now:             opts.Now,
		freeSpinsPerDay: opts.FreeSpinsPerDay,
		maxTxAttempts:   opts.MaxTxAttempts,
		timeout:         opts.Timeout,
	}
}

func NewServiceSpin(container *do.Injector) (*ServiceSpin, error) {
	store, err := do.Invoke[interfaces.SpinStore](container)
	if err != nil {
		return nil, err
	}

	serviceReward, err := do.Invoke[*ServiceReward](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	rs, err := do.Invoke[*redsync.Redsync](container)
	if err != nil {
		return nil, err
	}

	redisDB, err := do.InvokeNamed[redis.UniversalClient](container, "redis-db")
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	location, err := do.InvokeNamed[*time.Location](container, "spin-location")
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	freeSpins, _ := serviceConfig.GetIntConfig(ctx, CONFIG_FREE_SPINS_PER_DAY, DEFAULT_FREE_SPINS_PER_DAY)
	claimAttempts, _ := serviceConfig.GetIntConfig(ctx, CONFIG_SPIN_CLAIM_ATTEMPTS, DEFAULT_SPIN_CLAIM_ATTEMPTS)
	txAttempts, _ := serviceConfig.GetIntConfig(ctx, CONFIG_SPIN_TX_ATTEMPTS, DEFAULT_SPIN_TX_ATTEMPTS)

	return NewSpinCoordinator(store, serviceReward, SpinOptions{
		Location:         location,
		FreeSpinsPerDay:  freeSpins,
		MaxClaimAttempts: claimAttempts,
		MaxTxAttempts:    txAttempts,
		Locker:           NewRedsyncLocker(rs, DEFAULT_SPIN_TIMEOUT+5*time.Second),
		ReplayCache:      redis_store.NewReplayCache(redisDB),
		Logger:           logger.Named("spin"),
	}), nil
}

func (service *ServiceSpin) Spin(ctx context.Context, accountID int64, meta SpinMeta) (*SpinResult, error) {
	replayable := meta.AttemptID != ""
	if !replayable {
		meta.AttemptID = uuid.New().String()
	} else {
		result, err := service.replay(ctx, accountID, meta.AttemptID)
		if err != nil || result != nil {
			return result, err
		}
	}

	if service.locker != nil {
		unlock, err := service.locker.Lock(ctx, LockKeyUserSpin(accountID))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSpinLocked, err)
		}
		defer unlock()
	}

	// Once started, the unit of work is not cut short by the caller going away.
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.timeout)
	defer cancel()

	var result *SpinResult
	var err error
	for attempt := 1; attempt <= service.maxTxAttempts; attempt++ {
		result, err = service.spinOnce(workCtx, accountID, meta, replayable)
		if err == nil {
			break
		}

		if errors.Is(err, interfaces.ErrDuplicateAttempt) {
			replayed, replayErr := service.replay(workCtx, accountID, meta.AttemptID)
			if replayErr != nil {
				return nil, replayErr
			}
			if replayed == nil {
				return nil, fmt.Errorf("%w: %v", ErrStorageConflict, err)
			}
			return replayed, nil
		}

		if !errors.Is(err, interfaces.ErrConflict) {
			return nil, err
		}

		service.logger.Warn("spin transaction aborted, restarting",
			zap.Int64("account_id", accountID),
			zap.String("attempt_id", meta.AttemptID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageConflict, err)
	}

	if result.Replayed {
		return result, nil
	}

	if service.replayCache != nil {
		if err := service.replayCache.SetSpin(workCtx, result.History); err != nil {
			service.logger.Warn("cache spin attempt", zap.String("attempt_id", meta.AttemptID), zap.Error(err))
		}
	}

	service.logger.Info("spin granted",
		zap.Int64("account_id", accountID),
		zap.Int64("reward_id", result.Reward.ID),
		zap.String("kind", result.Reward.Kind.String()),
		zap.Float64("amount", result.AmountCredited),
		zap.Bool("free_spin", result.IsFreeSpin),
	)

	return result, nil
}

func (service *ServiceSpin) spinOnce(ctx context.Context, accountID int64, meta SpinMeta, replayable bool) (*SpinResult, error) {
	var result *SpinResult
	err := service.store.RunInTx(ctx, func(ctx context.Context, tx interfaces.SpinTx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("load account %d: %w", accountID, err)
		}

		// a concurrent request with the same attempt id may have committed while we waited for the account
		if replayable {
			entry, err := tx.FindSpinHistoryByAttemptID(ctx, meta.AttemptID)
			if err == nil {
				if entry.AccountID != accountID {
					return ErrAttemptMismatch
				}
				result = replayResult(entry)
				return nil
			}
			if !errors.Is(err, interfaces.ErrNotFound) {
				return fmt.Errorf("find spin attempt: %w", err)
			}
		}

		now := service.now()
		allowance, err := CheckAndReserve(account, now, service.location, service.freeSpinsPerDay)
		if err != nil {
			return err
		}

		rewards, err := service.rewards.ActiveRewards(ctx)
		if err != nil {
			return fmt.Errorf("load active rewards: %w", err)
		}

		candidates := SelectableRewards(rewards)
		if len(candidates) == 0 {
			return ErrNoRewardsAvailable
		}

		reward, err := service.ledger.PickAndClaim(ctx, tx, service.selector, candidates)
		if err != nil {
			return err
		}

		amount, balance := applyReward(account, reward)
		allowance.Apply(account, now)

		if err := tx.UpdateAccountSpin(ctx, account); err != nil {
			return fmt.Errorf("update account %d: %w", accountID, err)
		}

		entry := &models.SpinHistory{
			AttemptID:       meta.AttemptID,
			AccountID:       account.ID,
			RewardID:        reward.ID,
			RewardSnapshot:  reward.Snapshot(),
			AmountCredited:  amount,
			CreditedBalance: balance,
			IsFreeSpin:      allowance.IsFreeSpin,
			Details:         spinDetails(reward, amount),
			IP:              meta.IP,
			UserAgent:       meta.UserAgent,
			CreatedAt:       now,
		}
		if err := tx.InsertSpinHistory(ctx, entry); err != nil {
			return fmt.Errorf("record spin: %w", err)
		}

		result = &SpinResult{
			Reward:          *reward,
			AmountCredited:  amount,
			CreditedBalance: balance,
			IsFreeSpin:      allowance.IsFreeSpin,
			History:         entry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// replay returns the committed result of attemptID, or nil when the attempt is unknown.
func (service *ServiceSpin) replay(ctx context.Context, accountID int64, attemptID string) (*SpinResult, error) {
	var entry *models.SpinHistory
	if service.replayCache != nil {
		cached, err := service.replayCache.GetSpin(ctx, attemptID)
		if err != nil {
			service.logger.Warn("read spin attempt cache", zap.String("attempt_id", attemptID), zap.Error(err))
		}
		entry = cached
	}

	if entry == nil {
		stored, err := service.store.FindSpinHistoryByAttemptID(ctx, attemptID)
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find spin attempt: %w", err)
		}
		entry = stored
	}

	if entry.AccountID != accountID {
		return nil, ErrAttemptMismatch
	}

	return replayResult(entry), nil
}

func replayResult(entry *models.SpinHistory) *SpinResult {
	return &SpinResult{
		Reward:          entry.RewardSnapshot.ToReward(),
		AmountCredited:  entry.AmountCredited,
		CreditedBalance: entry.CreditedBalance,
		IsFreeSpin:      entry.IsFreeSpin,
		History:         entry,
		Replayed:        true,
	}
}

// SelectableRewards drops inactive, non-positive weight and cap-saturated rewards, per the counters last read.
func SelectableRewards(rewards []models.Reward) []models.Reward {
	out := make([]models.Reward, 0, len(rewards))
	for i := range rewards {
		if rewards[i].Selectable() {
			out = append(out, rewards[i])
		}
	}
	return out
}

func applyReward(account *models.Account, reward *models.Reward) (float64, string) {
	switch reward.Kind {
	case models.RewardKindCredits:
		account.CreditsBalance += reward.Value
		return reward.Value, models.CREDITED_BALANCE_CREDITS
	case models.RewardKindToken:
		account.TokenBalance += reward.Value
		return reward.Value, models.CREDITED_BALANCE_TOKENS
	}

	return 0, models.CREDITED_BALANCE_NONE
}

func spinDetails(reward *models.Reward, amount float64) map[string]interface{} {
	details := map[string]interface{}{
		"reward_id":   reward.ID,
		"reward_name": reward.Name,
	}

	switch reward.Kind {
	case models.RewardKindCredits:
		details["credits_awarded"] = amount
	case models.RewardKindToken:
		details["tokens_awarded"] = amount
	default:
		if len(reward.Payload) > 0 {
			details["payload"] = reward.Payload
		}
	}

	return details
}
