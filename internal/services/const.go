package services

import (
	"errors"
	"fmt"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")
var ErrInsufficientSpins = errors.New("insufficient spins")
var ErrNoRewardsAvailable = errors.New("no rewards available")

// ErrRewardExhausted never leaves the coordinator; it narrows the candidate pool.
var ErrRewardExhausted = errors.New("reward exhausted")
var ErrStorageConflict = errors.New("storage conflict, please retry")
var ErrAttemptMismatch = errors.New("spin attempt belongs to another account")
var ErrSpinLocked = errors.New("spin in progress")
var ErrRewardNotFound = errors.New("reward not found")
var ErrMaxRewardsReached = errors.New("max rewards limit reached")
var ErrInvalidReward = errors.New("invalid reward")

const (
	CONFIG_SPIN_CLAIM_ATTEMPTS        = "SPIN_CLAIM_ATTEMPTS"
	CONFIG_SPIN_TX_ATTEMPTS           = "SPIN_TX_ATTEMPTS"
	CONFIG_FREE_SPINS_PER_DAY         = "FREE_SPINS_PER_DAY"
	CONFIG_MAX_SPIN_REWARDS           = "MAX_SPIN_REWARDS"
	CONFIG_SPIN_RATE_LIMIT_PER_MINUTE = "SPIN_RATE_LIMIT_PER_MINUTE"
	CONFIG_CRONJOB_TIME_DAILY_RESET   = "CRONJOB_TIME_DAILY_RESET"
	CONFIG_CRONJOB_TIME_MONTHLY_RESET = "CRONJOB_TIME_MONTHLY_RESET"

	DEFAULT_SPIN_CLAIM_ATTEMPTS        = 3
	DEFAULT_SPIN_TX_ATTEMPTS           = 3
	DEFAULT_FREE_SPINS_PER_DAY         = 1
	DEFAULT_MAX_SPIN_REWARDS           = 12
	DEFAULT_SPIN_RATE_LIMIT_PER_MINUTE = 30
	DEFAULT_SPIN_TIMEOUT               = 10 * time.Second
	DEFAULT_CRONJOB_TIME_DAILY_RESET   = "0 0 * * *"
	DEFAULT_CRONJOB_TIME_MONTHLY_RESET = "0 0 1 * *"

	CACHE_TTL_5_SECONDS = 5 * time.Second
	CACHE_TTL_5_MINS    = 5 * time.Minute
)

func LockKeyUserSpin(accountID int64) string {
	return fmt.Sprintf("lock:user-spin:%d", accountID)
}

func DBKeyConfig(key string) string {
	return fmt.Sprintf("config:%s", key)
}

func DBKeyActiveRewards() string {
	return "spin_reward:active"
}

func LimitKeyUserSpin(accountID int64) string {
	return fmt.Sprintf("limit:user-spin:%d", accountID)
}
