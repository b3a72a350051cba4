package interfaces

import (
	"context"
	"errors"

	"spinwheel/internal/models"

	"github.com/go-redis/redis_rate/v10"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrClaimRejected means the conditional claim matched no row: the reward is inactive, gone, or at a cap.
	ErrClaimRejected = errors.New("claim rejected")
	// ErrConflict is a transaction abort the caller may retry from scratch (serialization failure, deadlock).
	ErrConflict = errors.New("storage conflict")
	// ErrDuplicateAttempt means a spin history entry with the same attempt id was committed first.
	ErrDuplicateAttempt = errors.New("duplicate spin attempt")
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
}

// Locker serialises work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RewardSource returns a snapshot of the active rewards. The snapshot may be stale.
type RewardSource interface {
	ActiveRewards(ctx context.Context) ([]models.Reward, error)
}

// SpinTx is the unit of work of one spin. Everything done through it commits or aborts together.
type SpinTx interface {
	GetAccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error)
	// FindSpinHistoryByAttemptID sees every spin committed before the account lock was granted.
	FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error)
	// ClaimReward increments daily and monthly claimed counters only while both are below their limits.
	ClaimReward(ctx context.Context, rewardID int64) (*models.Reward, error)
	UpdateAccountSpin(ctx context.Context, account *models.Account) error
	InsertSpinHistory(ctx context.Context, entry *models.SpinHistory) error
}

type SpinStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx SpinTx) error) error
	FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error)
	ListSpinHistory(ctx context.Context, accountID int64, limit, offset int) ([]models.SpinHistory, int, error)
}

// ReplayCache remembers committed spins by attempt id so replays skip the store.
type ReplayCache interface {
	GetSpin(ctx context.Context, attemptID string) (*models.SpinHistory, error)
	SetSpin(ctx context.Context, entry *models.SpinHistory) error
}
