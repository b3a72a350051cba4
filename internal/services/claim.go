package services

import (
	"context"
	"errors"
	"fmt"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"go.uber.org/zap"
)

// ClaimLedger is the only writer of a reward's claimed counters during a spin.
type ClaimLedger struct {
	logger      *zap.Logger
	maxAttempts int
}

func NewClaimLedger(logger *zap.Logger, maxAttempts int) *ClaimLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = DEFAULT_SPIN_CLAIM_ATTEMPTS
	}

	return &ClaimLedger{logger, maxAttempts}
}

// TryClaim takes one unit of daily and monthly supply, or fails with ErrRewardExhausted when a cap was reached
// since the candidate snapshot was read.
func (ledger *ClaimLedger) TryClaim(ctx context.Context, tx interfaces.SpinTx, rewardID int64) (*models.Reward, error) {
	reward, err := tx.ClaimReward(ctx, rewardID)
	if errors.Is(err, interfaces.ErrClaimRejected) {
		return nil, ErrRewardExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("claim reward %d: %w", rewardID, err)
	}

	return reward, nil
}

// PickAndClaim draws from candidates and claims the winner. A reward exhausted by a racing spin is dropped and the
// draw repeats over what is left, up to maxAttempts claims.
func (ledger *ClaimLedger) PickAndClaim(ctx context.Context, tx interfaces.SpinTx, selector *WeightedSelector, candidates []models.Reward) (*models.Reward, error) {
	pool := make([]models.Reward, len(candidates))
	copy(pool, candidates)

	for attempt := 1; attempt <= ledger.maxAttempts; attempt++ {
		if len(pool) == 0 {
			return nil, ErrNoRewardsAvailable
		}

		picked, err := selector.Pick(pool)
		if err != nil {
			return nil, err
		}

		claimed, err := ledger.TryClaim(ctx, tx, picked.ID)
		if err == nil {
			return claimed, nil
		}
		if !errors.Is(err, ErrRewardExhausted) {
			return nil, err
		}

		ledger.logger.Info("reward exhausted by a concurrent spin, narrowing pool",
			zap.Int64("reward_id", picked.ID),
			zap.Int("attempt", attempt),
			zap.Int("remaining", len(pool)-1),
		)
		pool = withoutReward(pool, picked.ID)
	}

	return nil, ErrNoRewardsAvailable
}

func withoutReward(pool []models.Reward, rewardID int64) []models.Reward {
	out := pool[:0]
	for _, reward := range pool {
		if reward.ID != rewardID {
			out = append(out, reward)
		}
	}
	return out
}
