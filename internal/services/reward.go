package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"spinwheel/internal/datastore"
	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"
	"spinwheel/internal/pkg/caching"

	"github.com/samber/do"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const maxRewardNameLength = 200

type RewardCatalog struct {
	Data                 []models.Reward `json:"data"`
	ExistingRewardsCount int             `json:"existing_rewards_count"`
	MaxRewards           int             `json:"max_rewards"`
}

type ServiceReward struct {
	container          *do.Injector
	postgresDB         *bun.DB
	readonlyPostgresDB *bun.DB
	cache              caching.Cache
	readonlyCache      caching.ReadOnlyCache
	serviceConfig      *ServiceConfig
	logger             *zap.Logger
}

func NewServiceReward(container *do.Injector) (*ServiceReward, error) {
	postgresDB, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	readonlyPostgresDB, err := do.InvokeNamed[*bun.DB](container, "db-readonly")
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	readonlyCache, err := do.Invoke[caching.ReadOnlyCache](container)
	if err != nil {
		return nil, err
	}

	serviceConfig, err := do.Invoke[*ServiceConfig](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceReward{container, postgresDB, readonlyPostgresDB, cache, readonlyCache, serviceConfig, logger.Named("reward")}, nil
}

// ActiveRewards is the wheel as the spin engine sees it. The list is cached for a few seconds, so counters may lag;
// the claim re-checks them.
func (service *ServiceReward) ActiveRewards(ctx context.Context) ([]models.Reward, error) {
	callback := func() ([]models.Reward, error) {
		return datastore.GetActiveRewards(ctx, service.readonlyPostgresDB)
	}

	return caching.UseCacheWithRO(ctx, service.readonlyCache, service.cache, DBKeyActiveRewards(), CACHE_TTL_5_SECONDS, callback)
}

func (service *ServiceReward) ListRewards(ctx context.Context) (*RewardCatalog, error) {
	rewards, err := datastore.GetRewards(ctx, service.postgresDB)
	if err != nil {
		return nil, err
	}

	maxRewards, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_MAX_SPIN_REWARDS, DEFAULT_MAX_SPIN_REWARDS)
	return &RewardCatalog{rewards, len(rewards), maxRewards}, nil
}

func (service *ServiceReward) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	reward, err := datastore.GetRewardByID(ctx, service.postgresDB, rewardID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrRewardNotFound
	}
	return reward, err
}

func (service *ServiceReward) CreateReward(ctx context.Context, input *models.RewardInput) (*models.Reward, error) {
	if input.Name == nil || input.Kind == nil || input.Weight == nil {
		return nil, fmt.Errorf("%w: name, kind and weight are required", ErrInvalidReward)
	}

	reward := &models.Reward{IsActive: true}
	ApplyRewardInput(reward, input)
	if err := ValidateReward(reward); err != nil {
		return nil, err
	}

	count, err := datastore.CountRewards(ctx, service.postgresDB)
	if err != nil {
		return nil, err
	}

	maxRewards, _ := service.serviceConfig.GetIntConfig(ctx, CONFIG_MAX_SPIN_REWARDS, DEFAULT_MAX_SPIN_REWARDS)
	if count >= maxRewards {
		return nil, ErrMaxRewardsReached
	}

	if err := datastore.InsertReward(ctx, service.postgresDB, reward); err != nil {
		return nil, err
	}

	service.invalidateActive(ctx)
	return reward, nil
}

// UpdateReward edits the definition only. Lowering a limit below the claimed counter is allowed; the reward simply
// stops being claimable until the next reset.
func (service *ServiceReward) UpdateReward(ctx context.Context, rewardID int64, input *models.RewardInput) (*models.Reward, error) {
	reward, err := service.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}

	ApplyRewardInput(reward, input)
	if err := ValidateReward(reward); err != nil {
		return nil, err
	}

	err = datastore.UpdateReward(ctx, service.postgresDB, reward)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrRewardNotFound
	}
	if err != nil {
		return nil, err
	}

	service.invalidateActive(ctx)
	return reward, nil
}

func (service *ServiceReward) DeleteReward(ctx context.Context, rewardID int64) error {
	err := datastore.DeleteReward(ctx, service.postgresDB, rewardID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return ErrRewardNotFound
	}
	if err != nil {
		return err
	}

	service.invalidateActive(ctx)
	return nil
}

func (service *ServiceReward) ResetDailyClaimed(ctx context.Context) (int64, error) {
	n, err := datastore.ResetRewardDailyClaimed(ctx, service.postgresDB)
	if err != nil {
		return 0, err
	}

	service.invalidateActive(ctx)
	return n, nil
}

func (service *ServiceReward) ResetMonthlyClaimed(ctx context.Context) (int64, error) {
	n, err := datastore.ResetRewardMonthlyClaimed(ctx, service.postgresDB)
	if err != nil {
		return 0, err
	}

	service.invalidateActive(ctx)
	return n, nil
}

func (service *ServiceReward) invalidateActive(ctx context.Context) {
	if err := caching.Invalidate(ctx, service.cache, DBKeyActiveRewards()); err != nil {
		service.logger.Warn("invalidate active rewards", zap.Error(err))
	}
}

func ApplyRewardInput(reward *models.Reward, input *models.RewardInput) {
	if input.Name != nil {
		reward.Name = strings.TrimSpace(*input.Name)
	}
	if input.Kind != nil {
		reward.Kind = models.RewardKind(strings.ToUpper(string(*input.Kind)))
	}
	if input.Value != nil {
		reward.Value = *input.Value
	}
	if input.Payload != nil {
		reward.Payload = input.Payload
	}
	if input.Weight != nil {
		reward.Weight = *input.Weight
	}
	if input.WheelPosition != nil {
		reward.WheelPosition = *input.WheelPosition
	}
	if input.DailyLimit != nil {
		reward.DailyLimit = *input.DailyLimit
	}
	if input.MonthlyLimit != nil {
		reward.MonthlyLimit = *input.MonthlyLimit
	}
	if input.IsActive != nil {
		reward.IsActive = *input.IsActive
	}
	if input.IconURL != nil {
		reward.IconURL = *input.IconURL
	}
}

func ValidateReward(reward *models.Reward) error {
	switch {
	case reward.Name == "" || utf8.RuneCountInString(reward.Name) > maxRewardNameLength:
		return fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidReward, maxRewardNameLength)
	case !reward.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidReward, reward.Kind)
	case !(reward.Weight > 0) || math.IsInf(reward.Weight, 0):
		return fmt.Errorf("%w: weight must be positive", ErrInvalidReward)
	case reward.DailyLimit < 0 || reward.MonthlyLimit < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidReward)
	case reward.Kind.IsBalance() && (reward.Value < 0 || math.IsNaN(reward.Value) || math.IsInf(reward.Value, 0)):
		return fmt.Errorf("%w: value must not be negative", ErrInvalidReward)
	}

	return nil
}
