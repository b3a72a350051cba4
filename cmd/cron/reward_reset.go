package main

import (
	"context"
	"database/sql"
	"errors"

	"spinwheel/internal/datastore"
	"spinwheel/internal/pkg/caching"
	"spinwheel/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RewardResetJob zeroes the claimed counters at each day and month boundary of the spin timezone.
type RewardResetJob struct {
	Db     *bun.DB
	Cache  caching.Cache
	Logger *zap.Logger
}

func NewRewardResetJob(db *bun.DB, cache caching.Cache, logger *zap.Logger) *RewardResetJob {
	return &RewardResetJob{
		Db:     db,
		Cache:  cache,
		Logger: logger,
	}
}

func (j *RewardResetJob) Start(ctx context.Context, cronRunner *cron.Cron) error {
	daily := j.schedule(ctx, services.CONFIG_CRONJOB_TIME_DAILY_RESET, services.DEFAULT_CRONJOB_TIME_DAILY_RESET)
	if _, err := cronRunner.AddFunc(daily, j.runDailyReset); err != nil {
		return err
	}

	monthly := j.schedule(ctx, services.CONFIG_CRONJOB_TIME_MONTHLY_RESET, services.DEFAULT_CRONJOB_TIME_MONTHLY_RESET)
	if _, err := cronRunner.AddFunc(monthly, j.runMonthlyReset); err != nil {
		return err
	}

	j.Logger.Info("reward reset scheduled", zap.String("daily", daily), zap.String("monthly", monthly))
	return nil
}

func (j *RewardResetJob) schedule(ctx context.Context, key string, defaultValue string) string {
	config, err := datastore.GetConfigByKey(ctx, j.Db, key)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && config.Value == "") {
		return defaultValue
	}
	if err != nil {
		j.Logger.Warn("read schedule, using default", zap.String("key", key), zap.Error(err))
		return defaultValue
	}

	return config.Value
}

func (j *RewardResetJob) runDailyReset() {
	ctx := context.Background()
	n, err := datastore.ResetRewardDailyClaimed(ctx, j.Db)
	if err != nil {
		j.Logger.Error("reset daily claimed", zap.Error(err))
		return
	}

	j.invalidate(ctx)
	j.Logger.Info("daily claimed reset", zap.Int64("rewards", n))
}

func (j *RewardResetJob) runMonthlyReset() {
	ctx := context.Background()
	n, err := datastore.ResetRewardMonthlyClaimed(ctx, j.Db)
	if err != nil {
		j.Logger.Error("reset monthly claimed", zap.Error(err))
		return
	}

	j.invalidate(ctx)
	j.Logger.Info("monthly claimed reset", zap.Int64("rewards", n))
}

func (j *RewardResetJob) invalidate(ctx context.Context) {
	if err := caching.Invalidate(ctx, j.Cache, services.DBKeyActiveRewards()); err != nil {
		j.Logger.Warn("invalidate active rewards", zap.Error(err))
	}
}
