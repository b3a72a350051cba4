package datastore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableReward(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Reward)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Reward)(nil)).Index("index_spin_reward_wheel_position").IfNotExists().Column("wheel_position").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Reward)(nil)).Index("index_spin_reward_is_active").IfNotExists().Column("is_active").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewRaw(`
		alter table "spin_reward"
			add if not exists icon_url varchar default '';
		alter table "spin_reward"
			alter column daily_claimed set default 0;
		alter table "spin_reward"
			alter column monthly_claimed set default 0;`).Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func GetActiveRewards(ctx context.Context, db bun.IDB) ([]models.Reward, error) {
	var rewards []models.Reward
	err := db.NewSelect().Model(&rewards).
		Where("is_active = ?", true).
		Order("wheel_position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return rewards, nil
}

func GetRewards(ctx context.Context, db bun.IDB) ([]models.Reward, error) {
	var rewards []models.Reward
	err := db.NewSelect().Model(&rewards).Order("wheel_position ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return rewards, nil
}

func CountRewards(ctx context.Context, db bun.IDB) (int, error) {
	return db.NewSelect().Model((*models.Reward)(nil)).Count(ctx)
}

func GetRewardByID(ctx context.Context, db bun.IDB, rewardID int64) (*models.Reward, error) {
	var reward models.Reward
	err := db.NewSelect().Model(&reward).Where("id = ?", rewardID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &reward, nil
}

func InsertReward(ctx context.Context, db bun.IDB, reward *models.Reward) error {
	_, err := db.NewInsert().Model(reward).Returning("*").Exec(ctx)
	return err
}

// UpdateReward writes the admin-editable columns only. Claimed counters are owned by ClaimReward and the reset job.
func UpdateReward(ctx context.Context, db bun.IDB, reward *models.Reward) error {
	reward.UpdatedAt = time.Now()
	res, err := db.NewUpdate().Model(reward).
		Column("name", "kind", "value", "payload", "weight", "wheel_position", "daily_limit", "monthly_limit", "is_active", "icon_url", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func DeleteReward(ctx context.Context, db bun.IDB, rewardID int64) error {
	res, err := db.NewDelete().Model((*models.Reward)(nil)).Where("id = ?", rewardID).Exec(ctx)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

// ClaimReward is a single compare-and-increment. The row lock taken by the update makes concurrent claims on the
// same reward queue up, and Postgres re-evaluates the WHERE clause against the row each waiter finally sees.
func ClaimReward(ctx context.Context, db bun.IDB, rewardID int64) (*models.Reward, error) {
	reward := new(models.Reward)
	res, err := claimRewardQuery(db, reward, rewardID).Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrClaimRejected
	}
	if err != nil {
		return nil, err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, interfaces.ErrClaimRejected
	}

	return reward, nil
}

func claimRewardQuery(db bun.IDB, reward *models.Reward, rewardID int64) *bun.UpdateQuery {
	return db.NewUpdate().Model(reward).
		Set("daily_claimed = daily_claimed + 1").
		Set("monthly_claimed = monthly_claimed + 1").
		Set("updated_at = current_timestamp").
		Where("id = ?", rewardID).
		Where("is_active = ?", true).
		Where("(daily_limit = 0 OR daily_claimed < daily_limit)").
		Where("(monthly_limit = 0 OR monthly_claimed < monthly_limit)").
		Returning("*")
}

func ResetRewardDailyClaimed(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewUpdate().Model((*models.Reward)(nil)).
		Set("daily_claimed = 0").
		Set("updated_at = current_timestamp").
		Where("daily_claimed <> 0").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func ResetRewardMonthlyClaimed(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewUpdate().Model((*models.Reward)(nil)).
		Set("monthly_claimed = 0").
		Set("updated_at = current_timestamp").
		Where("monthly_claimed <> 0").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// UpsertRewardByName matches on name. Used by the seed and catalog import commands.
func UpsertRewardByName(ctx context.Context, db bun.IDB, reward *models.Reward) error {
	var existing models.Reward
	err := db.NewSelect().Model(&existing).Where("name = ?", reward.Name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return InsertReward(ctx, db, reward)
	}
	if err != nil {
		return err
	}

	reward.ID = existing.ID
	return UpdateReward(ctx, db, reward)
}
