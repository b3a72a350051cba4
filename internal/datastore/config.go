package datastore

import (
	"context"

	"spinwheel/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableConfig(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Config)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}
	return nil
}

func InsertConfig(ctx context.Context, db bun.IDB, config models.Config) error {
	_, err := db.NewInsert().Model(&config).On("conflict (key) do nothing").Exec(ctx)
	if err != nil {
		return err
	}
	return nil
}

func GetConfigByKey(ctx context.Context, db bun.IDB, key string) (*models.Config, error) {
	var config models.Config
	err := db.NewSelect().Model(&config).Where("key = ?", key).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func UpsertConfig(ctx context.Context, db bun.IDB, config *models.Config) error {
	_, err := db.NewInsert().Model(config).On("conflict (key) do update").Set("value = excluded.value").Exec(ctx)
	return err
}
