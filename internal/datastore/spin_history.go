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

const indexSpinHistoryAttemptID = "index_spin_history_attempt_id"

func CreateTableSpinHistory(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.SpinHistory)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.SpinHistory)(nil)).Index(indexSpinHistoryAttemptID).Unique().IfNotExists().Column("attempt_id").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.SpinHistory)(nil)).Index("index_spin_history_account_id_created_at").IfNotExists().ColumnExpr("account_id, created_at desc").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func InsertSpinHistory(ctx context.Context, db bun.IDB, entry *models.SpinHistory) error {
	_, err := db.NewInsert().Model(entry).Returning("*").Exec(ctx)
	return err
}

func FindSpinHistoryByAttemptID(ctx context.Context, db bun.IDB, attemptID string) (*models.SpinHistory, error) {
	var entry models.SpinHistory
	err := db.NewSelect().Model(&entry).Where("attempt_id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func GetSpinHistoryByAccountID(ctx context.Context, db bun.IDB, accountID int64, limit, offset int) ([]models.SpinHistory, int, error) {
	var entries []models.SpinHistory
	total, err := db.NewSelect().Model(&entries).
		Where("account_id = ?", accountID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetSpinHistoryAfter pages by id in ascending order. An accountID of 0 matches every account.
func GetSpinHistoryAfter(ctx context.Context, db bun.IDB, accountID int64, since time.Time, afterID int64, limit int) ([]models.SpinHistory, error) {
	var entries []models.SpinHistory
	q := db.NewSelect().Model(&entries).
		Where("id > ?", afterID).
		Where("created_at >= ?", since)
	if accountID > 0 {
		q = q.Where("account_id = ?", accountID)
	}

	err := q.Order("id ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
