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

func CreateTableAccount(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Account)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Account)(nil)).Index("index_account_username").IfNotExists().Column("username").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewRaw(`
		alter table "account"
			add if not exists total_spin_purchases int not null default 0;`).Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func InsertAccount(ctx context.Context, db bun.IDB, account *models.Account) error {
	_, err := db.NewInsert().Model(account).Returning("*").Exec(ctx)
	return err
}

// InsertAccountIfNotExists keeps the first row when two requests create the same account.
func InsertAccountIfNotExists(ctx context.Context, db bun.IDB, account *models.Account) error {
	_, err := db.NewInsert().Model(account).On("conflict (id) do nothing").Exec(ctx)
	return err
}

func FindAccountByID(ctx context.Context, db bun.IDB, accountID int64) (*models.Account, error) {
	var account models.Account
	err := db.NewSelect().Model(&account).Where("id = ?", accountID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// FindAccountByIDForUpdate row-locks the account until the surrounding transaction ends.
func FindAccountByIDForUpdate(ctx context.Context, db bun.IDB, accountID int64) (*models.Account, error) {
	var account models.Account
	err := db.NewSelect().Model(&account).Where("id = ?", accountID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func UpdateAccountSpin(ctx context.Context, db bun.IDB, account *models.Account) error {
	account.UpdatedAt = time.Now()
	res, err := db.NewUpdate().Model(account).
		Column("credits_balance", "token_balance", "spins_used_today", "last_spin_date", "purchased_spins_available", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func AddPurchasedSpins(ctx context.Context, db bun.IDB, accountID int64, spins int) (*models.Account, error) {
	account := new(models.Account)
	res, err := db.NewUpdate().Model(account).
		Set("purchased_spins_available = purchased_spins_available + ?", spins).
		Set("total_spin_purchases = total_spin_purchases + ?", spins).
		Set("updated_at = current_timestamp").
		Where("id = ?", accountID).
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, interfaces.ErrNotFound
	}

	return account, nil
}
