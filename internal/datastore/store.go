package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeUniqueViolation      = "23505"
)

// SpinStorePostgres runs a spin as one Postgres transaction.
type SpinStorePostgres struct {
	db *bun.DB
}

func NewSpinStorePostgres(db *bun.DB) *SpinStorePostgres {
	return &SpinStorePostgres{db}
}

func (store *SpinStorePostgres) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.SpinTx) error) error {
	err := store.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &spinTxPostgres{tx})
	})
	return translatePgError(err)
}

func (store *SpinStorePostgres) FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	return FindSpinHistoryByAttemptID(ctx, store.db, attemptID)
}

func (store *SpinStorePostgres) ListSpinHistory(ctx context.Context, accountID int64, limit, offset int) ([]models.SpinHistory, int, error) {
	return GetSpinHistoryByAccountID(ctx, store.db, accountID, limit, offset)
}

type spinTxPostgres struct {
	tx bun.Tx
}

func (t *spinTxPostgres) GetAccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error) {
	return FindAccountByIDForUpdate(ctx, t.tx, accountID)
}

func (t *spinTxPostgres) FindSpinHistoryByAttemptID(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	return FindSpinHistoryByAttemptID(ctx, t.tx, attemptID)
}

func (t *spinTxPostgres) ClaimReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	return ClaimReward(ctx, t.tx, rewardID)
}

func (t *spinTxPostgres) UpdateAccountSpin(ctx context.Context, account *models.Account) error {
	return UpdateAccountSpin(ctx, t.tx, account)
}

func (t *spinTxPostgres) InsertSpinHistory(ctx context.Context, entry *models.SpinHistory) error {
	return InsertSpinHistory(ctx, t.tx, entry)
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Field('C') {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected:
		return fmt.Errorf("%w: %s", interfaces.ErrConflict, pgErr.Error())
	case pgCodeUniqueViolation:
		if pgErr.Field('n') == indexSpinHistoryAttemptID {
			return fmt.Errorf("%w: %s", interfaces.ErrDuplicateAttempt, pgErr.Error())
		}
	}

	return err
}
