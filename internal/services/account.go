package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spinwheel/internal/datastore"
	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"

	"github.com/samber/do"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var ErrInvalidSpinGrant = errors.New("spins to grant must be positive")

type ServiceAccount struct {
	container  *do.Injector
	postgresDB *bun.DB
	logger     *zap.Logger
}

func NewServiceAccount(container *do.Injector) (*ServiceAccount, error) {
	postgresDB, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	logger, err := do.Invoke[*zap.Logger](container)
	if err != nil {
		return nil, err
	}

	return &ServiceAccount{container, postgresDB, logger.Named("account")}, nil
}

func (service *ServiceAccount) FindAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	account, err := datastore.FindAccountByID(ctx, service.postgresDB, accountID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (service *ServiceAccount) FindOrCreateAccount(ctx context.Context, accountAuth *models.AccountFromAuth) (*models.Account, error) {
	if accountAuth == nil {
		return nil, errors.New("accountAuth is nil")
	}

	account, err := service.FindAccount(ctx, accountAuth.ID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &models.Account{
		ID:       accountAuth.ID,
		Username: strings.ToLower(accountAuth.Username),
	}
	if err := datastore.InsertAccountIfNotExists(ctx, service.postgresDB, newAccount); err != nil {
		return nil, err
	}

	service.logger.Info("account created", zap.Int64("account_id", newAccount.ID), zap.String("username", newAccount.Username))
	return service.FindAccount(ctx, accountAuth.ID)
}

// GrantSpins credits purchased spins. It stands in for the purchase flow, which lives outside this service.
func (service *ServiceAccount) GrantSpins(ctx context.Context, accountID int64, spins int) (*models.Account, error) {
	if spins < 1 {
		return nil, ErrInvalidSpinGrant
	}

	account, err := datastore.AddPurchasedSpins(ctx, service.postgresDB, accountID, spins)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("grant spins to %d: %w", accountID, err)
	}

	service.logger.Info("spins granted", zap.Int64("account_id", accountID), zap.Int("spins", spins))
	return account, nil
}
