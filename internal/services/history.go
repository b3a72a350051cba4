package services

import (
	"context"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"
	"spinwheel/internal/pkg"

	"github.com/samber/do"
)

type ServiceSpinHistory struct {
	store interfaces.SpinStore
}

func NewSpinHistory(store interfaces.SpinStore) *ServiceSpinHistory {
	return &ServiceSpinHistory{store}
}

func NewServiceSpinHistory(container *do.Injector) (*ServiceSpinHistory, error) {
	store, err := do.Invoke[interfaces.SpinStore](container)
	if err != nil {
		return nil, err
	}

	return NewSpinHistory(store), nil
}

// ListForAccount pages through an account's spins, newest first.
func (service *ServiceSpinHistory) ListForAccount(ctx context.Context, accountID int64, page, limit int) (*models.SpinHistoryPage, error) {
	page, limit = pkg.NormalizePage(page, limit)

	entries, total, err := service.store.ListSpinHistory(ctx, accountID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.SpinHistory{}
	}

	return &models.SpinHistoryPage{
		Data: entries,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: pkg.TotalPages(total, limit),
		},
	}, nil
}
