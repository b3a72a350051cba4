package services

import (
	"time"

	"spinwheel/internal/models"
	"spinwheel/internal/pkg"
)

// SpinAllowance is the eligibility decision for one spin. Nothing is written until Apply.
type SpinAllowance struct {
	IsFreeSpin bool
	ResetToday bool
}

// CheckAndReserve decides whether the next spin is the free daily spin or must be paid from purchased spins.
// Days are compared in loc.
func CheckAndReserve(account *models.Account, now time.Time, loc *time.Location, freeSpinsPerDay int) (*SpinAllowance, error) {
	allowance := &SpinAllowance{}

	usedToday := account.SpinsUsedToday
	if account.LastSpinDate == nil || !pkg.SameCalendarDay(*account.LastSpinDate, now, loc) {
		allowance.ResetToday = true
		usedToday = 0
	}

	if usedToday < freeSpinsPerDay {
		allowance.IsFreeSpin = true
		return allowance, nil
	}

	if account.PurchasedSpinsAvailable < 1 {
		return nil, ErrInsufficientSpins
	}

	return allowance, nil
}

func (a *SpinAllowance) Apply(account *models.Account, now time.Time) {
	if a.ResetToday {
		account.SpinsUsedToday = 0
	}
	account.SpinsUsedToday++

	if !a.IsFreeSpin {
		account.PurchasedSpinsAvailable--
	}

	spunAt := now
	account.LastSpinDate = &spunAt
}
