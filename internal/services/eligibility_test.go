package services

import (
	"testing"
	"time"

	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestCheckAndReserve(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	earlierToday := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 5, 9, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name      string
		account   models.Account
		free      bool
		reset     bool
		expectErr error
	}{
		{"never spun", models.Account{}, true, true, nil},
		{"spun yesterday", models.Account{SpinsUsedToday: 3, LastSpinDate: &yesterday}, true, true, nil},
		{"free spin used, no purchased", models.Account{SpinsUsedToday: 1, LastSpinDate: &earlierToday}, false, false, ErrInsufficientSpins},
		{"free spin used, purchased left", models.Account{SpinsUsedToday: 1, LastSpinDate: &earlierToday, PurchasedSpinsAvailable: 2}, false, false, nil},
		{"not spun today", models.Account{SpinsUsedToday: 0, LastSpinDate: &earlierToday}, true, false, nil},
	}

	for _, ts := range tests {
		account := ts.account
		allowance, err := CheckAndReserve(&account, now, time.UTC, 1)
		if ts.expectErr != nil {
			require.ErrorIs(t, err, ts.expectErr, ts.name)
			require.Nil(t, allowance, ts.name)
			continue
		}

		require.NoError(t, err, ts.name)
		require.Equal(t, ts.free, allowance.IsFreeSpin, ts.name)
		require.Equal(t, ts.reset, allowance.ResetToday, ts.name)
		require.Equal(t, ts.account, account, "%s: check must not mutate", ts.name)
	}
}

func TestCheckAndReserveDayBoundaryFollowsLocation(t *testing.T) {
	// 23:30 UTC on May 9 is already May 10 in Ho Chi Minh City (UTC+7).
	loc := time.FixedZone("ICT", 7*60*60)
	lastSpin := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)
	now := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)

	account := models.Account{SpinsUsedToday: 1, LastSpinDate: &lastSpin}

	_, err := CheckAndReserve(&account, now, loc, 1)
	require.ErrorIs(t, err, ErrInsufficientSpins)

	allowance, err := CheckAndReserve(&account, now, time.UTC, 1)
	require.NoError(t, err)
	require.True(t, allowance.IsFreeSpin)
	require.True(t, allowance.ResetToday)
}

func TestCheckAndReserveFreeSpinsPerDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	account := models.Account{SpinsUsedToday: 2, LastSpinDate: ptrTime(now.Add(-time.Hour))}

	allowance, err := CheckAndReserve(&account, now, time.UTC, 3)
	require.NoError(t, err)
	require.True(t, allowance.IsFreeSpin)

	_, err = CheckAndReserve(&account, now, time.UTC, 0)
	require.ErrorIs(t, err, ErrInsufficientSpins)
}

func TestSpinAllowanceApply(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	// First spin of the day is free and leaves purchased spins alone.
	account := models.Account{SpinsUsedToday: 4, LastSpinDate: &yesterday, PurchasedSpinsAvailable: 0}
	allowance, err := CheckAndReserve(&account, now, time.UTC, 1)
	require.NoError(t, err)
	allowance.Apply(&account, now)
	require.Equal(t, 1, account.SpinsUsedToday)
	require.Equal(t, 0, account.PurchasedSpinsAvailable)
	require.Equal(t, now, *account.LastSpinDate)

	// Second spin the same day consumes one purchased spin.
	account.PurchasedSpinsAvailable = 2
	allowance, err = CheckAndReserve(&account, now.Add(time.Minute), time.UTC, 1)
	require.NoError(t, err)
	require.False(t, allowance.IsFreeSpin)
	allowance.Apply(&account, now.Add(time.Minute))
	require.Equal(t, 2, account.SpinsUsedToday)
	require.Equal(t, 1, account.PurchasedSpinsAvailable)
}
