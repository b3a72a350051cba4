package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
)

func TestWriteHistory(t *testing.T) {
	batches := [][]models.SpinHistory{
		{
			{ID: 1, AttemptID: "a", AccountID: 7, RewardID: 3, AmountCredited: 10, CreditedBalance: models.CREDITED_BALANCE_CREDITS, IsFreeSpin: true,
				RewardSnapshot: models.RewardSnapshot{Name: "10 Credits", Kind: models.RewardKindCredits}, CreatedAt: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)},
		},
		{
			{ID: 2, AttemptID: "b", AccountID: 7, RewardID: 4, RewardSnapshot: models.RewardSnapshot{Name: "Mystery, Item", Kind: models.RewardKindItem}},
		},
	}

	var buf bytes.Buffer
	n, err := writeHistory(&buf, func() ([]models.SpinHistory, error) {
		if len(batches) == 0 {
			return nil, nil
		}
		next := batches[0]
		batches = batches[1:]
		return next, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, historyHeader, records[0])
	require.Equal(t, []string{"1", "a", "7", "3", "10 Credits", "CREDITS", "10", "credits", "true", "", "2024-05-10T08:00:00Z"}, records[1])
	require.Equal(t, "Mystery, Item", records[2][4])
}

func TestWriteHistoryStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer
	_, err := writeHistory(&buf, func() ([]models.SpinHistory, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}
