package services

import (
	"math"
	"math/rand"
	"testing"

	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
)

// zeroSource always draws 0, which lands on the lightest candidate.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestWeightedSelectorEmpty(t *testing.T) {
	selector := NewWeightedSelector(nil)

	_, err := selector.Pick(nil)
	require.ErrorIs(t, err, ErrNoRewardsAvailable)

	_, err = selector.Pick([]models.Reward{{ID: 1, Weight: 0}})
	require.ErrorIs(t, err, ErrNoRewardsAvailable)
}

func TestWeightedSelectorNoPositiveWeight(t *testing.T) {
	selector := NewWeightedSelector(rand.New(zeroSource{}))

	_, err := selector.Pick([]models.Reward{
		{ID: 1, Weight: 0},
		{ID: 2, Weight: -3},
		{ID: 3, Weight: math.NaN()},
	})
	require.ErrorIs(t, err, ErrNoRewardsAvailable)
}

func TestWeightedSelectorForcedDraw(t *testing.T) {
	selector := NewWeightedSelector(rand.New(zeroSource{}))
	candidates := []models.Reward{
		{ID: 1, Weight: 40},
		{ID: 2, Weight: 0.1},
		{ID: 3, Weight: 15},
	}

	for i := 0; i < 10; i++ {
		picked, err := selector.Pick(candidates)
		require.NoError(t, err)
		require.Equal(t, int64(2), picked.ID)
	}
}

func TestWeightedSelectorConverges(t *testing.T) {
	selector := NewWeightedSelector(rand.New(rand.NewSource(42)))
	candidates := []models.Reward{
		{ID: 1, Weight: 1},
		{ID: 2, Weight: 2},
		{ID: 3, Weight: 7},
	}

	const draws = 100000
	counts := map[int64]int{}
	for i := 0; i < draws; i++ {
		picked, err := selector.Pick(candidates)
		require.NoError(t, err)
		counts[picked.ID]++
	}

	total := 10.0
	for _, candidate := range candidates {
		expected := candidate.Weight / total
		actual := float64(counts[candidate.ID]) / draws
		require.InDelta(t, expected, actual, 0.01, "reward %d", candidate.ID)
	}
}

func TestScaleWeight(t *testing.T) {
	tests := []struct {
		weight   float64
		expected int
	}{
		{0, 0},
		{-1, 0},
		{0.00001, 1},
		{0.1, 1000},
		{1, 10000},
		{40, 400000},
	}

	for _, ts := range tests {
		require.Equal(t, ts.expected, scaleWeight(ts.weight), "weight=%v", ts.weight)
	}
}
