package services

import (
	"math"
	"math/rand"
	"sync"

	"spinwheel/internal/models"

	"github.com/mroth/weightedrand/v2"
)

// weightScale turns real reward weights into the integer mass weightedrand works with. 0.0001 is the finest step.
const weightScale = 10000

type ServiceGacha[T any] struct {
	chooser *weightedrand.Chooser[T, int]
}

func NewServiceGacha[T any](choices []weightedrand.Choice[T, int]) (*ServiceGacha[T], error) {
	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, err
	}

	return &ServiceGacha[T]{chooser}, nil
}

func (service *ServiceGacha[T]) Pick() T {
	return service.chooser.Pick()
}

// PickSource draws from rs instead of the global source. rs is not safe for concurrent use.
func (service *ServiceGacha[T]) PickSource(rs *rand.Rand) T {
	return service.chooser.PickSource(rs)
}

// WeightedSelector picks one reward with probability proportional to its weight.
type WeightedSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedSelector uses rng for every draw; nil falls back to the global source.
func NewWeightedSelector(rng *rand.Rand) *WeightedSelector {
	return &WeightedSelector{rng: rng}
}

func (selector *WeightedSelector) Pick(candidates []models.Reward) (models.Reward, error) {
	if len(candidates) == 0 {
		return models.Reward{}, ErrNoRewardsAvailable
	}

	total := 0
	choices := make([]weightedrand.Choice[int, int], 0, len(candidates))
	for i, candidate := range candidates {
		weight := scaleWeight(candidate.Weight)
		total += weight
		choices = append(choices, weightedrand.NewChoice(i, weight))
	}
	if total == 0 {
		return models.Reward{}, ErrNoRewardsAvailable
	}

	gacha, err := NewServiceGacha[int](choices)
	if err != nil {
		return models.Reward{}, err
	}

	var index int
	if selector.rng == nil {
		index = gacha.Pick()
	} else {
		selector.mu.Lock()
		index = gacha.PickSource(selector.rng)
		selector.mu.Unlock()
	}

	return candidates[index], nil
}

func scaleWeight(weight float64) int {
	if weight <= 0 || math.IsNaN(weight) {
		return 0
	}

	scaled := math.Round(weight * weightScale)
	if scaled < 1 {
		return 1
	}
	if scaled > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(scaled)
}
