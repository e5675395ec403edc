package evo

import (
	"fmt"
	"math/rand"

	"racetune/internal/model"
)

// Selector chooses parents from a population ranked by descending fitness.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredController) (model.Controller, error)
}

// TournamentSelector draws TournamentSize distinct individuals and returns
// the fittest of them. A tournament larger than the population draws with
// replacement.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredController) (model.Controller, error) {
	if rng == nil {
		return model.Controller{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return model.Controller{}, fmt.Errorf("population is empty")
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}

	if tournamentSize > len(ranked) {
		best := ranked[rng.Intn(len(ranked))]
		for i := 1; i < tournamentSize; i++ {
			candidate := ranked[rng.Intn(len(ranked))]
			if candidate.Fitness > best.Fitness {
				best = candidate
			}
		}
		return best.Controller, nil
	}

	// Partial Fisher-Yates: the first tournamentSize slots end up distinct.
	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	best := -1
	for i := 0; i < tournamentSize; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		if best < 0 || ranked[idx[i]].Fitness > ranked[best].Fitness {
			best = idx[i]
		}
	}
	return ranked[best].Controller, nil
}

// EliteSelector picks uniformly from the top Count individuals.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredController) (model.Controller, error) {
	if rng == nil {
		return model.Controller{}, fmt.Errorf("random source is required")
	}
	if s.Count <= 0 || s.Count > len(ranked) {
		return model.Controller{}, fmt.Errorf("invalid elite count: %d", s.Count)
	}
	return ranked[rng.Intn(s.Count)].Controller, nil
}
