package evo

import (
	"math/rand"

	"racetune/internal/model"
)

// Crossover combines two parents into one offspring.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b model.Controller) model.Controller
}

// Mutation perturbs a controller in place. Implementations must leave every
// parameter inside [0,1].
type Mutation interface {
	Name() string
	Mutate(rng *rand.Rand, c *model.Controller)
}
