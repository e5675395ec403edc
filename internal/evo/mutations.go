package evo

import (
	"math/rand"

	"racetune/internal/model"
)

// BlendCrossover draws one weight w uniformly in [0,1) and returns
// w*a + (1-w)*b gene by gene.
type BlendCrossover struct{}

func (BlendCrossover) Name() string {
	return "blend"
}

func (BlendCrossover) Cross(rng *rand.Rand, a, b model.Controller) model.Controller {
	w := rng.Float64()
	va, vb := a.Vector(), b.Vector()
	var child [model.ControllerGenes]float64
	for i := range child {
		child[i] = w*va[i] + (1-w)*vb[i]
	}
	return model.ControllerFromVector(child).Clamp()
}

// UniformCrossover takes every gene from either parent with equal
// probability.
type UniformCrossover struct{}

func (UniformCrossover) Name() string {
	return "uniform"
}

func (UniformCrossover) Cross(rng *rand.Rand, a, b model.Controller) model.Controller {
	va, vb := a.Vector(), b.Vector()
	var child [model.ControllerGenes]float64
	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = va[i]
		} else {
			child[i] = vb[i]
		}
	}
	return model.ControllerFromVector(child)
}

// GaussianMutation adds N(0, Sigma) noise to each gene with probability Rate
// and clamps the result back into [0,1].
type GaussianMutation struct {
	Rate  float64
	Sigma float64
}

func (GaussianMutation) Name() string {
	return "gaussian"
}

func (m GaussianMutation) Mutate(rng *rand.Rand, c *model.Controller) {
	genes := c.Vector()
	for i := range genes {
		if rng.Float64() < m.Rate {
			genes[i] = model.Clamp01(genes[i] + rng.NormFloat64()*m.Sigma)
		}
	}
	*c = model.ControllerFromVector(genes)
}
