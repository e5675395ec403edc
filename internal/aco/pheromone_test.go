package aco

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"racetune/internal/model"
)

func TestPheromoneEvaporateClampsToFloor(t *testing.T) {
	table := NewPheromoneTable(2, 1.0, 0.1)
	for i := 0; i < 20; i++ {
		table.Evaporate(0.5)
	}
	assert.Equal(t, 0.1, table.Min())
	for _, v := range table.Values() {
		assert.Equal(t, 0.1, v)
	}
}

func TestPheromoneDeposit(t *testing.T) {
	table := NewPheromoneTable(3, 0.5, 1e-6)
	table.Deposit(model.RacingLine{model.LaneInterior, model.LaneExterior, model.LaneIdeal}, 2)
	table.Deposit(model.RacingLine{model.LaneInterior, model.LaneIdeal, model.LaneIdeal}, 0)

	assert.Equal(t, 2.5, table.At(0, model.LaneInterior))
	assert.Equal(t, 0.5, table.At(0, model.LaneIdeal))
	assert.Equal(t, 2.5, table.At(1, model.LaneExterior))
	assert.Equal(t, 2.5, table.At(2, model.LaneIdeal))
	assert.Equal(t, model.RacingLine{model.LaneInterior, model.LaneExterior, model.LaneIdeal}, table.Preferred())
}

func TestPheromoneInitialBelowFloorIsLifted(t *testing.T) {
	table := NewPheromoneTable(1, 0, 0.2)
	assert.Equal(t, 0.2, table.Min())
}

func TestPheromoneCloneIsIndependent(t *testing.T) {
	table := NewPheromoneTable(1, 0.5, 1e-6)
	clone := table.Clone()
	clone.Deposit(model.RacingLine{model.LaneIdeal}, 1)
	assert.Equal(t, 0.5, table.At(0, model.LaneIdeal))
	assert.Equal(t, 1.5, clone.At(0, model.LaneIdeal))
}

func TestPheromoneIndexPanicsOutOfRange(t *testing.T) {
	table := NewPheromoneTable(1, 0.5, 1e-6)
	assert.Panics(t, func() { table.At(1, model.LaneIdeal) })
	assert.Panics(t, func() { table.At(0, model.Lane(3)) })
}
