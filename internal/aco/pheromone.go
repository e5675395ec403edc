package aco

import (
	"fmt"

	"racetune/internal/model"
)

// PheromoneTable stores one desirability weight per (segment, lane) pair in a
// flat array indexed segment*LaneCount+lane. Entries never drop below floor.
type PheromoneTable struct {
	segments int
	floor    float64
	tau      []float64
}

func NewPheromoneTable(segments int, initial, floor float64) *PheromoneTable {
	if initial < floor {
		initial = floor
	}
	tau := make([]float64, segments*model.LaneCount)
	for i := range tau {
		tau[i] = initial
	}
	return &PheromoneTable{segments: segments, floor: floor, tau: tau}
}

func (p *PheromoneTable) Segments() int {
	return p.segments
}

func (p *PheromoneTable) At(segment int, lane model.Lane) float64 {
	return p.tau[p.index(segment, lane)]
}

// Evaporate scales every entry by (1-rate) and lifts anything below the floor
// back to it.
func (p *PheromoneTable) Evaporate(rate float64) {
	keep := 1.0 - rate
	for i := range p.tau {
		v := p.tau[i] * keep
		if !(v >= p.floor) {
			v = p.floor
		}
		p.tau[i] = v
	}
}

// Deposit adds amount to every (segment, lane) pair visited by line.
func (p *PheromoneTable) Deposit(line model.RacingLine, amount float64) {
	if amount <= 0 {
		return
	}
	for segment, lane := range line {
		p.tau[p.index(segment, lane)] += amount
	}
}

// Min is the smallest entry; it never falls below the floor.
func (p *PheromoneTable) Min() float64 {
	if len(p.tau) == 0 {
		return 0
	}
	m := p.tau[0]
	for _, v := range p.tau[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Values returns a copy of the flat table.
func (p *PheromoneTable) Values() []float64 {
	return append([]float64(nil), p.tau...)
}

// Preferred returns, per segment, the lane holding the most pheromone. Ties
// go to the lower lane ordinal.
func (p *PheromoneTable) Preferred() model.RacingLine {
	line := make(model.RacingLine, p.segments)
	for s := 0; s < p.segments; s++ {
		best := model.Lane(0)
		for lane := model.Lane(1); lane < model.LaneCount; lane++ {
			if p.At(s, lane) > p.At(s, best) {
				best = lane
			}
		}
		line[s] = best
	}
	return line
}

// Clone returns an independent copy of the table.
func (p *PheromoneTable) Clone() *PheromoneTable {
	return &PheromoneTable{segments: p.segments, floor: p.floor, tau: p.Values()}
}

func (p *PheromoneTable) index(segment int, lane model.Lane) int {
	if segment < 0 || segment >= p.segments || !lane.Valid() {
		panic(fmt.Sprintf("pheromone index out of range: segment=%d lane=%d segments=%d", segment, lane, p.segments))
	}
	return segment*model.LaneCount + int(lane)
}
