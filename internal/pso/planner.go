package pso

import (
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"racetune/internal/model"
	"racetune/internal/telemetry"
	"racetune/internal/track"
)

// Config controls the swarm. A fixed iteration budget is the only stop
// condition.
type Config struct {
	Particles  int     `json:"particles" yaml:"particles"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	Inertia    float64 `json:"inertia" yaml:"inertia"`
	Cognitive  float64 `json:"cognitive" yaml:"cognitive"`
	Social     float64 `json:"social" yaml:"social"`
	// MaxVelocity bounds each velocity component; 0 disables the clamp.
	MaxVelocity float64 `json:"max_velocity" yaml:"max_velocity"`
	// Workers > 1 evaluates particles of one iteration concurrently.
	Workers int `json:"workers" yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Particles:   18,
		Iterations:  22,
		Inertia:     0.55,
		Cognitive:   1.6,
		Social:      1.6,
		MaxVelocity: 1.0,
		Workers:     1,
	}
}

func (c Config) Validate() error {
	if c.Particles <= 0 {
		return errors.New("particle count must be > 0")
	}
	if c.Iterations < 0 {
		return errors.New("pso iterations must be >= 0")
	}
	if c.Inertia < 0 || c.Cognitive < 0 || c.Social < 0 {
		return fmt.Errorf("pso coefficients must be >= 0: inertia=%v cognitive=%v social=%v", c.Inertia, c.Cognitive, c.Social)
	}
	if c.MaxVelocity < 0 {
		return errors.New("max velocity must be >= 0")
	}
	if c.Workers < 0 {
		return errors.New("pso workers must be >= 0")
	}
	return nil
}

// Plan is the best decision found for one encounter and its objective value.
type Plan struct {
	Decision    Decision
	Time        float64
	Evaluations int
}

// Planner searches the unit square of overtake decisions with a particle
// swarm. A Planner holds no mutable state and may be shared by goroutines;
// every call to Plan brings its own random stream.
type Planner struct {
	cfg       Config
	speed     track.SpeedModel
	objective Objective
	counters  *telemetry.Counters
}

func NewPlanner(cfg Config, speed track.SpeedModel, objective Objective, counters *telemetry.Counters) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := speed.Validate(); err != nil {
		return nil, err
	}
	if err := objective.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	return &Planner{cfg: cfg, speed: speed, objective: objective, counters: counters}, nil
}

func (p *Planner) SpeedModel() track.SpeedModel {
	return p.speed
}

// Cost evaluates a single decision, counting guarded evaluations.
func (p *Planner) Cost(enc Encounter, d Decision) float64 {
	b := p.objective.Evaluate(p.speed, enc, d)
	if b.Guarded {
		p.counters.SpeedEpsilonGuard()
	}
	return b.Total()
}

// Plan runs the swarm for enc. Particle 0 starts at Hold, so the result is
// never worse than doing nothing.
func (p *Planner) Plan(rng *rand.Rand, enc Encounter) Plan {
	n := p.cfg.Particles
	pos := make([]Decision, n)
	vel := make([][2]float64, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			pos[i] = Decision{Shift: rng.Float64(), Pace: rng.Float64()}
		}
		vel[i] = [2]float64{uniform(rng, -0.2, 0.2), uniform(rng, -0.2, 0.2)}
	}

	values := make([]float64, n)
	p.evaluate(enc, pos, values)

	best := append([]Decision(nil), pos...)
	bestVal := append([]float64(nil), values...)
	g := argmin(bestVal)
	gbest, gbestVal := best[g], bestVal[g]

	for it := 0; it < p.cfg.Iterations; it++ {
		// Move phase: all random draws happen here, in particle order.
		for i := 0; i < n; i++ {
			r1, r2 := rng.Float64(), rng.Float64()
			vx := p.cfg.Inertia*vel[i][0] +
				p.cfg.Cognitive*r1*(best[i].Shift-pos[i].Shift) +
				p.cfg.Social*r2*(gbest.Shift-pos[i].Shift)
			vy := p.cfg.Inertia*vel[i][1] +
				p.cfg.Cognitive*r1*(best[i].Pace-pos[i].Pace) +
				p.cfg.Social*r2*(gbest.Pace-pos[i].Pace)
			vel[i] = [2]float64{p.clampVelocity(vx), p.clampVelocity(vy)}
			pos[i] = Decision{
				Shift: model.Clamp01(pos[i].Shift + vel[i][0]),
				Pace:  model.Clamp01(pos[i].Pace + vel[i][1]),
			}
		}

		p.evaluate(enc, pos, values)

		// Global best moves only after every particle has reported.
		for i := 0; i < n; i++ {
			if values[i] < bestVal[i] {
				best[i], bestVal[i] = pos[i], values[i]
			}
		}
		g = argmin(bestVal)
		if bestVal[g] < gbestVal {
			gbest, gbestVal = best[g], bestVal[g]
		}
	}

	evaluations := n * (p.cfg.Iterations + 1)
	p.counters.PSOPlan(evaluations)
	return Plan{Decision: gbest, Time: gbestVal, Evaluations: evaluations}
}

func (p *Planner) evaluate(enc Encounter, pos []Decision, out []float64) {
	if p.cfg.Workers <= 1 || len(pos) == 1 {
		for i := range pos {
			out[i] = p.Cost(enc, pos[i])
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := range pos {
		g.Go(func() error {
			out[i] = p.Cost(enc, pos[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Planner) clampVelocity(v float64) float64 {
	limit := p.cfg.MaxVelocity
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func argmin(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
