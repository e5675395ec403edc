package telemetry

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "racetune"

// Counters records search activity and the numeric fallbacks taken by the
// planners. A nil *Counters is valid and records nothing, so components can
// increment unconditionally.
type Counters struct {
	laneFallbacks      atomic.Int64
	speedFloorHits     atomic.Int64
	speedEpsilonGuards atomic.Int64
	psoPlans           atomic.Int64
	psoEvaluations     atomic.Int64
	lapEvaluations     atomic.Int64
	controllerEvals    atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	LaneFallbacks         int64 `json:"lane_fallbacks"`
	SpeedFloorHits        int64 `json:"speed_floor_hits"`
	SpeedEpsilonGuards    int64 `json:"speed_epsilon_guards"`
	PSOPlans              int64 `json:"pso_plans"`
	PSOEvaluations        int64 `json:"pso_evaluations"`
	LapEvaluations        int64 `json:"lap_evaluations"`
	ControllerEvaluations int64 `json:"controller_evaluations"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) LaneFallback() {
	if c != nil {
		c.laneFallbacks.Add(1)
	}
}

func (c *Counters) SpeedFloorHit() {
	if c != nil {
		c.speedFloorHits.Add(1)
	}
}

func (c *Counters) SpeedEpsilonGuard() {
	if c != nil {
		c.speedEpsilonGuards.Add(1)
	}
}

func (c *Counters) PSOPlan(evaluations int) {
	if c != nil {
		c.psoPlans.Add(1)
		c.psoEvaluations.Add(int64(evaluations))
	}
}

func (c *Counters) LapEvaluation() {
	if c != nil {
		c.lapEvaluations.Add(1)
	}
}

func (c *Counters) ControllerEvaluation() {
	if c != nil {
		c.controllerEvals.Add(1)
	}
}

func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		LaneFallbacks:         c.laneFallbacks.Load(),
		SpeedFloorHits:        c.speedFloorHits.Load(),
		SpeedEpsilonGuards:    c.speedEpsilonGuards.Load(),
		PSOPlans:              c.psoPlans.Load(),
		PSOEvaluations:        c.psoEvaluations.Load(),
		LapEvaluations:        c.lapEvaluations.Load(),
		ControllerEvaluations: c.controllerEvals.Load(),
	}
}

// Register exposes the counters on reg as prometheus counter functions.
func (c *Counters) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.counterFunc("aco_lane_fallbacks_total", "Lane samples that fell back to the ideal lane after a zero-sum distribution.", &c.laneFallbacks),
		c.counterFunc("speed_floor_hits_total", "Speed caps clamped to the minimum speed.", &c.speedFloorHits),
		c.counterFunc("pso_speed_epsilon_guards_total", "Overtake objective evaluations guarded against near-zero speed.", &c.speedEpsilonGuards),
		c.counterFunc("pso_plans_total", "Overtake plans computed.", &c.psoPlans),
		c.counterFunc("pso_objective_evaluations_total", "Overtake objective evaluations.", &c.psoEvaluations),
		c.counterFunc("aco_lap_evaluations_total", "Racing line lap evaluations against one opponent sample.", &c.lapEvaluations),
		c.counterFunc("ga_controller_evaluations_total", "Controller fitness evaluations.", &c.controllerEvals),
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (c *Counters) counterFunc(name, help string, v *atomic.Int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(v.Load())
	})
}
