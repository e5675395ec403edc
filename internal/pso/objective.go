package pso

import (
	"errors"
	"math"

	"racetune/internal/model"
	"racetune/internal/track"
)

// Decision is the overtake micro-strategy on one segment. Shift moves the car
// towards the exterior (above 0.5 it changes lane), Pace is the extra push.
type Decision struct {
	Shift float64 `json:"shift"`
	Pace  float64 `json:"pace"`
}

// Hold is the do-nothing decision: stay in lane, no extra push.
var Hold = Decision{}

// Encounter is one segment with a known opponent ahead.
type Encounter struct {
	Segment    model.Segment
	Lane       model.Lane
	Controller model.Controller
	// Slowdown is the opponent's speed as a fraction of the driver's lane cap.
	// 1 means the opponent does not hold the driver up.
	Slowdown float64
}

// Objective holds the heuristic coefficients of the overtake cost. The
// opponent caps the effective speed at Slowdown times the nominal lane cap,
// and the overtake bonus (shift and pace) lifts that cap. The risk penalty
// grows with curvature, shift, pace and aggression and shrinks with caution.
type Objective struct {
	PaceBase          float64 `json:"pace_base" yaml:"pace_base"`
	PaceGain          float64 `json:"pace_gain" yaml:"pace_gain"`
	PaceCurvatureDamp float64 `json:"pace_curvature_damp" yaml:"pace_curvature_damp"`
	ShiftBonus        float64 `json:"shift_bonus" yaml:"shift_bonus"`
	PaceBonus         float64 `json:"pace_bonus" yaml:"pace_bonus"`
	BonusScale        float64 `json:"bonus_scale" yaml:"bonus_scale"`
	RiskBase          float64 `json:"risk_base" yaml:"risk_base"`
	RiskAggression    float64 `json:"risk_aggression" yaml:"risk_aggression"`
	ShiftRiskBase     float64 `json:"shift_risk_base" yaml:"shift_risk_base"`
	ShiftRisk         float64 `json:"shift_risk" yaml:"shift_risk"`
	PaceRiskBase      float64 `json:"pace_risk_base" yaml:"pace_risk_base"`
	PaceRisk          float64 `json:"pace_risk" yaml:"pace_risk"`
	CautionRelief     float64 `json:"caution_relief" yaml:"caution_relief"`
	RiskTimeScale     float64 `json:"risk_time_scale" yaml:"risk_time_scale"`
	SpeedEpsilon      float64 `json:"speed_epsilon" yaml:"speed_epsilon"`
}

func DefaultObjective() Objective {
	return Objective{
		PaceBase:          0.08,
		PaceGain:          0.22,
		PaceCurvatureDamp: 0.5,
		ShiftBonus:        0.20,
		PaceBonus:         0.35,
		BonusScale:        0.60,
		RiskBase:          0.20,
		RiskAggression:    0.80,
		ShiftRiskBase:     0.4,
		ShiftRisk:         0.8,
		PaceRiskBase:      0.6,
		PaceRisk:          0.7,
		CautionRelief:     0.7,
		RiskTimeScale:     0.35,
		SpeedEpsilon:      1e-6,
	}
}

func (o Objective) Validate() error {
	coefficients := []float64{
		o.PaceBase, o.PaceGain, o.PaceCurvatureDamp, o.ShiftBonus, o.PaceBonus, o.BonusScale,
		o.RiskBase, o.RiskAggression, o.ShiftRiskBase, o.ShiftRisk, o.PaceRiskBase, o.PaceRisk,
		o.CautionRelief, o.RiskTimeScale,
	}
	for _, c := range coefficients {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("objective coefficients must be finite and >= 0")
		}
	}
	if o.PaceCurvatureDamp > 1 {
		return errors.New("pace curvature damp must be <= 1")
	}
	if o.CautionRelief > 1 {
		return errors.New("caution relief must be <= 1")
	}
	if o.SpeedEpsilon <= 0 {
		return errors.New("speed epsilon must be > 0")
	}
	return nil
}

// Breakdown is the objective split into its parts.
type Breakdown struct {
	Speed   float64
	Time    float64
	Risk    float64
	Penalty float64
	// Guarded is set when the effective speed had to be raised to SpeedEpsilon.
	Guarded bool
}

func (b Breakdown) Total() float64 {
	return b.Time + b.Penalty
}

// Evaluate returns the expected traversal time of enc under d plus the risk
// penalty expressed in seconds.
func (o Objective) Evaluate(speed track.SpeedModel, enc Encounter, d Decision) Breakdown {
	seg, ctrl := enc.Segment, enc.Controller

	effLane := enc.Lane
	if d.Shift > 0.5 && effLane < model.LaneExterior {
		effLane++
	}
	vNom := speed.SpeedCap(seg, enc.Lane, ctrl)
	vEff := speed.SpeedCap(seg, effLane, ctrl)

	paceGain := (o.PaceBase + o.PaceGain*ctrl.OvertakePropensity) * d.Pace * (1.0 - o.PaceCurvatureDamp*seg.Curvature)
	vEff *= 1.0 + paceGain

	bonus := o.ShiftBonus*d.Shift + o.PaceBonus*d.Pace
	oppLimit := vNom * enc.Slowdown * (1.0 + o.BonusScale*bonus)
	vEff = math.Min(vEff, oppLimit)

	risk := (o.RiskBase + o.RiskAggression*ctrl.Aggression) * seg.Curvature *
		(o.ShiftRiskBase + o.ShiftRisk*d.Shift) * (o.PaceRiskBase + o.PaceRisk*d.Pace)
	risk *= 1.0 - o.CautionRelief*ctrl.Caution

	out := Breakdown{Speed: vEff, Risk: risk, Penalty: o.RiskTimeScale * risk}
	if !(vEff >= o.SpeedEpsilon) {
		out.Speed = o.SpeedEpsilon
		out.Guarded = true
	}
	out.Time = seg.Length / out.Speed
	return out
}
