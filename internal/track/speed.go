package track

import (
	"errors"
	"fmt"
	"math"

	"racetune/internal/model"
)

// SpeedModel turns a (segment, lane, controller) triple into a speed cap in
// m/s. Three multiplicative factors are combined: a curvature penalty, a lane
// adjustment and the controller's driving style.
type SpeedModel struct {
	TopSpeed         float64 `json:"top_speed" yaml:"top_speed"`
	CurvaturePenalty float64 `json:"curvature_penalty" yaml:"curvature_penalty"`
	LaneAdjust       float64 `json:"lane_adjust" yaml:"lane_adjust"`
	AggressionGain   float64 `json:"aggression_gain" yaml:"aggression_gain"`
	CautionLoss      float64 `json:"caution_loss" yaml:"caution_loss"`
	MinSpeed         float64 `json:"min_speed" yaml:"min_speed"`
}

func DefaultSpeedModel() SpeedModel {
	return SpeedModel{
		TopSpeed:         69.0,
		CurvaturePenalty: 0.72,
		LaneAdjust:       0.05,
		AggressionGain:   0.35,
		CautionLoss:      0.30,
		MinSpeed:         8.0,
	}
}

func (m SpeedModel) Validate() error {
	if m.TopSpeed <= 0 {
		return errors.New("top speed must be > 0")
	}
	if m.MinSpeed <= 0 {
		return errors.New("min speed must be > 0")
	}
	if m.CurvaturePenalty < 0 || m.CurvaturePenalty > 1 {
		return fmt.Errorf("curvature penalty must be in [0,1], got %v", m.CurvaturePenalty)
	}
	if m.LaneAdjust < 0 || m.LaneAdjust >= 1 {
		return fmt.Errorf("lane adjust must be in [0,1), got %v", m.LaneAdjust)
	}
	if m.AggressionGain < 0 {
		return errors.New("aggression gain must be >= 0")
	}
	if m.CautionLoss < 0 || m.CautionLoss >= 1 {
		return fmt.Errorf("caution loss must be in [0,1), got %v", m.CautionLoss)
	}
	return nil
}

// LaneFactor is the relative speed adjustment of a lane: interior is slower,
// exterior faster, ideal neutral.
func (m SpeedModel) LaneFactor(lane model.Lane) float64 {
	switch lane {
	case model.LaneInterior:
		return -m.LaneAdjust
	case model.LaneExterior:
		return m.LaneAdjust
	default:
		return 0
	}
}

// SpeedCap returns the speed cap for the triple. The result is never below
// MinSpeed.
func (m SpeedModel) SpeedCap(seg model.Segment, lane model.Lane, ctrl model.Controller) float64 {
	v, _ := m.SpeedCapChecked(seg, lane, ctrl)
	return v
}

// SpeedCapChecked is SpeedCap that also reports whether the MinSpeed floor
// was applied.
func (m SpeedModel) SpeedCapChecked(seg model.Segment, lane model.Lane, ctrl model.Controller) (float64, bool) {
	curvature := 1.0 - m.CurvaturePenalty*seg.Curvature
	laneAdj := 1.0 + m.LaneFactor(lane)
	style := 1.0 + m.AggressionGain*ctrl.Aggression - m.CautionLoss*ctrl.Caution
	v := m.TopSpeed * curvature * laneAdj * style
	if !(v >= m.MinSpeed) {
		return m.MinSpeed, true
	}
	return v, false
}

// SegmentTime is the traversal time of seg with no opponent.
func (m SpeedModel) SegmentTime(seg model.Segment, lane model.Lane, ctrl model.Controller) float64 {
	return seg.Length / m.SpeedCap(seg, lane, ctrl)
}

// LapTime sums the no-opponent segment times of line over t. line must have
// one lane per segment.
func (m SpeedModel) LapTime(t model.Track, line model.RacingLine, ctrl model.Controller) (float64, error) {
	if len(line) != len(t.Segments) {
		return 0, fmt.Errorf("racing line length mismatch: got=%d want=%d", len(line), len(t.Segments))
	}
	total := 0.0
	for i, seg := range t.Segments {
		total += m.SegmentTime(seg, line[i], ctrl)
	}
	return total, nil
}

// IdealLapTime is a lower bound used in reports: every segment on its fastest
// lane with no opponents.
func (m SpeedModel) IdealLapTime(t model.Track, ctrl model.Controller) float64 {
	total := 0.0
	for _, seg := range t.Segments {
		best := math.Inf(1)
		for lane := model.Lane(0); lane < model.LaneCount; lane++ {
			best = math.Min(best, m.SegmentTime(seg, lane, ctrl))
		}
		total += best
	}
	return total
}
