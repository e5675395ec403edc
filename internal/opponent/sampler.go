package opponent

import (
	"errors"
	"fmt"
	"math/rand"

	"racetune/internal/model"
)

// Sampler places slower vehicles on a track. Each segment is blocked
// independently with Probability; a blocking vehicle's speed is a factor in
// [MinSlowdown, MaxSlowdown) of the driver's own cap.
type Sampler struct {
	Probability float64 `json:"probability" yaml:"probability"`
	MinSlowdown float64 `json:"min_slowdown" yaml:"min_slowdown"`
	MaxSlowdown float64 `json:"max_slowdown" yaml:"max_slowdown"`
}

func DefaultSampler() Sampler {
	return Sampler{Probability: 0.15, MinSlowdown: 0.80, MaxSlowdown: 0.95}
}

func (s Sampler) Validate() error {
	if s.Probability < 0 || s.Probability > 1 {
		return fmt.Errorf("opponent probability must be in [0,1], got %v", s.Probability)
	}
	if s.MinSlowdown <= 0 || s.MaxSlowdown >= 1 {
		return errors.New("opponent slowdown range must be inside (0,1)")
	}
	if s.MinSlowdown > s.MaxSlowdown {
		return fmt.Errorf("opponent slowdown range is inverted: min=%v max=%v", s.MinSlowdown, s.MaxSlowdown)
	}
	return nil
}

// Sample returns the opponent placement for track under seed. The same
// (track, seed) pair always produces the same Map.
func (s Sampler) Sample(track model.Track, seed int64) Map {
	rng := rand.New(rand.NewSource(seed))
	factors := make([]float64, len(track.Segments))
	for i := range factors {
		if rng.Float64() < s.Probability {
			factors[i] = s.MinSlowdown + (s.MaxSlowdown-s.MinSlowdown)*rng.Float64()
		}
	}
	return NewMap(factors)
}

// Map holds one slowdown factor per segment; zero marks a free segment.
type Map struct {
	slowdown []float64
	count    int
}

// NewMap builds a Map from explicit per-segment factors. Factors outside
// (0,1) are treated as free segments.
func NewMap(factors []float64) Map {
	m := Map{slowdown: make([]float64, len(factors))}
	for i, f := range factors {
		if f > 0 && f < 1 {
			m.slowdown[i] = f
			m.count++
		}
	}
	return m
}

// At reports the slowdown factor of segment i and whether it is blocked.
func (m Map) At(i int) (float64, bool) {
	if i < 0 || i >= len(m.slowdown) {
		return 0, false
	}
	f := m.slowdown[i]
	return f, f > 0
}

// Len is the number of segments covered, blocked or not.
func (m Map) Len() int {
	return len(m.slowdown)
}

// Count is the number of blocked segments.
func (m Map) Count() int {
	return m.count
}
