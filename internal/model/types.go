package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

var ErrEmptyTrack = errors.New("track has no segments")

// Segment is one curvature/length unit of a track. Curvature 0 is a straight,
// 1 a hairpin.
type Segment struct {
	Curvature float64 `json:"curvature" yaml:"curvature"`
	Length    float64 `json:"length" yaml:"length"`
}

// Track is an ordered, fixed-size sequence of segments. Pheromone and
// opponent arrays are indexed by segment position, so a track must not be
// modified while a search is using it.
type Track struct {
	Segments []Segment `json:"segments" yaml:"segments"`
}

func NewTrack(segments ...Segment) Track {
	return Track{Segments: append([]Segment(nil), segments...)}
}

func (t Track) Len() int {
	return len(t.Segments)
}

func (t Track) Validate() error {
	if len(t.Segments) == 0 {
		return ErrEmptyTrack
	}
	for i, seg := range t.Segments {
		if math.IsNaN(seg.Curvature) || seg.Curvature < 0 || seg.Curvature > 1 {
			return fmt.Errorf("segment %d curvature must be in [0,1], got %v", i, seg.Curvature)
		}
		if math.IsNaN(seg.Length) || math.IsInf(seg.Length, 0) || seg.Length <= 0 {
			return fmt.Errorf("segment %d length must be > 0, got %v", i, seg.Length)
		}
	}
	return nil
}

// TotalLength returns the lap distance in meters.
func (t Track) TotalLength() float64 {
	total := 0.0
	for _, seg := range t.Segments {
		total += seg.Length
	}
	return total
}

// Lane is the discrete lateral choice for one segment.
type Lane uint8

const (
	LaneInterior Lane = iota
	LaneIdeal
	LaneExterior
)

// LaneCount is the number of lanes available on every segment.
const LaneCount = 3

func (l Lane) Valid() bool {
	return l < LaneCount
}

func (l Lane) String() string {
	switch l {
	case LaneInterior:
		return "interior"
	case LaneIdeal:
		return "ideal"
	case LaneExterior:
		return "exterior"
	default:
		return fmt.Sprintf("lane(%d)", uint8(l))
	}
}

// Short returns the single-letter form used in compact line renderings.
func (l Lane) Short() string {
	switch l {
	case LaneInterior:
		return "I"
	case LaneIdeal:
		return "D"
	case LaneExterior:
		return "E"
	default:
		return "?"
	}
}

// RacingLine assigns one lane to every segment of a track.
type RacingLine []Lane

func (r RacingLine) Clone() RacingLine {
	if r == nil {
		return nil
	}
	return append(RacingLine(nil), r...)
}

func (r RacingLine) String() string {
	parts := make([]string, len(r))
	for i, lane := range r {
		parts[i] = lane.Short()
	}
	return strings.Join(parts, "-")
}

// Ints returns the lane ordinals, the form used by persisted records.
func (r RacingLine) Ints() []int {
	out := make([]int, len(r))
	for i, lane := range r {
		out[i] = int(lane)
	}
	return out
}

func RacingLineFromInts(values []int) (RacingLine, error) {
	line := make(RacingLine, len(values))
	for i, v := range values {
		if v < 0 || v >= LaneCount {
			return nil, fmt.Errorf("lane %d out of range at segment %d", v, i)
		}
		line[i] = Lane(v)
	}
	return line, nil
}

// ControllerGenes is the number of continuous parameters in a Controller.
const ControllerGenes = 3

// Controller is the evolved driving style. All parameters live in [0,1].
type Controller struct {
	Aggression         float64 `json:"aggression" yaml:"aggression"`
	Caution            float64 `json:"caution" yaml:"caution"`
	OvertakePropensity float64 `json:"overtake_propensity" yaml:"overtake_propensity"`
}

// Clamp returns a copy with every parameter projected onto [0,1].
func (c Controller) Clamp() Controller {
	return Controller{
		Aggression:         Clamp01(c.Aggression),
		Caution:            Clamp01(c.Caution),
		OvertakePropensity: Clamp01(c.OvertakePropensity),
	}
}

func (c Controller) Vector() [ControllerGenes]float64 {
	return [ControllerGenes]float64{c.Aggression, c.Caution, c.OvertakePropensity}
}

func ControllerFromVector(v [ControllerGenes]float64) Controller {
	return Controller{Aggression: v[0], Caution: v[1], OvertakePropensity: v[2]}
}

func (c Controller) String() string {
	return fmt.Sprintf("aggression=%.4f caution=%.4f overtake=%.4f", c.Aggression, c.Caution, c.OvertakePropensity)
}

// Clamp01 projects x onto [0,1]; NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	BestLapTime   float64 `json:"best_lap_time"`
	MeanLapTime   float64 `json:"mean_lap_time"`
	Evaluations   int     `json:"evaluations"`
}

// RunRecord is the persisted outcome of one optimization run.
type RunRecord struct {
	VersionedRecord
	ID           string     `json:"id"`
	CreatedAtUTC string     `json:"created_at_utc"`
	Seed         int64      `json:"seed"`
	Track        Track      `json:"track"`
	Population   int        `json:"population"`
	Generations  int        `json:"generations"`
	Controller   Controller `json:"controller"`
	Line         []int      `json:"line"`
	Preferred    []int      `json:"preferred,omitempty"`
	LapTime      float64    `json:"lap_time"`
	IdealLapTime float64    `json:"ideal_lap_time"`
	Fitness      float64    `json:"fitness"`
}
