package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackValidate(t *testing.T) {
	require.ErrorIs(t, Track{}.Validate(), ErrEmptyTrack)

	good := NewTrack(Segment{Curvature: 0.2, Length: 80}, Segment{Curvature: 1, Length: 40})
	require.NoError(t, good.Validate())
	assert.Equal(t, 2, good.Len())
	assert.InDelta(t, 120.0, good.TotalLength(), 1e-12)

	cases := []Track{
		NewTrack(Segment{Curvature: -0.1, Length: 10}),
		NewTrack(Segment{Curvature: 1.1, Length: 10}),
		NewTrack(Segment{Curvature: math.NaN(), Length: 10}),
		NewTrack(Segment{Curvature: 0.5, Length: 0}),
		NewTrack(Segment{Curvature: 0.5, Length: math.Inf(1)}),
	}
	for i, tr := range cases {
		err := tr.Validate()
		require.Error(t, err, "case %d", i)
		assert.False(t, errors.Is(err, ErrEmptyTrack), "case %d", i)
	}
}

func TestNewTrackCopiesSegments(t *testing.T) {
	segs := []Segment{{Curvature: 0.1, Length: 100}}
	tr := NewTrack(segs...)
	segs[0].Length = 1
	assert.Equal(t, 100.0, tr.Segments[0].Length)
}

func TestControllerClamp(t *testing.T) {
	c := Controller{Aggression: 1.4, Caution: -0.2, OvertakePropensity: math.NaN()}.Clamp()
	assert.Equal(t, Controller{Aggression: 1, Caution: 0, OvertakePropensity: 0}, c)

	in := Controller{Aggression: 0.3, Caution: 0.6, OvertakePropensity: 0.9}
	assert.Equal(t, in, ControllerFromVector(in.Vector()))
}

func TestRacingLineRoundTripAndString(t *testing.T) {
	line := RacingLine{LaneInterior, LaneIdeal, LaneExterior}
	assert.Equal(t, "I-D-E", line.String())

	back, err := RacingLineFromInts(line.Ints())
	require.NoError(t, err)
	assert.Equal(t, line, back)

	_, err = RacingLineFromInts([]int{0, 3})
	require.Error(t, err)

	clone := line.Clone()
	clone[0] = LaneExterior
	assert.Equal(t, LaneInterior, line[0])
}

func TestLaneString(t *testing.T) {
	assert.Equal(t, "interior", LaneInterior.String())
	assert.Equal(t, "ideal", LaneIdeal.String())
	assert.Equal(t, "exterior", LaneExterior.String())
	assert.False(t, Lane(7).Valid())
}
