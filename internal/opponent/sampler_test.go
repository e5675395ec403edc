package opponent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetune/internal/model"
)

func longTrack(n int) model.Track {
	segs := make([]model.Segment, n)
	for i := range segs {
		segs[i] = model.Segment{Curvature: float64(i%10) / 10, Length: 50}
	}
	return model.NewTrack(segs...)
}

func blocked(m Map) []int {
	out := []int{}
	for i := 0; i < m.Len(); i++ {
		if _, ok := m.At(i); ok {
			out = append(out, i)
		}
	}
	return out
}

func TestSampleIsIdempotentPerSeed(t *testing.T) {
	s := DefaultSampler()
	tr := longTrack(200)
	for seed := int64(0); seed < 20; seed++ {
		a := s.Sample(tr, seed)
		b := s.Sample(tr, seed)
		if diff := cmp.Diff(blocked(a), blocked(b)); diff != "" {
			t.Fatalf("seed %d blocked segments differ (-a +b):\n%s", seed, diff)
		}
		for i := 0; i < tr.Len(); i++ {
			fa, _ := a.At(i)
			fb, _ := b.At(i)
			require.Equal(t, fa, fb)
		}
	}
}

func TestSampleRespectsRange(t *testing.T) {
	s := DefaultSampler()
	tr := longTrack(500)
	m := s.Sample(tr, 42)
	require.Equal(t, tr.Len(), m.Len())
	require.NotZero(t, m.Count(), "500 segments at p=0.15 should block some")
	for _, i := range blocked(m) {
		f, ok := m.At(i)
		require.True(t, ok)
		assert.GreaterOrEqual(t, f, s.MinSlowdown)
		assert.Less(t, f, s.MaxSlowdown)
	}
	assert.Len(t, blocked(m), m.Count())
}

func TestZeroProbabilityYieldsEmptyMap(t *testing.T) {
	s := DefaultSampler()
	s.Probability = 0
	tr := longTrack(64)
	for seed := int64(0); seed < 50; seed++ {
		m := s.Sample(tr, seed)
		require.Zero(t, m.Count(), "seed %d", seed)
		require.Empty(t, blocked(m))
	}
}

func TestFullProbabilityBlocksEverySegment(t *testing.T) {
	s := DefaultSampler()
	s.Probability = 1
	m := s.Sample(longTrack(10), 3)
	assert.Equal(t, 10, m.Count())
}

func TestNewMapAndAt(t *testing.T) {
	m := NewMap([]float64{0, 0.9, 1.2, 0.8})
	assert.Equal(t, []int{1, 3}, blocked(m))
	_, ok := m.At(2)
	assert.False(t, ok)
	_, ok = m.At(-1)
	assert.False(t, ok)
	_, ok = m.At(99)
	assert.False(t, ok)
}

func TestSamplerValidate(t *testing.T) {
	require.NoError(t, DefaultSampler().Validate())
	require.Error(t, Sampler{Probability: 1.5, MinSlowdown: 0.8, MaxSlowdown: 0.9}.Validate())
	require.Error(t, Sampler{Probability: 0.1, MinSlowdown: 0, MaxSlowdown: 0.9}.Validate())
	require.Error(t, Sampler{Probability: 0.1, MinSlowdown: 0.9, MaxSlowdown: 0.8}.Validate())
}
