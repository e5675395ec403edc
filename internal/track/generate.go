package track

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"racetune/internal/model"
)

const (
	DefaultSegments = 5
	DefaultSeed     = 123
)

// Generate builds a pseudo-random track that alternates straights and bends
// along a sine profile. Low-curvature segments are longer.
func Generate(n int, seed int64) (model.Track, error) {
	if n <= 0 {
		return model.Track{}, fmt.Errorf("segment count must be > 0, got %d", n)
	}
	rng := rand.New(rand.NewSource(seed))
	segments := make([]model.Segment, 0, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * (float64(i) / float64(n)) * uniform(rng, 0.9, 1.2)
		base := 0.15 + 0.35*math.Sin(phase)
		curvature := model.Clamp01(base + uniform(rng, -0.08, 0.08))
		var length float64
		if curvature < 0.25 {
			length = uniform(rng, 60, 140)
		} else {
			length = uniform(rng, 40, 90)
		}
		segments = append(segments, model.Segment{Curvature: curvature, Length: length})
	}
	return model.Track{Segments: segments}, nil
}

// Load reads a track file. Both a bare list of segments and a document with a
// top-level "segments" key are accepted; JSON parses as YAML.
func Load(path string) (model.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Track{}, err
	}
	var tr model.Track
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("- ")) {
		if err := yaml.Unmarshal(data, &tr.Segments); err != nil {
			return model.Track{}, fmt.Errorf("decode track %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &tr); err != nil {
		return model.Track{}, fmt.Errorf("decode track %s: %w", path, err)
	}
	if err := tr.Validate(); err != nil {
		return model.Track{}, fmt.Errorf("track %s: %w", path, err)
	}
	return tr, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
