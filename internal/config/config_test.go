package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetune/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 28, cfg.GA.PopulationSize)
	assert.Equal(t, 18, cfg.ACO.Ants)
	assert.Equal(t, 22, cfg.PSO.Iterations)
	assert.Equal(t, 0.15, cfg.Opponents.Probability)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `
seed: 7
workers: 4
ga:
  population_size: 10
  generations: 3
aco:
  ants: 5
pso:
  particles: 5
track:
  segments:
    - {curvature: 0.1, length: 100}
    - {curvature: 0.8, length: 60}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 10, cfg.GA.PopulationSize)
	assert.Equal(t, 3, cfg.GA.Generations)
	assert.Equal(t, 2, cfg.GA.EliteCount, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.ACO.Ants)
	assert.Equal(t, 18, cfg.ACO.Iterations)
	assert.Equal(t, 5, cfg.PSO.Particles)
	assert.Equal(t, 4, cfg.GAConfig().Workers)

	tr, err := cfg.BuildTrack()
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, model.Segment{Curvature: 0.8, Length: 60}, tr.Segments[1])
}

func TestParseAcceptsJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"seed": 3, "opponents": {"probability": 0}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Zero(t, cfg.Opponents.Probability)
}

func TestParseEmptyDocumentGivesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("ga:\n  populaton_size: 4\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsBadSections(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"workers":   func(c *Config) { c.Workers = -1 },
		"speed":     func(c *Config) { c.Speed.TopSpeed = 0 },
		"opponents": func(c *Config) { c.Opponents.Probability = 2 },
		"ga":        func(c *Config) { c.GA.PopulationSize = 0 },
		"aco":       func(c *Config) { c.ACO.Ants = 0 },
		"pso":       func(c *Config) { c.PSO.Particles = 0 },
		"selection": func(c *Config) { c.Selection = "roulette" },
		"crossover": func(c *Config) { c.Crossover = "arithmetic" },
		"segment":   func(c *Config) { c.Track.Segments = []model.Segment{{Curvature: 2, Length: 10}} },
	} {
		cfg := Default()
		mutate(&cfg)
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
}

func TestEmptyTrackIsInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Track = TrackConfig{}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, model.ErrEmptyTrack)

	err = ValidateTrack(model.Track{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, model.ErrEmptyTrack)
}

func TestTrackSectionIsCheckedSeparately(t *testing.T) {
	cfg, err := Parse([]byte("track:\n  generate: 0\n"))
	require.NoError(t, err, "a file may leave the track to the caller")
	require.NoError(t, cfg.ValidateSearch())

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, model.ErrEmptyTrack)

	_, err = cfg.BuildTrack()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, model.ErrEmptyTrack)

	cfg.Track.Segments = []model.Segment{{Curvature: 2, Length: 10}}
	require.NoError(t, cfg.ValidateSearch())
	_, err = cfg.BuildTrack()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildTrackGeneratesByDefault(t *testing.T) {
	tr, err := Default().BuildTrack()
	require.NoError(t, err)
	assert.Equal(t, 5, tr.Len())
	require.NoError(t, tr.Validate())
}
