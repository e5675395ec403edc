// Package config holds the run configuration: track source, physical
// models, and the parameters of the three search tiers.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"racetune/internal/aco"
	"racetune/internal/evo"
	"racetune/internal/model"
	"racetune/internal/opponent"
	"racetune/internal/pso"
	"racetune/internal/track"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// TrackConfig selects the track. Inline segments win over generation.
type TrackConfig struct {
	Segments []model.Segment `json:"segments,omitempty" yaml:"segments,omitempty"`
	Generate int             `json:"generate" yaml:"generate"`
	Seed     int64           `json:"seed" yaml:"seed"`
}

type Config struct {
	Seed int64 `json:"seed" yaml:"seed"`
	// Workers, when > 0, sizes the controller evaluation pool.
	Workers   int              `json:"workers" yaml:"workers"`
	Selection string           `json:"selection" yaml:"selection"`
	Crossover string           `json:"crossover" yaml:"crossover"`
	Track     TrackConfig      `json:"track" yaml:"track"`
	Speed     track.SpeedModel `json:"speed" yaml:"speed"`
	Opponents opponent.Sampler `json:"opponents" yaml:"opponents"`
	GA        evo.Config       `json:"ga" yaml:"ga"`
	ACO       aco.Config       `json:"aco" yaml:"aco"`
	PSO       pso.Config       `json:"pso" yaml:"pso"`
	Objective pso.Objective    `json:"objective" yaml:"objective"`
}

func Default() Config {
	return Config{
		Seed:      42,
		Selection: "tournament",
		Crossover: "blend",
		Track: TrackConfig{
			Generate: track.DefaultSegments,
			Seed:     track.DefaultSeed,
		},
		Speed:     track.DefaultSpeedModel(),
		Opponents: opponent.DefaultSampler(),
		GA:        evo.DefaultConfig(),
		ACO:       aco.DefaultConfig(),
		PSO:       pso.DefaultConfig(),
		Objective: pso.DefaultObjective(),
	}
}

// Load reads a YAML (or JSON) file on top of Default. Unknown keys are
// rejected. The track section is checked later by BuildTrack, so a file may
// leave it empty when the track comes from elsewhere.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.ValidateSearch(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the search parameters and the track section.
func (c Config) Validate() error {
	if err := c.ValidateSearch(); err != nil {
		return err
	}
	return c.validateTrackSource()
}

// ValidateSearch checks everything except the track section, for callers
// that supply their own track.
func (c Config) ValidateSearch() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if _, err := evo.ResolveSelector(c.Selection, c.GA); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := evo.ResolveCrossover(c.Crossover); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	checks := []struct {
		section string
		err     error
	}{
		{"speed", c.Speed.Validate()},
		{"opponents", c.Opponents.Validate()},
		{"ga", c.GA.Validate()},
		{"aco", c.ACO.Validate()},
		{"pso", c.PSO.Validate()},
		{"objective", c.Objective.Validate()},
	}
	for _, check := range checks {
		if check.err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, check.section, check.err)
		}
	}
	return nil
}

func (c Config) validateTrackSource() error {
	if len(c.Track.Segments) == 0 && c.Track.Generate <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, model.ErrEmptyTrack)
	}
	if len(c.Track.Segments) > 0 {
		if err := model.NewTrack(c.Track.Segments...).Validate(); err != nil {
			return fmt.Errorf("%w: track: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// BuildTrack returns the inline track or generates one.
func (c Config) BuildTrack() (model.Track, error) {
	if err := c.validateTrackSource(); err != nil {
		return model.Track{}, err
	}
	if len(c.Track.Segments) > 0 {
		return model.NewTrack(c.Track.Segments...), nil
	}
	t, err := track.Generate(c.Track.Generate, c.Track.Seed)
	if err != nil {
		return model.Track{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return t, nil
}

// ValidateTrack reports track errors as invalid configuration.
func ValidateTrack(t model.Track) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// GAConfig applies the global worker count to the GA section.
func (c Config) GAConfig() evo.Config {
	ga := c.GA
	if c.Workers > 0 {
		ga.Workers = c.Workers
	}
	return ga
}

func (c Config) ACOConfig() aco.Config {
	return c.ACO
}

func (c Config) PSOConfig() pso.Config {
	return c.PSO
}
