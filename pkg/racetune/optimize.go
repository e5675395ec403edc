// Package racetune tunes a driver controller and racing line for a track.
// Optimize is the pure search pipeline; Client adds persistence and
// artifacts on top of it.
package racetune

import (
	"context"
	"fmt"
	"log/slog"

	"racetune/internal/aco"
	"racetune/internal/config"
	"racetune/internal/evo"
	"racetune/internal/model"
	"racetune/internal/pso"
	"racetune/internal/telemetry"
)

// Result is the outcome of Optimize. PreferredLine is the line the best
// controller's final pheromone favours, which can differ from the best line
// observed. IdealLapTime is the opponent-free lower bound for Controller.
type Result struct {
	Controller       model.Controller
	Line             model.RacingLine
	PreferredLine    model.RacingLine
	LapTime          float64
	IdealLapTime     float64
	Fitness          float64
	BestByGeneration []float64
	MeanByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	Counters         telemetry.Snapshot
}

type optimizeOptions struct {
	logger   *slog.Logger
	counters *telemetry.Counters
	initial  []model.Controller
}

type Option func(*optimizeOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *optimizeOptions) { o.logger = logger }
}

// WithCounters records search activity into counters instead of a private
// set.
func WithCounters(counters *telemetry.Counters) Option {
	return func(o *optimizeOptions) { o.counters = counters }
}

// WithInitialControllers seeds the first GA generation.
func WithInitialControllers(controllers ...model.Controller) Option {
	return func(o *optimizeOptions) { o.initial = append(o.initial, controllers...) }
}

// Optimize runs the GA over controllers, the ACO over racing lines and the
// PSO over overtakes. The same track, configuration and seed always give the
// same result regardless of worker counts. The track section of cfg is
// ignored; t is the track.
func Optimize(ctx context.Context, t model.Track, cfg config.Config, opts ...Option) (Result, error) {
	o := optimizeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.counters == nil {
		o.counters = telemetry.NewCounters()
	}

	if err := cfg.ValidateSearch(); err != nil {
		return Result{}, err
	}
	if err := config.ValidateTrack(t); err != nil {
		return Result{}, err
	}

	planner, err := pso.NewPlanner(cfg.PSOConfig(), cfg.Speed, cfg.Objective, o.counters)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	learner, err := aco.NewLearner(cfg.ACOConfig(), cfg.Opponents, planner, aco.LearnerOptions{
		Logger:   o.logger,
		Counters: o.counters,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	ga := cfg.GAConfig()
	selector, err := evo.ResolveSelector(cfg.Selection, ga)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	crossover, err := evo.ResolveCrossover(cfg.Crossover)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Config:    ga,
		Seed:      cfg.Seed,
		Learner:   learner,
		Selector:  selector,
		Crossover: crossover,
		Initial:   o.initial,
		Logger:    o.logger,
		Counters:  o.counters,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	o.logger.Info("optimization started",
		"segments", t.Len(),
		"seed", cfg.Seed,
		"population", ga.PopulationSize,
		"generations", ga.Generations,
	)
	run, err := monitor.Run(ctx, t)
	if err != nil {
		return Result{}, err
	}

	mean := make([]float64, len(run.GenerationDiagnostics))
	for i, d := range run.GenerationDiagnostics {
		mean[i] = d.MeanFitness
	}
	result := Result{
		Controller:       run.Best.Controller,
		Line:             run.Best.Line.Clone(),
		PreferredLine:    run.Best.Preferred.Clone(),
		LapTime:          run.Best.LapTime,
		IdealLapTime:     cfg.Speed.IdealLapTime(t, run.Best.Controller),
		Fitness:          run.Best.Fitness,
		BestByGeneration: run.BestByGeneration,
		MeanByGeneration: mean,
		Diagnostics:      run.GenerationDiagnostics,
		Counters:         o.counters.Snapshot(),
	}
	o.logger.Info("optimization finished",
		"lap_time", result.LapTime,
		"line", result.Line.String(),
		"controller", result.Controller.String(),
	)
	return result, nil
}
