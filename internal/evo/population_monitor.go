package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"racetune/internal/aco"
	"racetune/internal/model"
	"racetune/internal/rng"
	"racetune/internal/telemetry"
)

const (
	streamInit = iota
	streamEvaluate
	streamBreed
)

type ScoredController struct {
	Controller model.Controller `json:"controller"`
	Line       model.RacingLine `json:"line"`
	Preferred  model.RacingLine `json:"preferred,omitempty"`
	LapTime    float64          `json:"lap_time"`
	Fitness    float64          `json:"fitness"`
}

type RunResult struct {
	Best                  ScoredController
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []ScoredController
}

type Config struct {
	PopulationSize    int     `json:"population_size" yaml:"population_size"`
	Generations       int     `json:"generations" yaml:"generations"`
	EliteCount        int     `json:"elite_count" yaml:"elite_count"`
	TournamentSize    int     `json:"tournament_size" yaml:"tournament_size"`
	MutationRate      float64 `json:"mutation_rate" yaml:"mutation_rate"`
	MutationSigma     float64 `json:"mutation_sigma" yaml:"mutation_sigma"`
	EvaluationSamples int     `json:"evaluation_samples" yaml:"evaluation_samples"`
	Workers           int     `json:"workers" yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:    28,
		Generations:       18,
		EliteCount:        2,
		TournamentSize:    3,
		MutationRate:      0.25,
		MutationSigma:     0.18,
		EvaluationSamples: 2,
		Workers:           1,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if c.Generations <= 0 {
		return fmt.Errorf("generations must be > 0")
	}
	if c.EliteCount <= 0 || c.EliteCount > c.PopulationSize {
		return fmt.Errorf("elite count must be in [1, population size]")
	}
	if c.TournamentSize <= 0 {
		return fmt.Errorf("tournament size must be > 0")
	}
	if c.MutationRate < 0 || c.MutationRate > 1 || math.IsNaN(c.MutationRate) {
		return fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if c.MutationSigma < 0 || math.IsNaN(c.MutationSigma) || math.IsInf(c.MutationSigma, 0) {
		return fmt.Errorf("mutation sigma must be >= 0")
	}
	if c.EvaluationSamples <= 0 {
		return fmt.Errorf("evaluation samples must be > 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}

// MonitorConfig wires a GA run. Either Evaluator or Learner must be set; a
// Learner is wrapped in a LapEvaluator using EvaluationSamples. Nil operators
// fall back to tournament selection, blend crossover and Gaussian mutation.
type MonitorConfig struct {
	Config
	Seed      int64
	Evaluator Evaluator
	Learner   *aco.Learner
	Selector  Selector
	Crossover Crossover
	Mutation  Mutation
	// Initial controllers seed the first generation before random fill.
	Initial  []model.Controller
	Logger   *slog.Logger
	Counters *telemetry.Counters
}

type PopulationMonitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
}

// individual is a population slot. Elites carry their previous evaluation.
type individual struct {
	controller model.Controller
	carried    *ScoredController
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Initial) > cfg.PopulationSize {
		return nil, fmt.Errorf("initial population exceeds population size: %d > %d", len(cfg.Initial), cfg.PopulationSize)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Evaluator == nil {
		if cfg.Learner == nil {
			return nil, errors.New("evaluator or learner is required")
		}
		evaluator, err := NewLapEvaluator(cfg.Learner, cfg.EvaluationSamples)
		if err != nil {
			return nil, err
		}
		cfg.Evaluator = evaluator
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: cfg.TournamentSize}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = BlendCrossover{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = GaussianMutation{Rate: cfg.MutationRate, Sigma: cfg.MutationSigma}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PopulationMonitor{cfg: cfg, logger: logger}, nil
}

func (m *PopulationMonitor) Run(ctx context.Context, t model.Track) (RunResult, error) {
	if err := t.Validate(); err != nil {
		return RunResult{}, err
	}

	population := m.initialPopulation()
	bestHistory := make([]float64, 0, m.cfg.Generations)
	diagnostics := make([]model.GenerationDiagnostics, 0, m.cfg.Generations)
	var (
		scored []ScoredController
		best   ScoredController
		found  bool
	)

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		var (
			evaluations int
			err         error
		)
		scored, evaluations, err = m.evaluatePopulation(ctx, t, population, gen)
		if err != nil {
			return RunResult{}, err
		}

		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Fitness > scored[j].Fitness
		})
		if !found || scored[0].Fitness > best.Fitness {
			best = cloneScored(scored[0])
			found = true
		}
		bestHistory = append(bestHistory, scored[0].Fitness)

		diag := summarizeGeneration(scored, gen+1, evaluations)
		diagnostics = append(diagnostics, diag)
		m.logger.Info("generation complete",
			"generation", diag.Generation,
			"best_lap_time", diag.BestLapTime,
			"mean_lap_time", diag.MeanLapTime,
			"evaluations", diag.Evaluations,
		)

		if gen == m.cfg.Generations-1 {
			break
		}
		population, err = m.nextGeneration(scored, gen)
		if err != nil {
			return RunResult{}, err
		}
	}

	return RunResult{
		Best:                  best,
		BestByGeneration:      bestHistory,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       scored,
	}, nil
}

func (m *PopulationMonitor) initialPopulation() []individual {
	population := make([]individual, 0, m.cfg.PopulationSize)
	for _, c := range m.cfg.Initial {
		population = append(population, individual{controller: c.Clamp()})
	}
	r := rng.New(m.cfg.Seed, streamInit)
	for len(population) < m.cfg.PopulationSize {
		population = append(population, individual{controller: randomController(r)})
	}
	return population
}

func randomController(r *rand.Rand) model.Controller {
	return model.Controller{
		Aggression:         r.Float64(),
		Caution:            r.Float64(),
		OvertakePropensity: r.Float64(),
	}
}

// evaluatePopulation scores every individual without a carried evaluation.
// Results are placed by index so worker scheduling never changes the outcome.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, t model.Track, population []individual, generation int) ([]ScoredController, int, error) {
	type job struct {
		idx        int
		controller model.Controller
	}
	type result struct {
		idx    int
		scored ScoredController
		err    error
	}

	scored := make([]ScoredController, len(population))
	pending := make([]job, 0, len(population))
	for i, ind := range population {
		if ind.carried != nil {
			scored[i] = cloneScored(*ind.carried)
			continue
		}
		pending = append(pending, job{idx: i, controller: ind.controller})
	}
	if len(pending) == 0 {
		return scored, 0, nil
	}

	jobs := make(chan job)
	results := make(chan result, len(pending))

	workerCount := m.cfg.Workers
	if workerCount > len(pending) {
		workerCount = len(pending)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				seed := rng.Derive(m.cfg.Seed, streamEvaluate, generation, j.idx)
				eval, err := m.cfg.Evaluator.Evaluate(ctx, seed, t, j.controller)
				if err != nil {
					results <- result{idx: j.idx, err: fmt.Errorf("evaluate individual %d: %w", j.idx, err)}
					continue
				}
				m.cfg.Counters.ControllerEvaluation()
				results <- result{idx: j.idx, scored: ScoredController{
					Controller: j.controller,
					Line:       eval.Line,
					Preferred:  eval.Preferred,
					LapTime:    eval.LapTime,
					Fitness:    eval.Fitness,
				}}
			}
		}()
	}

	for _, j := range pending {
		jobs <- j
	}
	close(jobs)

	wg.Wait()
	close(results)

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		scored[res.idx] = res.scored
	}
	if firstErr != nil {
		return nil, 0, firstErr
	}
	return scored, len(pending), nil
}

// nextGeneration copies the elites with their evaluation and fills the rest
// with mutated offspring of tournament-selected parents.
func (m *PopulationMonitor) nextGeneration(ranked []ScoredController, generation int) ([]individual, error) {
	next := make([]individual, 0, m.cfg.PopulationSize)
	for i := 0; i < m.cfg.EliteCount && i < len(ranked); i++ {
		elite := cloneScored(ranked[i])
		next = append(next, individual{controller: elite.Controller, carried: &elite})
	}

	r := rng.New(m.cfg.Seed, streamBreed, generation)
	for len(next) < m.cfg.PopulationSize {
		a, err := m.cfg.Selector.PickParent(r, ranked)
		if err != nil {
			return nil, err
		}
		b, err := m.cfg.Selector.PickParent(r, ranked)
		if err != nil {
			return nil, err
		}
		child := m.cfg.Crossover.Cross(r, a, b)
		m.cfg.Mutation.Mutate(r, &child)
		next = append(next, individual{controller: child.Clamp()})
	}
	return next, nil
}

func summarizeGeneration(ranked []ScoredController, generation, evaluations int) model.GenerationDiagnostics {
	if len(ranked) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}
	fitness := make([]float64, len(ranked))
	laps := make([]float64, len(ranked))
	for i, item := range ranked {
		fitness[i] = item.Fitness
		laps[i] = item.LapTime
	}
	mean, std := stat.Mean(fitness, nil), 0.0
	if len(fitness) > 1 {
		_, std = stat.MeanStdDev(fitness, nil)
	}
	return model.GenerationDiagnostics{
		Generation:    generation,
		BestFitness:   ranked[0].Fitness,
		MeanFitness:   mean,
		MinFitness:    floats.Min(fitness),
		StdDevFitness: std,
		BestLapTime:   ranked[0].LapTime,
		MeanLapTime:   stat.Mean(laps, nil),
		Evaluations:   evaluations,
	}
}

func cloneScored(s ScoredController) ScoredController {
	s.Line = s.Line.Clone()
	s.Preferred = s.Preferred.Clone()
	return s
}
