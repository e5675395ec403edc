package aco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"racetune/internal/model"
	"racetune/internal/opponent"
	"racetune/internal/pso"
	"racetune/internal/rng"
	"racetune/internal/telemetry"
	"racetune/internal/track"
)

// Stream tags keep the random streams of one training run apart.
const (
	streamConstruct = iota
	streamOpponents
	streamOvertake
)

const minLapTime = 1e-6

type Config struct {
	Ants             int     `json:"ants" yaml:"ants"`
	Iterations       int     `json:"iterations" yaml:"iterations"`
	Alpha            float64 `json:"alpha" yaml:"alpha"`
	Beta             float64 `json:"beta" yaml:"beta"`
	Evaporation      float64 `json:"evaporation" yaml:"evaporation"`
	Deposit          float64 `json:"deposit" yaml:"deposit"`
	InitialPheromone float64 `json:"initial_pheromone" yaml:"initial_pheromone"`
	PheromoneFloor   float64 `json:"pheromone_floor" yaml:"pheromone_floor"`
	// OpponentSamples is the number of opponent maps each line is raced
	// against; the lap time is their average.
	OpponentSamples int `json:"opponent_samples" yaml:"opponent_samples"`
	// Workers > 1 constructs and evaluates the ants of one iteration
	// concurrently.
	Workers int `json:"workers" yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Ants:             18,
		Iterations:       18,
		Alpha:            1.0,
		Beta:             2.0,
		Evaporation:      0.25,
		Deposit:          150.0,
		InitialPheromone: 0.5,
		PheromoneFloor:   1e-6,
		OpponentSamples:  2,
		Workers:          1,
	}
}

func (c Config) Validate() error {
	if c.Ants <= 0 {
		return errors.New("ant count must be > 0")
	}
	if c.Iterations <= 0 {
		return errors.New("aco iterations must be > 0")
	}
	if c.Alpha < 0 || c.Beta < 0 {
		return fmt.Errorf("alpha and beta must be >= 0: alpha=%v beta=%v", c.Alpha, c.Beta)
	}
	if c.Evaporation < 0 || c.Evaporation >= 1 {
		return fmt.Errorf("evaporation must be in [0,1), got %v", c.Evaporation)
	}
	if c.Deposit < 0 {
		return errors.New("deposit must be >= 0")
	}
	if c.PheromoneFloor <= 0 {
		return errors.New("pheromone floor must be > 0")
	}
	if c.InitialPheromone < c.PheromoneFloor {
		return errors.New("initial pheromone must be >= pheromone floor")
	}
	if c.OpponentSamples <= 0 {
		return errors.New("opponent samples must be > 0")
	}
	if c.Workers < 0 {
		return errors.New("aco workers must be >= 0")
	}
	return nil
}

// AntResult is one constructed line and its expected lap time.
type AntResult struct {
	Line    model.RacingLine
	LapTime float64
}

type IterationStats struct {
	Iteration    int     `json:"iteration"`
	BestLapTime  float64 `json:"best_lap_time"`
	MeanLapTime  float64 `json:"mean_lap_time"`
	WorstLapTime float64 `json:"worst_lap_time"`
	MinPheromone float64 `json:"min_pheromone"`
}

// Result is the outcome of one training run. Line is the best line observed;
// Preferred is the line the final pheromone distribution favours. Pheromone is
// a snapshot owned by the caller.
type Result struct {
	Line      model.RacingLine
	LapTime   float64
	Preferred model.RacingLine
	Pheromone *PheromoneTable
	History   []IterationStats
}

// Learner learns a racing line for a fixed controller. It holds no state
// between Train calls.
type Learner struct {
	cfg      Config
	sampler  opponent.Sampler
	planner  *pso.Planner
	speed    track.SpeedModel
	logger   *slog.Logger
	counters *telemetry.Counters
}

type LearnerOptions struct {
	Logger   *slog.Logger
	Counters *telemetry.Counters
}

func NewLearner(cfg Config, sampler opponent.Sampler, planner *pso.Planner, opts LearnerOptions) (*Learner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sampler.Validate(); err != nil {
		return nil, err
	}
	if planner == nil {
		return nil, errors.New("overtake planner is required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Learner{
		cfg:      cfg,
		sampler:  sampler,
		planner:  planner,
		speed:    planner.SpeedModel(),
		logger:   logger,
		counters: opts.Counters,
	}, nil
}

// Train runs a full ACO session with a fresh pheromone table. All randomness
// is derived from seed, so the result does not depend on Workers.
func (l *Learner) Train(ctx context.Context, seed int64, t model.Track, ctrl model.Controller) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	n := t.Len()
	table := NewPheromoneTable(n, l.cfg.InitialPheromone, l.cfg.PheromoneFloor)
	eta := l.heuristic(t, ctrl)

	best := AntResult{LapTime: math.Inf(1)}
	history := make([]IterationStats, 0, l.cfg.Iterations)

	for it := 0; it < l.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		opps := make([]opponent.Map, l.cfg.OpponentSamples)
		blocked := 0
		for k := range opps {
			opps[k] = l.sampler.Sample(t, rng.Derive(seed, it, streamOpponents, k))
			blocked += opps[k].Count()
		}

		ants, err := l.collect(ctx, seed, it, t, ctrl, table, eta, opps)
		if err != nil {
			return Result{}, err
		}

		times := make([]float64, len(ants))
		for a, ant := range ants {
			times[a] = ant.LapTime
			if ant.LapTime < best.LapTime {
				best = AntResult{Line: ant.Line.Clone(), LapTime: ant.LapTime}
			}
		}

		l.apply(table, ants)

		stats := IterationStats{
			Iteration:    it,
			BestLapTime:  floats.Min(times),
			MeanLapTime:  stat.Mean(times, nil),
			WorstLapTime: floats.Max(times),
			MinPheromone: table.Min(),
		}
		history = append(history, stats)
		l.logger.Debug("aco iteration",
			"iteration", it,
			"best_lap_time", stats.BestLapTime,
			"mean_lap_time", stats.MeanLapTime,
			"best_so_far", best.LapTime,
			"blocked_segments", blocked,
		)
	}

	return Result{
		Line:      best.Line,
		LapTime:   best.LapTime,
		Preferred: table.Preferred(),
		Pheromone: table.Clone(),
		History:   history,
	}, nil
}

// collect constructs and evaluates every ant of one iteration. It only reads
// the pheromone table.
func (l *Learner) collect(ctx context.Context, seed int64, it int, t model.Track, ctrl model.Controller, table *PheromoneTable, eta []float64, opps []opponent.Map) ([]AntResult, error) {
	ants := make([]AntResult, l.cfg.Ants)
	run := func(a int) {
		line := l.construct(rng.New(seed, it, streamConstruct, a), table, eta)
		times := make([]float64, len(opps))
		for k, opp := range opps {
			times[k] = l.LapTime(t, line, ctrl, opp, rng.New(seed, it, streamOvertake, a, k))
		}
		ants[a] = AntResult{Line: line, LapTime: stat.Mean(times, nil)}
	}

	if l.cfg.Workers <= 1 {
		for a := range ants {
			run(a)
		}
		return ants, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for a := range ants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run(a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ants, nil
}

// apply runs after every ant of the iteration has been collected.
func (l *Learner) apply(table *PheromoneTable, ants []AntResult) {
	table.Evaporate(l.cfg.Evaporation)
	for _, ant := range ants {
		table.Deposit(ant.Line, l.cfg.Deposit/math.Max(minLapTime, ant.LapTime))
	}
}

func (l *Learner) construct(r *rand.Rand, table *PheromoneTable, eta []float64) model.RacingLine {
	line := make(model.RacingLine, table.Segments())
	var weights [model.LaneCount]float64
	for s := range line {
		sum := 0.0
		for lane := model.Lane(0); lane < model.LaneCount; lane++ {
			w := math.Pow(table.At(s, lane), l.cfg.Alpha) * eta[s*model.LaneCount+int(lane)]
			weights[lane] = w
			sum += w
		}
		if !(sum > 0) || math.IsInf(sum, 0) {
			l.counters.LaneFallback()
			l.logger.Debug("lane distribution degenerate, using ideal lane", "segment", s, "sum", sum)
			line[s] = model.LaneIdeal
			continue
		}

		target := r.Float64() * sum
		acc := 0.0
		chosen := model.LaneIdeal
		for lane := model.Lane(0); lane < model.LaneCount; lane++ {
			acc += weights[lane]
			if target < acc {
				chosen = lane
				break
			}
		}
		line[s] = chosen
	}
	return line
}

// heuristic precomputes eta^beta per (segment, lane), where eta is the
// inverse no-opponent traversal time.
func (l *Learner) heuristic(t model.Track, ctrl model.Controller) []float64 {
	eta := make([]float64, t.Len()*model.LaneCount)
	for s, seg := range t.Segments {
		for lane := model.Lane(0); lane < model.LaneCount; lane++ {
			v, floored := l.speed.SpeedCapChecked(seg, lane, ctrl)
			if floored {
				l.counters.SpeedFloorHit()
			}
			segTime := seg.Length / v
			eta[s*model.LaneCount+int(lane)] = math.Pow(1.0/math.Max(minLapTime, segTime), l.cfg.Beta)
		}
	}
	return eta
}

// LapTime races line once against opp. Blocked segments are timed by the
// overtake planner using r; free segments use the plain speed cap.
func (l *Learner) LapTime(t model.Track, line model.RacingLine, ctrl model.Controller, opp opponent.Map, r *rand.Rand) float64 {
	l.counters.LapEvaluation()
	total := 0.0
	for s, seg := range t.Segments {
		lane := line[s]
		if slowdown, blocked := opp.At(s); blocked {
			plan := l.planner.Plan(r, pso.Encounter{
				Segment:    seg,
				Lane:       lane,
				Controller: ctrl,
				Slowdown:   slowdown,
			})
			total += plan.Time
			continue
		}
		v, floored := l.speed.SpeedCapChecked(seg, lane, ctrl)
		if floored {
			l.counters.SpeedFloorHit()
		}
		total += seg.Length / v
	}
	return total
}

// ExpectedLapTime averages LapTime over samples fresh opponent maps derived
// from seed.
func (l *Learner) ExpectedLapTime(t model.Track, line model.RacingLine, ctrl model.Controller, seed int64, samples int) (float64, error) {
	if samples <= 0 {
		return 0, errors.New("samples must be > 0")
	}
	if len(line) != t.Len() {
		return 0, fmt.Errorf("racing line length mismatch: got=%d want=%d", len(line), t.Len())
	}
	times := make([]float64, samples)
	for k := range times {
		opp := l.sampler.Sample(t, rng.Derive(seed, streamOpponents, k))
		times[k] = l.LapTime(t, line, ctrl, opp, rng.New(seed, streamOvertake, k))
	}
	return stat.Mean(times, nil), nil
}
