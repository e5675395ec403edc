package evo

import (
	"context"
	"errors"

	"racetune/internal/aco"
	"racetune/internal/model"
	"racetune/internal/rng"
)

// Evaluation is the outcome of scoring one controller. Preferred, when set,
// is the line favoured by the learner's final pheromone.
type Evaluation struct {
	Line      model.RacingLine
	Preferred model.RacingLine
	LapTime   float64
	Fitness   float64
}

// Evaluator scores a controller on a track. Implementations must be safe for
// concurrent use and derive all randomness from seed.
type Evaluator interface {
	Evaluate(ctx context.Context, seed int64, t model.Track, c model.Controller) (Evaluation, error)
}

// LapEvaluator trains a racing line for the controller and replays it against
// Samples fresh opponent batches. Fitness is the negated mean lap time.
type LapEvaluator struct {
	learner *aco.Learner
	samples int
}

func NewLapEvaluator(learner *aco.Learner, samples int) (*LapEvaluator, error) {
	if learner == nil {
		return nil, errors.New("learner is required")
	}
	if samples <= 0 {
		return nil, errors.New("evaluation samples must be > 0")
	}
	return &LapEvaluator{learner: learner, samples: samples}, nil
}

func (e *LapEvaluator) Evaluate(ctx context.Context, seed int64, t model.Track, c model.Controller) (Evaluation, error) {
	trained, err := e.learner.Train(ctx, rng.Derive(seed, 0), t, c)
	if err != nil {
		return Evaluation{}, err
	}
	lap, err := e.learner.ExpectedLapTime(t, trained.Line, c, rng.Derive(seed, 1), e.samples)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Line:      trained.Line,
		Preferred: trained.Preferred,
		LapTime:   lap,
		Fitness:   -lap,
	}, nil
}
