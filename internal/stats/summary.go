package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"racetune/internal/model"
)

// Summary condenses the per-generation best fitness of a run.
type Summary struct {
	RunID          string  `json:"run_id"`
	Generations    int     `json:"generations"`
	Evaluations    int     `json:"evaluations"`
	InitialBest    float64 `json:"initial_best"`
	FinalBest      float64 `json:"final_best"`
	BestMean       float64 `json:"best_mean"`
	BestStd        float64 `json:"best_std"`
	BestMax        float64 `json:"best_max"`
	BestMin        float64 `json:"best_min"`
	Improvement    float64 `json:"improvement"`
	InitialLapTime float64 `json:"initial_lap_time"`
	FinalLapTime   float64 `json:"final_lap_time"`
}

func Summarize(runID string, diagnostics []model.GenerationDiagnostics) Summary {
	summary := Summary{RunID: runID, Generations: len(diagnostics)}
	if len(diagnostics) == 0 {
		return summary
	}

	best := make([]float64, len(diagnostics))
	for i, d := range diagnostics {
		best[i] = d.BestFitness
		summary.Evaluations += d.Evaluations
	}
	first, last := diagnostics[0], diagnostics[len(diagnostics)-1]

	summary.InitialBest = first.BestFitness
	summary.FinalBest = last.BestFitness
	summary.Improvement = last.BestFitness - first.BestFitness
	summary.InitialLapTime = first.BestLapTime
	summary.FinalLapTime = last.BestLapTime
	summary.BestMax = floats.Max(best)
	summary.BestMin = floats.Min(best)
	if len(best) > 1 {
		summary.BestMean, summary.BestStd = stat.MeanStdDev(best, nil)
	} else {
		summary.BestMean = best[0]
	}
	return summary
}
