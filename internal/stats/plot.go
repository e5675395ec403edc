package stats

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"racetune/internal/model"
)

// WriteConvergencePlot draws best and mean lap time per generation. The
// image format follows the file extension (png, svg, pdf).
func WriteConvergencePlot(path string, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	best := make(plotter.XYs, 0, len(diagnostics))
	mean := make(plotter.XYs, 0, len(diagnostics))
	for _, d := range diagnostics {
		best = append(best, plotter.XY{X: float64(d.Generation), Y: d.BestLapTime})
		mean = append(mean, plotter.XY{X: float64(d.Generation), Y: d.MeanLapTime})
	}

	p := plot.New()
	p.Title.Text = "Lap time convergence"
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Lap time (s)"
	p.Add(plotter.NewGrid())

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return fmt.Errorf("best line: %w", err)
	}
	bestLine.Color = color.RGBA{R: 200, A: 255}
	bestLine.Width = vg.Points(1.5)

	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return fmt.Errorf("mean line: %w", err)
	}
	meanLine.Color = color.RGBA{B: 200, A: 255}
	meanLine.Width = vg.Points(1)
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
