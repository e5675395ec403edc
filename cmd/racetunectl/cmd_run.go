package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"racetune/internal/config"
	"racetune/internal/evo"
	"racetune/internal/model"
	"racetune/internal/stats"
	"racetune/internal/telemetry"
	"racetune/internal/track"
	"racetune/pkg/racetune"
)

type runFlags struct {
	configPath   string
	trackPath    string
	segments     int
	trackSeed    int64
	seed         int64
	workers      int
	population   int
	generations  int
	ants         int
	particles    int
	opponentProb float64
	selection    string
	crossover    string
	runID        string
	plot         string
	metrics      bool
	jsonOut      bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Optimize a controller and racing line, then store the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML or JSON run configuration")
	fl.StringVar(&f.trackPath, "track", "", "YAML or JSON track file (overrides the configured track)")
	fl.IntVar(&f.segments, "segments", track.DefaultSegments, "segments of the generated track")
	fl.Int64Var(&f.trackSeed, "track-seed", track.DefaultSeed, "seed of the generated track")
	fl.Int64Var(&f.seed, "seed", 42, "search seed")
	fl.IntVar(&f.workers, "workers", 1, "controller evaluation workers")
	fl.IntVar(&f.population, "pop", 28, "population size")
	fl.IntVar(&f.generations, "gens", 18, "generation count")
	fl.IntVar(&f.ants, "ants", 18, "ants per racing-line iteration")
	fl.IntVar(&f.particles, "particles", 18, "particles per overtake plan")
	fl.Float64Var(&f.opponentProb, "opponent-prob", 0.15, "probability of an opponent on each segment")
	fl.StringVar(&f.selection, "selection", "tournament", "parent selection: "+strings.Join(evo.ListSelectors(), "|"))
	fl.StringVar(&f.crossover, "crossover", "blend", "crossover operator: "+strings.Join(evo.ListCrossovers(), "|"))
	fl.StringVar(&f.runID, "run-id", "", "explicit run id (default: random uuid)")
	fl.StringVar(&f.plot, "plot", "", "write a convergence plot: "+strings.Join(stats.PlotFormats, "|"))
	fl.BoolVar(&f.metrics, "metrics", false, "print search counters in Prometheus text format")
	fl.BoolVar(&f.jsonOut, "json", false, "emit the run summary as JSON")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalFlags, f *runFlags) error {
	cfg, err := resolveRunConfig(cmd, f)
	if err != nil {
		return err
	}
	req := racetune.RunRequest{Config: cfg, RunID: f.runID, PlotFormat: strings.ToLower(f.plot)}
	if f.trackPath != "" {
		t, err := track.Load(f.trackPath)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		req.Track = &t
	}

	counters := telemetry.NewCounters()
	client, err := g.client(cmd, counters)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.jsonOut {
		if err := writeRunJSON(out, summary); err != nil {
			return err
		}
	} else {
		printRunSummary(out, cfg, summary)
	}
	if f.metrics {
		return writeMetrics(out, counters)
	}
	return nil
}

// resolveRunConfig loads --config (or defaults) and applies the flags the
// user set explicitly. With --track the track section is not used, so it is
// not validated.
func resolveRunConfig(cmd *cobra.Command, f *runFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("segments") {
		cfg.Track.Segments = nil
		cfg.Track.Generate = f.segments
	}
	if changed("track-seed") {
		cfg.Track.Segments = nil
		cfg.Track.Seed = f.trackSeed
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("pop") {
		cfg.GA.PopulationSize = f.population
	}
	if changed("gens") {
		cfg.GA.Generations = f.generations
	}
	if changed("ants") {
		cfg.ACO.Ants = f.ants
	}
	if changed("particles") {
		cfg.PSO.Particles = f.particles
	}
	if changed("opponent-prob") {
		cfg.Opponents.Probability = f.opponentProb
	}
	if changed("selection") {
		cfg.Selection = f.selection
	}
	if changed("crossover") {
		cfg.Crossover = f.crossover
	}

	validate := cfg.Validate
	if f.trackPath != "" {
		validate = cfg.ValidateSearch
	}
	if err := validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func printRunSummary(w io.Writer, cfg config.Config, s racetune.RunSummary) {
	fmt.Fprintf(w, "run completed run_id=%s segments=%d pop=%d gens=%d seed=%d\n",
		s.RunID, s.Track.Len(), cfg.GA.PopulationSize, cfg.GA.Generations, cfg.Seed)
	for _, d := range s.Result.Diagnostics {
		fmt.Fprintf(w, "generation=%d best_lap_time=%.4f mean_lap_time=%.4f evaluations=%d\n",
			d.Generation, d.BestLapTime, d.MeanLapTime, d.Evaluations)
	}
	c := s.Result.Controller
	fmt.Fprintf(w, "best_controller aggression=%.4f caution=%.4f overtake=%.4f\n",
		c.Aggression, c.Caution, c.OvertakePropensity)
	fmt.Fprintf(w, "best_line=%s preferred_line=%s\n", s.Result.Line, s.Result.PreferredLine)
	fmt.Fprintf(w, "best_lap_time=%.4f ideal_lap_time=%.4f\n", s.Result.LapTime, s.Result.IdealLapTime)
	fmt.Fprintf(w, "artifacts_dir=%s\n", s.ArtifactsDir)
	if s.PlotPath != "" {
		fmt.Fprintf(w, "plot=%s\n", s.PlotPath)
	}
}

type runJSON struct {
	RunID            string                        `json:"run_id"`
	CreatedAtUTC     string                        `json:"created_at_utc"`
	Track            model.Track                   `json:"track"`
	Controller       model.Controller              `json:"controller"`
	Line             string                        `json:"line"`
	PreferredLine    string                        `json:"preferred_line"`
	LapTime          float64                       `json:"lap_time"`
	IdealLapTime     float64                       `json:"ideal_lap_time"`
	BestByGeneration []float64                     `json:"best_by_generation"`
	MeanByGeneration []float64                     `json:"mean_by_generation"`
	Diagnostics      []model.GenerationDiagnostics `json:"diagnostics"`
	Counters         telemetry.Snapshot            `json:"counters"`
	ArtifactsDir     string                        `json:"artifacts_dir"`
	PlotPath         string                        `json:"plot_path,omitempty"`
}

func writeRunJSON(w io.Writer, s racetune.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runJSON{
		RunID:            s.RunID,
		CreatedAtUTC:     s.CreatedAtUTC,
		Track:            s.Track,
		Controller:       s.Result.Controller,
		Line:             s.Result.Line.String(),
		PreferredLine:    s.Result.PreferredLine.String(),
		LapTime:          s.Result.LapTime,
		IdealLapTime:     s.Result.IdealLapTime,
		BestByGeneration: s.Result.BestByGeneration,
		MeanByGeneration: s.Result.MeanByGeneration,
		Diagnostics:      s.Result.Diagnostics,
		Counters:         s.Result.Counters,
		ArtifactsDir:     s.ArtifactsDir,
		PlotPath:         s.PlotPath,
	})
}

func writeMetrics(w io.Writer, counters *telemetry.Counters) error {
	reg := prometheus.NewRegistry()
	if err := counters.Register(reg); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
