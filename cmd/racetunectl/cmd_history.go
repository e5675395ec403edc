package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"racetune/internal/model"
	"racetune/pkg/racetune"
)

type historyFlags struct {
	runID   string
	latest  bool
	limit   int
	jsonOut bool
}

func (f *historyFlags) bind(cmd *cobra.Command, withLimit bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.runID, "run-id", "", "run id")
	fl.BoolVar(&f.latest, "latest", false, "use the most recent run")
	fl.BoolVar(&f.jsonOut, "json", false, "emit JSON")
	if withLimit {
		fl.IntVar(&f.limit, "limit", 0, "max generations to print (0 = all)")
	}
}

func (f *historyFlags) request() racetune.HistoryRequest {
	return racetune.HistoryRequest{RunID: f.runID, Latest: f.latest, Limit: f.limit}
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	var (
		limit   int
		stored  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			out := cmd.OutOrStdout()
			if stored {
				return printStoredRuns(cmd, client, out, jsonOut)
			}
			items, err := client.Runs(cmd.Context(), racetune.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "run_id=%s created_at=%s seed=%d segments=%d pop=%d gens=%d best_lap_time=%.4f\n",
					item.RunID, item.CreatedAtUTC, item.Seed, item.Segments, item.Population, item.Generations, item.BestLapTime)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&stored, "stored", false, "list the runs held by the store instead of the run index")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON")
	return cmd
}

// printStoredRuns lists store records oldest first. A memory store only
// knows runs from the current process.
func printStoredRuns(cmd *cobra.Command, client *racetune.Client, out io.Writer, jsonOut bool) error {
	runs, err := client.StoredRuns(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no stored runs")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(out, "run_id=%s created_at=%s seed=%d segments=%d best_lap_time=%.4f schema=%d codec=%d\n",
			run.ID, run.CreatedAtUTC, run.Seed, run.Track.Len(), run.LapTime, run.SchemaVersion, run.CodecVersion)
	}
	return nil
}

func newFitnessCmd(g *globalFlags) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Print the best fitness of each generation of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			history, err := client.FitnessHistory(cmd.Context(), f.request())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, history)
			}
			for i, best := range history {
				fmt.Fprintf(out, "generation=%d best_fitness=%.6f\n", i+1, best)
			}
			return nil
		},
	}
	f.bind(cmd, true)
	return cmd
}

func newDiagnosticsCmd(g *globalFlags) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			diagnostics, err := client.Diagnostics(cmd.Context(), f.request())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, diagnostics)
			}
			printDiagnostics(out, diagnostics)
			return nil
		},
	}
	f.bind(cmd, true)
	return cmd
}

func printDiagnostics(w io.Writer, diagnostics []model.GenerationDiagnostics) {
	for _, d := range diagnostics {
		fmt.Fprintf(w, "generation=%d best_fitness=%.6f mean_fitness=%.6f std_fitness=%.6f best_lap_time=%.4f mean_lap_time=%.4f evaluations=%d\n",
			d.Generation, d.BestFitness, d.MeanFitness, d.StdDevFitness, d.BestLapTime, d.MeanLapTime, d.Evaluations)
	}
}

func newBestCmd(g *globalFlags) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the best controller and racing line of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			run, err := client.Best(cmd.Context(), f.request())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, run)
			}
			line, err := model.RacingLineFromInts(run.Line)
			if err != nil {
				return err
			}
			preferred, err := model.RacingLineFromInts(run.Preferred)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run_id=%s seed=%d segments=%d\n", run.ID, run.Seed, run.Track.Len())
			fmt.Fprintf(out, "best_controller aggression=%.4f caution=%.4f overtake=%.4f\n",
				run.Controller.Aggression, run.Controller.Caution, run.Controller.OvertakePropensity)
			fmt.Fprintf(out, "best_line=%s preferred_line=%s\n", line, preferred)
			fmt.Fprintf(out, "best_lap_time=%.4f ideal_lap_time=%.4f fitness=%.6f\n", run.LapTime, run.IdealLapTime, run.Fitness)
			return nil
		},
	}
	f.bind(cmd, false)
	return cmd
}

func newSummaryCmd(g *globalFlags) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the convergence summary of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Summary(cmd.Context(), f.request())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "run_id=%s generations=%d evaluations=%d\n", summary.RunID, summary.Generations, summary.Evaluations)
			fmt.Fprintf(out, "initial_best=%.6f final_best=%.6f improvement=%.6f\n", summary.InitialBest, summary.FinalBest, summary.Improvement)
			fmt.Fprintf(out, "best_mean=%.6f best_std=%.6f best_min=%.6f best_max=%.6f\n", summary.BestMean, summary.BestStd, summary.BestMin, summary.BestMax)
			fmt.Fprintf(out, "initial_lap_time=%.4f final_lap_time=%.4f\n", summary.InitialLapTime, summary.FinalLapTime)
			return nil
		},
	}
	f.bind(cmd, false)
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the artifacts of a run to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			exported, err := client.Export(cmd.Context(), racetune.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "", "export directory (default: --exports-dir)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
