package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetune/internal/config"
	"racetune/internal/model"
	"racetune/internal/telemetry"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:        runID,
			CreatedAtUTC: "2026-03-01T10:00:00Z",
			Seed:         42,
			Track:        model.NewTrack(model.Segment{Curvature: 0.1, Length: 100}, model.Segment{Curvature: 0.8, Length: 60}),
			Settings:     config.Default(),
		},
		BestByGeneration: []float64{-6, -5.5, -5.25},
		GenerationDiagnostics: []model.GenerationDiagnostics{
			{Generation: 1, BestFitness: -6, MeanFitness: -7, BestLapTime: 6, MeanLapTime: 7, Evaluations: 10},
			{Generation: 2, BestFitness: -5.5, MeanFitness: -6.5, BestLapTime: 5.5, MeanLapTime: 6.5, Evaluations: 8},
			{Generation: 3, BestFitness: -5.25, MeanFitness: -6, BestLapTime: 5.25, MeanLapTime: 6, Evaluations: 8},
		},
		Best: BestRecord{
			Controller:        model.Controller{Aggression: 0.8, Caution: 0.1, OvertakePropensity: 0.6},
			Line:              "E-D",
			LineOrdinals:      []int{2, 1},
			PreferredLine:     "E-I",
			PreferredOrdinals: []int{2, 0},
			LapTime:           5.25,
			IdealLapTime:      5.1,
			Fitness:           -5.25,
		},
		Counters: &telemetry.Snapshot{LapEvaluations: 12},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	require.NoError(t, err)

	files := []string{"config.json", "fitness_history.csv", "generation_diagnostics.json", "best.json", "summary.json", "counters.json"}
	for _, file := range files {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoError(t, err, file)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	require.NoError(t, err)
	for _, file := range files {
		_, err := os.Stat(filepath.Join(exportedDir, file))
		require.NoError(t, err, file)
	}

	_, err = ExportRunArtifacts(baseDir, "missing", outDir)
	require.Error(t, err)
}

func TestRunArtifactsReadBack(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-7")
	_, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)

	cfg, ok, err := ReadRunConfig(baseDir, "run-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config.Seed, cfg.Seed)
	assert.Equal(t, artifacts.Config.Track, cfg.Track)
	assert.Equal(t, artifacts.Config.Settings.GA, cfg.Settings.GA)

	best, ok, err := ReadBest(baseDir, "run-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Best, best)

	history, ok, err := ReadFitnessHistory(baseDir, "run-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.BestByGeneration, history)

	diagnostics, ok, err := ReadGenerationDiagnostics(baseDir, "run-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.GenerationDiagnostics, diagnostics)

	summary, ok, err := ReadSummary(baseDir, "run-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 26, summary.Evaluations)

	_, ok, err = ReadBest(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.Error(t, err)
}

func TestWriteFitnessHistoryRejectsMisalignedDiagnostics(t *testing.T) {
	err := WriteFitnessHistory(t.TempDir(), []float64{-1, -2}, []model.GenerationDiagnostics{{Generation: 1}})
	require.Error(t, err)
}

func TestRunIndexNewestFirst(t *testing.T) {
	baseDir := t.TempDir()
	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", BestLapTime: 4}))
	require.Error(t, AppendRunIndex(baseDir, RunIndexEntry{}))

	entries, err = ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].RunID)
	assert.Equal(t, "b", entries[1].RunID)
	assert.Equal(t, "a", entries[2].RunID)
	assert.Equal(t, 4.0, entries[2].BestLapTime)
}

func TestRunIndexKeepsAppendOrderForTies(t *testing.T) {
	baseDir := t.TempDir()
	const ts = "2026-05-01T12:00:00Z"
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: ts}))
		entries, err := ListRunIndex(baseDir)
		require.NoError(t, err)
		assert.Equal(t, id, entries[0].RunID, "latest append must list first")
	}

	entries, err := readRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{entries[0].RunID, entries[1].RunID, entries[2].RunID})
}

func TestRunIDsCannotEscapeBaseDir(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "runs")
	for _, id := range []string{"", " ", "../x", "a/b", `a\b`, "..", ".", "x..y"} {
		require.ErrorIs(t, ValidateRunID(id), ErrInvalidRunID, "id %q", id)
		_, err := RunDir(baseDir, id)
		require.ErrorIs(t, err, ErrInvalidRunID, "id %q", id)
	}
	require.NoError(t, ValidateRunID("3f2c9a1e-run_7"))

	_, err := WriteRunArtifacts(baseDir, sampleArtifacts("../escape"))
	require.ErrorIs(t, err, ErrInvalidRunID)
	_, err = os.Stat(filepath.Join(filepath.Dir(baseDir), "escape"))
	assert.True(t, os.IsNotExist(err))

	require.ErrorIs(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "../escape"}), ErrInvalidRunID)
	_, _, err = ReadBest(baseDir, "../escape")
	require.ErrorIs(t, err, ErrInvalidRunID)
	_, err = ExportRunArtifacts(baseDir, "../escape", t.TempDir())
	require.ErrorIs(t, err, ErrInvalidRunID)
}

func TestExportCarriesEveryPlotFormat(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("plots")
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)
	for _, format := range PlotFormats {
		require.NoError(t, ValidatePlotFormat(format))
		require.NoError(t, WriteConvergencePlot(filepath.Join(runDir, ConvergencePlotName(format)), artifacts.GenerationDiagnostics))
	}
	require.Error(t, ValidatePlotFormat("gif"))

	outDir, err := ExportRunArtifacts(baseDir, "plots", t.TempDir())
	require.NoError(t, err)
	for _, format := range PlotFormats {
		_, err := os.Stat(filepath.Join(outDir, ConvergencePlotName(format)))
		require.NoError(t, err, format)
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize("run-1", sampleArtifacts("run-1").GenerationDiagnostics)
	assert.Equal(t, 3, summary.Generations)
	assert.Equal(t, -6.0, summary.InitialBest)
	assert.Equal(t, -5.25, summary.FinalBest)
	assert.InDelta(t, 0.75, summary.Improvement, 1e-12)
	assert.Equal(t, -5.25, summary.BestMax)
	assert.Equal(t, -6.0, summary.BestMin)
	assert.InDelta(t, -5.5833333333, summary.BestMean, 1e-9)
	assert.Greater(t, summary.BestStd, 0.0)
	assert.Equal(t, 6.0, summary.InitialLapTime)
	assert.Equal(t, 5.25, summary.FinalLapTime)

	empty := Summarize("run-2", nil)
	assert.Zero(t, empty.Generations)
	assert.Zero(t, empty.BestStd)
}

func TestWriteConvergencePlot(t *testing.T) {
	dir := t.TempDir()
	diagnostics := sampleArtifacts("run-1").GenerationDiagnostics
	for _, name := range []string{"convergence.png", "convergence.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteConvergencePlot(path, diagnostics))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	require.Error(t, WriteConvergencePlot(filepath.Join(dir, "empty.png"), nil))
}
