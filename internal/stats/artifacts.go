package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"racetune/internal/config"
	"racetune/internal/model"
	"racetune/internal/telemetry"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.csv"
	diagnosticsFile    = "generation_diagnostics.json"
	bestFile           = "best.json"
	summaryFile        = "summary.json"
	countersFile       = "counters.json"
)

// ErrInvalidRunID marks run ids that cannot name an artifact directory.
var ErrInvalidRunID = errors.New("invalid run id")

// PlotFormats lists the convergence plot formats WriteConvergencePlot
// supports.
var PlotFormats = []string{"png", "svg", "pdf"}

type RunConfig struct {
	RunID        string        `json:"run_id"`
	CreatedAtUTC string        `json:"created_at_utc"`
	Seed         int64         `json:"seed"`
	Track        model.Track   `json:"track"`
	Settings     config.Config `json:"settings"`
}

// BestRecord is the best controller of a run with its learned line.
// PreferredLine is the line its final pheromone favours; IdealLapTime is the
// opponent-free lower bound for the controller. Ordinals hold the lane
// ordinals of the matching line.
type BestRecord struct {
	Controller        model.Controller `json:"controller"`
	Line              string           `json:"line"`
	LineOrdinals      []int            `json:"line_ordinals"`
	PreferredLine     string           `json:"preferred_line,omitempty"`
	PreferredOrdinals []int            `json:"preferred_ordinals,omitempty"`
	LapTime           float64          `json:"lap_time"`
	IdealLapTime      float64          `json:"ideal_lap_time"`
	Fitness           float64          `json:"fitness"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	Best                  BestRecord                    `json:"best"`
	Counters              *telemetry.Snapshot           `json:"counters,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             int64   `json:"seed"`
	Segments         int     `json:"segments"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Workers          int     `json:"workers"`
	BestLapTime      float64 `json:"best_lap_time"`
	FinalBestFitness float64 `json:"final_best_fitness"`
}

// WriteRunArtifacts writes one directory per run under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	runDir, err := RunDir(baseDir, artifacts.Config.RunID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteFitnessHistory(runDir, artifacts.BestByGeneration, artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, bestFile), artifacts.Best); err != nil {
		return "", err
	}
	summary := Summarize(artifacts.Config.RunID, artifacts.GenerationDiagnostics)
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	if artifacts.Counters != nil {
		if err := writeJSON(filepath.Join(runDir, countersFile), artifacts.Counters); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

// WriteFitnessHistory writes one CSV row per generation. Diagnostics, when
// present, must be aligned with bestByGeneration.
func WriteFitnessHistory(runDir string, bestByGeneration []float64, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) > 0 && len(diagnostics) != len(bestByGeneration) {
		return fmt.Errorf("diagnostics length mismatch: got=%d want=%d", len(diagnostics), len(bestByGeneration))
	}
	file, err := os.Create(filepath.Join(runDir, fitnessHistoryFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness", "mean_fitness", "best_lap_time", "mean_lap_time"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		row := []string{strconv.Itoa(i + 1), formatFloat(best), "", "", ""}
		if len(diagnostics) > 0 {
			d := diagnostics[i]
			row[2] = formatFloat(d.MeanFitness)
			row[3] = formatFloat(d.BestLapTime)
			row[4] = formatFloat(d.MeanLapTime)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessHistory returns the best_fitness column of a run.
func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	runDir, err := RunDir(baseDir, runID)
	if err != nil {
		return nil, false, err
	}
	file, err := os.Open(filepath.Join(runDir, fitnessHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness history header must have at least 2 columns")
	}

	series := make([]float64, 0, 32)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

// AppendRunIndex records entry in append order, replacing an entry with the
// same run id in place.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if err := ValidateRunID(entry.RunID); err != nil {
		return err
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	// Later appends win ties on equal timestamps.
	order := make(map[string]int, len(entries))
	for i, e := range entries {
		order[e.RunID] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtUTC == entries[j].CreatedAtUTC {
			return order[entries[i].RunID] > order[entries[j].RunID]
		}
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// readRunIndex returns the index in file order, which is append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

var exportRequired = []string{configFile, fitnessHistoryFile, diagnosticsFile, bestFile}

func exportOptional() []string {
	files := []string{summaryFile, countersFile}
	for _, format := range PlotFormats {
		files = append(files, ConvergencePlotName(format))
	}
	return files
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	src, err := RunDir(baseDir, runID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range exportRequired {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range exportOptional() {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readRunJSON(baseDir, runID, configFile, &cfg)
	return cfg, ok, err
}

func ReadBest(baseDir, runID string) (BestRecord, bool, error) {
	var best BestRecord
	ok, err := readRunJSON(baseDir, runID, bestFile, &best)
	return best, ok, err
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readRunJSON(baseDir, runID, summaryFile, &summary)
	return summary, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readRunJSON(baseDir, runID, diagnosticsFile, &diagnostics)
	return diagnostics, ok, err
}

// ValidateRunID rejects ids that are empty or would leave the artifacts
// directory when joined into a path.
func ValidateRunID(runID string) error {
	switch {
	case strings.TrimSpace(runID) == "":
		return fmt.Errorf("%w: run id is required", ErrInvalidRunID)
	case strings.ContainsAny(runID, `/\`), strings.Contains(runID, ".."), runID == ".":
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// RunDir returns the artifact directory of a run.
func RunDir(baseDir, runID string) (string, error) {
	if err := ValidateRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(baseDir, runID), nil
}

// ValidatePlotFormat reports whether format is one of PlotFormats.
func ValidatePlotFormat(format string) error {
	for _, f := range PlotFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported plot format %q (want one of %s)", format, strings.Join(PlotFormats, ", "))
}

// ConvergencePlotName is the file name of a run's convergence plot.
func ConvergencePlotName(format string) string {
	return "convergence." + format
}

func readRunJSON(baseDir, runID, file string, out any) (bool, error) {
	runDir, err := RunDir(baseDir, runID)
	if err != nil {
		return false, err
	}
	return readJSON(filepath.Join(runDir, file), out)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
