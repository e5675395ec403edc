package racetune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"racetune/internal/config"
	"racetune/internal/model"
	"racetune/internal/stats"
	"racetune/internal/storage"
	"racetune/internal/telemetry"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "racetune.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Counters, when set, accumulates activity across all runs of the client.
	Counters *telemetry.Counters
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	counters     *telemetry.Counters
	artifactsDir string
	exportsDir   string

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	Config config.Config
	// Track overrides the track described by Config.
	Track *model.Track
	RunID string
	// PlotFormat selects a convergence plot ("png", "svg", "pdf"); empty skips it.
	PlotFormat string
}

type RunSummary struct {
	RunID        string
	CreatedAtUTC string
	ArtifactsDir string
	PlotPath     string
	Track        model.Track
	Result       Result
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Segments         int
	Population       int
	Generations      int
	BestLapTime      float64
	FinalBestFitness float64
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		counters:     opts.Counters,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Run optimizes, persists the run in the store and writes its artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.RunID != "" {
		if err := stats.ValidateRunID(req.RunID); err != nil {
			return RunSummary{}, err
		}
	}
	if req.PlotFormat != "" {
		if err := stats.ValidatePlotFormat(req.PlotFormat); err != nil {
			return RunSummary{}, err
		}
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	var (
		t   model.Track
		err error
	)
	if req.Track != nil {
		t = model.NewTrack(req.Track.Segments...)
		err = config.ValidateTrack(t)
	} else {
		t, err = req.Config.BuildTrack()
	}
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run_id", runID)
	now := time.Now().UTC()

	opts := []Option{WithLogger(logger)}
	if c.counters != nil {
		opts = append(opts, WithCounters(c.counters))
	}
	result, err := Optimize(ctx, t, req.Config, opts...)
	if err != nil {
		return RunSummary{}, err
	}

	createdAt := now.Format(time.RFC3339Nano)
	record := storage.Stamp(model.RunRecord{
		ID:           runID,
		CreatedAtUTC: createdAt,
		Seed:         req.Config.Seed,
		Track:        t,
		Population:   req.Config.GA.PopulationSize,
		Generations:  req.Config.GA.Generations,
		Controller:   result.Controller,
		Line:         result.Line.Ints(),
		Preferred:    result.PreferredLine.Ints(),
		LapTime:      result.LapTime,
		IdealLapTime: result.IdealLapTime,
		Fitness:      result.Fitness,
	})
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics: %w", err)
	}

	counters := result.Counters
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			CreatedAtUTC: createdAt,
			Seed:         req.Config.Seed,
			Track:        t,
			Settings:     req.Config,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		Best: stats.BestRecord{
			Controller:        result.Controller,
			Line:              result.Line.String(),
			LineOrdinals:      result.Line.Ints(),
			PreferredLine:     result.PreferredLine.String(),
			PreferredOrdinals: result.PreferredLine.Ints(),
			LapTime:           result.LapTime,
			IdealLapTime:      result.IdealLapTime,
			Fitness:           result.Fitness,
		},
		Counters: &counters,
	})
	if err != nil {
		return RunSummary{}, err
	}

	var plotPath string
	if req.PlotFormat != "" {
		plotPath = filepath.Join(runDir, stats.ConvergencePlotName(req.PlotFormat))
		if err := stats.WriteConvergencePlot(plotPath, result.Diagnostics); err != nil {
			return RunSummary{}, err
		}
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		CreatedAtUTC:     createdAt,
		Seed:             req.Config.Seed,
		Segments:         t.Len(),
		PopulationSize:   req.Config.GA.PopulationSize,
		Generations:      req.Config.GA.Generations,
		Workers:          req.Config.GAConfig().Workers,
		BestLapTime:      result.LapTime,
		FinalBestFitness: result.Fitness,
	}); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run stored", "artifacts", runDir)

	return RunSummary{
		RunID:        runID,
		CreatedAtUTC: createdAt,
		ArtifactsDir: filepath.Clean(runDir),
		PlotPath:     plotPath,
		Track:        t,
		Result:       result,
	}, nil
}

// Runs lists indexed runs newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Segments:         e.Segments,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			BestLapTime:      e.BestLapTime,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

// StoredRuns lists the runs held by the store, oldest first.
func (c *Client) StoredRuns(ctx context.Context) ([]model.RunRecord, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx)
}

// Best returns the persisted outcome of a run. Runs missing from the store
// are rebuilt from their artifacts.
func (c *Client) Best(ctx context.Context, req HistoryRequest) (model.RunRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return model.RunRecord{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}
	run, err := storage.LoadRun(ctx, c.store, runID)
	if err == nil || !errors.Is(err, storage.ErrRunNotFound) {
		return run, err
	}

	best, ok, readErr := stats.ReadBest(c.artifactsDir, runID)
	if readErr != nil {
		return model.RunRecord{}, readErr
	}
	cfg, cfgOK, readErr := stats.ReadRunConfig(c.artifactsDir, runID)
	if readErr != nil {
		return model.RunRecord{}, readErr
	}
	if !ok || !cfgOK {
		return model.RunRecord{}, err
	}
	return storage.Stamp(model.RunRecord{
		ID:           runID,
		CreatedAtUTC: cfg.CreatedAtUTC,
		Seed:         cfg.Seed,
		Track:        cfg.Track,
		Population:   cfg.Settings.GA.PopulationSize,
		Generations:  cfg.Settings.GA.Generations,
		Controller:   best.Controller,
		Line:         best.LineOrdinals,
		Preferred:    best.PreferredOrdinals,
		LapTime:      best.LapTime,
		IdealLapTime: best.IdealLapTime,
		Fitness:      best.Fitness,
	}), nil
}

func (c *Client) FitnessHistory(ctx context.Context, req HistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: fitness history for %s", storage.ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req HistoryRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: diagnostics for %s", storage.ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

// Summary returns the run summary written with the artifacts, or recomputes
// it from the run's diagnostics when the file is missing.
func (c *Client) Summary(ctx context.Context, req HistoryRequest) (stats.Summary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return stats.Summary{}, err
	}
	summary, ok, err := stats.ReadSummary(c.artifactsDir, runID)
	if err != nil {
		return stats.Summary{}, err
	}
	if ok {
		return summary, nil
	}
	diagnostics, err := c.Diagnostics(ctx, HistoryRequest{RunID: runID})
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(runID, diagnostics), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		if err := stats.ValidateRunID(runID); err != nil {
			return "", err
		}
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
