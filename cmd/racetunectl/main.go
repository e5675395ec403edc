package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"racetune/internal/storage"
	"racetune/internal/telemetry"
	"racetune/pkg/racetune"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "racetune.db"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel     string
	logFormat    string
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "racetunectl",
		Short:         "Tune a driver controller and racing line for a circuit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&g.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	pf.StringVar(&g.dbPath, "db-path", defaultDBPath, "sqlite database path")
	pf.StringVar(&g.artifactsDir, "artifacts-dir", defaultArtifactsDir, "directory holding run artifacts and the run index")
	pf.StringVar(&g.exportsDir, "exports-dir", defaultExportsDir, "default export destination")

	root.AddCommand(
		newRunCmd(g),
		newRunsCmd(g),
		newFitnessCmd(g),
		newDiagnosticsCmd(g),
		newBestCmd(g),
		newSummaryCmd(g),
		newExportCmd(g),
		newTrackCmd(),
	)
	return root
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func (g *globalFlags) client(cmd *cobra.Command, counters *telemetry.Counters) (*racetune.Client, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
	if err != nil {
		return nil, err
	}
	return racetune.New(racetune.Options{
		StoreKind:    g.storeKind,
		DBPath:       g.dbPath,
		ArtifactsDir: g.artifactsDir,
		ExportsDir:   g.exportsDir,
		Logger:       logger,
		Counters:     counters,
	})
}
