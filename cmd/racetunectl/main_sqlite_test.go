//go:build sqlite

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandSQLiteStoresRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "racetune.db")
	artifactsDir := filepath.Join(dir, "runs")

	args := smallRunArgs(artifactsDir, "--run-id", "sqlite-run", "--workers", "2")
	args[2] = "sqlite"
	args = append(args, "--db-path", dbPath)
	if _, err := execute(t, args...); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	// Remove artifacts so the history comes from the database.
	if err := os.RemoveAll(filepath.Join(artifactsDir, "sqlite-run")); err != nil {
		t.Fatalf("remove artifacts: %v", err)
	}
	out, err := execute(t, "fitness", "--store", "sqlite", "--db-path", dbPath, "--artifacts-dir", artifactsDir, "--run-id", "sqlite-run")
	if err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if got := strings.Count(out, "generation="); got != 2 {
		t.Fatalf("expected 2 generations from sqlite, got %d: %s", got, out)
	}

	out, err = execute(t, "best", "--store", "sqlite", "--db-path", dbPath, "--artifacts-dir", artifactsDir, "--run-id", "sqlite-run")
	if err != nil {
		t.Fatalf("best command: %v", err)
	}
	if !strings.Contains(out, "run_id=sqlite-run") {
		t.Fatalf("unexpected best output: %s", out)
	}
}
