package storage

import (
	"context"
	"errors"
	"testing"

	"racetune/internal/model"
)

func newInitializedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	run := sampleRun("run-1", "2026-01-02T03:04:05Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.Line[0] = 1

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if loaded.Line[0] != 2 {
		t.Fatalf("stored run aliases caller slice: %v", loaded.Line)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
	if _, err := LoadRun(ctx, store, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMemoryStoreListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)
	for _, run := range []model.RunRecord{
		sampleRun("c", "2026-01-03T00:00:00Z"),
		sampleRun("b", "2026-01-01T00:00:00Z"),
		sampleRun("a", "2026-01-03T00:00:00Z"),
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	got := make([]string, len(runs))
	for i, run := range runs {
		got[i] = run.ID
	}
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestMemoryStoreRejectsInvalidRuns(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	if err := store.SaveRun(ctx, sampleRun("", "2026-01-01T00:00:00Z")); err == nil {
		t.Fatal("expected error for empty run id")
	}
	unversioned := sampleRun("run-1", "2026-01-01T00:00:00Z")
	unversioned.VersionedRecord = model.VersionedRecord{}
	if err := store.SaveRun(ctx, unversioned); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	if err := NewMemoryStore().SaveRun(ctx, sampleRun("run-1", "2026-01-01T00:00:00Z")); err == nil {
		t.Fatal("expected error for uninitialized store")
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := []float64{-6, -5.5, -5.5}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	input[0] = 0

	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok || len(history) != 3 || history[0] != -6 {
		t.Fatalf("unexpected history: ok=%t %v", ok, history)
	}
}

func TestMemoryStoreDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := []model.GenerationDiagnostics{{Generation: 1, BestFitness: -5, BestLapTime: 5, Evaluations: 10}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || len(diagnostics) != 1 || diagnostics[0] != input[0] {
		t.Fatalf("unexpected diagnostics: ok=%t %+v", ok, diagnostics)
	}
	if _, ok, _ := store.GetGenerationDiagnostics(ctx, "run-2"); ok {
		t.Fatal("expected missing diagnostics")
	}
}
