package driver

import (
	"context"
	"sync"
	"testing"

	"github.com/jbctechsolutions/rasco/internal/application/ports"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/logging"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
)

// fakeLedger is an in-memory ports.RunLedgerPort for pool tests.
type fakeLedger struct {
	mu        sync.Mutex
	completed map[ports.RunKey]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{completed: make(map[ports.RunKey]bool)}
}

func (f *fakeLedger) IsComplete(ctx context.Context, key ports.RunKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[key], nil
}

func (f *fakeLedger) MarkComplete(ctx context.Context, key ports.RunKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[key] = true
	return nil
}

func (f *fakeLedger) Close() error { return nil }

func TestRunSweep_SkipsRunsAlreadyInLedger(t *testing.T) {
	ledger := newFakeLedger()
	cfg := SweepConfig{
		TasksetPath: t.TempDir(), // has no GML files at all; a real run would fail
		NumCPUs:     1,
		Algo:        sched.AlgoRASCO,
		NumWorkers:  2,
		Resume:      true,
	}
	key := ports.RunKey{TasksetPath: cfg.TasksetPath, Util: 0.5, Idx: 0, Algo: int(cfg.Algo)}
	if err := ledger.MarkComplete(context.Background(), key); err != nil {
		t.Fatalf("unexpected error priming ledger: %v", err)
	}

	err := RunSweep(context.Background(), logging.Default(), nil, cfg, ledger, phasetable.NewMemProvider(),
		[]Task{{Util: "0.5", Idx: 0}})
	if err != nil {
		t.Fatalf("expected the already-completed task to be skipped without error, got: %v", err)
	}
}

func TestRunSweep_FailFastReturnsFirstError(t *testing.T) {
	cfg := SweepConfig{
		TasksetPath: t.TempDir(), // no GML files; every task fails during ingestion
		NumCPUs:     1,
		Algo:        sched.AlgoRASCO,
		NumWorkers:  2,
	}

	tasks := []Task{
		{Util: "0.5", Idx: 0},
		{Util: "0.5", Idx: 1},
		{Util: "0.6", Idx: 0},
	}

	err := RunSweep(context.Background(), logging.Default(), nil, cfg, nil, phasetable.NewMemProvider(), tasks)
	if err == nil {
		t.Fatal("expected an error since every task set is missing")
	}
}

func TestRunSweep_EmptyTaskListSucceeds(t *testing.T) {
	cfg := SweepConfig{TasksetPath: t.TempDir(), NumCPUs: 1, Algo: sched.AlgoRASCO, NumWorkers: 2}
	err := RunSweep(context.Background(), logging.Default(), nil, cfg, nil, phasetable.NewMemProvider(), nil)
	if err != nil {
		t.Fatalf("unexpected error for an empty task list: %v", err)
	}
}
