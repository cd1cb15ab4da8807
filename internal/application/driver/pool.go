package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/rasco/internal/application/ports"
	appsched "github.com/jbctechsolutions/rasco/internal/application/sched"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/config"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/logging"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/tracing"
)

// Task names one (util, idx) pair within a sweep; Algo is fixed for the
// whole sweep so it is not repeated here.
type Task struct {
	Util string
	Idx  int
}

// SweepConfig carries everything the worker pool needs that's shared,
// read-only state across every task: the taskset/output roots, resource
// bounds, and the chosen algorithm. Grounded on main.py's
// run_multithreaded_tasksets, which closes over the same argparse
// Namespace for every submitted future.
type SweepConfig struct {
	TasksetPath  string
	ProfilesRoot string
	PhasesRoot   string
	OutputRoot   string
	NumCPUs      int
	MaxCacheItr  int
	MaxMemBWItr  int
	Algo         sched.AlgoType
	NumWorkers   int
	Resume       bool

	// OnResult, if set, is called from the completing task's own goroutine
	// after a successful run and before the ledger is updated. Callers that
	// want ordered output should do their own serialization; this is a fan-out
	// hook, not a collector.
	OnResult func(appsched.RunResult)
}

// RunSweep fans tasks out across a bounded goroutine pool, mirroring the
// teacher's semaphore-bounded parallel batch executor (one slot per worker,
// not per batch, since every task here is independent). The pool is
// fail-fast: the first worker error cancels ctx, and tasks already running
// are allowed to finish before RunSweep returns the first error encountered.
func RunSweep(ctx context.Context, logger *logging.Logger, tracer *tracing.Tracer, cfg SweepConfig, ledger ports.RunLedgerPort, phaseProvider *phasetable.MemProvider, tasks []Task) error {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = config.DefaultNumCPUs
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, cfg.NumWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, task := range tasks {
		select {
		case <-ctx.Done():
		default:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(task Task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			// A schederr.InvariantViolation panic marks a scheduler-internal
			// bug rather than a recoverable input-shape error; it is caught
			// here, at this task's worker boundary, and folded into the
			// same fail-fast path as an ordinary error instead of crashing
			// every other in-flight goroutine with it.
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("util=%s idx=%d: %v", task.Util, task.Idx, r)
					}
				}()
				return runTask(ctx, logger, tracer, cfg, ledger, phaseProvider, task)
			}()

			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
			}
		}(task)
	}

	wg.Wait()
	return firstErr
}

// runTask runs a single task, consulting and updating the run ledger around
// it when cfg.Resume is set. Each call gets its own phase-table clone so no
// mutable state crosses goroutines.
func runTask(ctx context.Context, logger *logging.Logger, tracer *tracing.Tracer, cfg SweepConfig, ledger ports.RunLedgerPort, phaseProvider *phasetable.MemProvider, task Task) error {
	ctx = logging.WithRunID(ctx, uuid.New().String())
	key := ports.RunKey{TasksetPath: cfg.TasksetPath, Util: parseUtil(task.Util), Idx: task.Idx, Algo: int(cfg.Algo)}

	if cfg.Resume && ledger != nil {
		done, err := ledger.IsComplete(ctx, key)
		if err != nil {
			return fmt.Errorf("check run ledger for util=%s idx=%d: %w", task.Util, task.Idx, err)
		}
		if done {
			logging.LogRunSkipped(ctx, logger, cfg.TasksetPath, task.Util, task.Idx, cfg.Algo.String())
			return nil
		}
	}

	logging.LogRunStart(ctx, logger, cfg.TasksetPath, task.Util, task.Idx, cfg.Algo.String())

	res, err := RunOne(ctx, logger, tracer, Params{
		TasksetPath:  cfg.TasksetPath,
		ProfilesRoot: cfg.ProfilesRoot,
		OutputRoot:   cfg.OutputRoot,
		NumCPUs:      cfg.NumCPUs,
		MaxCacheItr:  cfg.MaxCacheItr,
		MaxMemBWItr:  cfg.MaxMemBWItr,
		Util:         task.Util,
		Idx:          task.Idx,
		Algo:         cfg.Algo,
		Phase:        phaseProvider.Clone(),
	})
	if err != nil {
		logging.LogRunFailed(ctx, logger, cfg.TasksetPath, err, 0)
		return fmt.Errorf("util=%s idx=%d: %w", task.Util, task.Idx, err)
	}

	if err := appsched.WriteResult(cfg.OutputRoot, res); err != nil {
		return fmt.Errorf("write result for util=%s idx=%d: %w", task.Util, task.Idx, err)
	}

	if cfg.OnResult != nil {
		cfg.OnResult(res)
	}

	if cfg.Resume && ledger != nil {
		if err := ledger.MarkComplete(ctx, key); err != nil {
			return fmt.Errorf("mark run ledger for util=%s idx=%d: %w", task.Util, task.Idx, err)
		}
	}

	return nil
}
