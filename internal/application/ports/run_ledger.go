// Package ports defines the application layer port interfaces following hexagonal architecture.
package ports

import "context"

// -----------------------------------------------------------------------------
// Run Ledger Storage Port
// -----------------------------------------------------------------------------

// RunKey identifies one (taskset, utilization, index, algorithm) run within
// an experiment's (min_util..max_util) x (0..max_idx) sweep.
type RunKey struct {
	TasksetPath string
	Util        float64
	Idx         int
	Algo        int
}

// RunLedgerPort records which (taskset, util, idx, algo) runs a driver
// invocation has already completed, so a `--resume`'d invocation can skip
// recomputing output that survived on disk from a prior, possibly crashed,
// run. This has no equivalent in the original tool, which has no crash
// recovery for its multi-process driver.
type RunLedgerPort interface {
	// IsComplete reports whether key was already recorded as finished.
	IsComplete(ctx context.Context, key RunKey) (bool, error)

	// MarkComplete records key as finished. Calling it twice for the same
	// key is a no-op, not an error.
	MarkComplete(ctx context.Context, key RunKey) error

	// Close releases the underlying storage handle.
	Close() error
}
