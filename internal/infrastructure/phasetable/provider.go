// Package phasetable implements the phase-table accessor (C1): lookup of a
// workload's current instruction-rate phase at a given (cache, membw)
// partition, and the time/instruction conversions built on top of it. The
// original tool gets these tables from a native library bound via ctypes;
// here they're modeled as an opaque Provider interface with an in-memory
// reference implementation that loads JSON phase dumps from disk.
package phasetable

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// Provider is the phase-table contract the scheduling engine depends on. It
// never exposes mutation: phase tables are immutable once loaded, matching
// the design note that the global per-workload phase arrays are read-only
// tables threaded through as an explicit context, never ambient state.
type Provider interface {
	// PhaseEntries returns the phase vector for (taskID, c, bw), sorted
	// ascending by InsnStart. Returns an error wrapping
	// schederr.ErrMissingPhase if no entries are loaded for that key.
	PhaseEntries(taskID string, c, bw int) ([]sched.PhaseEntry, error)
}

// phaseDump is the on-disk JSON shape for one (workload, c, bw) phase
// vector: profiles/{workload}/phases/{c}_{bw}.json.
type phaseDump struct {
	Phases []phaseDumpEntry `json:"phases"`
}

type phaseDumpEntry struct {
	InsnStart      int64       `json:"insn_start"`
	InsnEnd        int64       `json:"insn_end"`
	InsnRatePerSec int64       `json:"insn_rate_per_sec"`
	ThetaSet       [][]thetaT  `json:"theta_set"`
}

type thetaT struct {
	Value int64 `json:"value"`
	Which int8  `json:"which"`
}

// MemProvider is the reference in-memory Provider implementation. It is
// safe for concurrent reads once loading has completed; Load/LoadDir must
// not run concurrently with PhaseEntries.
type MemProvider struct {
	mu     sync.RWMutex
	tables map[tableKey][]sched.PhaseEntry
}

type tableKey struct {
	taskID string
	c, bw  int
}

// NewMemProvider returns an empty MemProvider ready for Load/LoadDir calls.
func NewMemProvider() *MemProvider {
	return &MemProvider{tables: make(map[tableKey][]sched.PhaseEntry)}
}

// Clone returns a new MemProvider sharing this one's loaded tables (they are
// read-only once populated, so sharing is safe and avoids re-parsing JSON
// per worker) but with its own mutex and map header — each driver worker
// goroutine gets its own Clone so no two goroutines ever contend on the same
// lock, matching the per-worker phase-table copy called for in the
// concurrency design.
func (p *MemProvider) Clone() *MemProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	clone := &MemProvider{tables: make(map[tableKey][]sched.PhaseEntry, len(p.tables))}
	for k, v := range p.tables {
		clone.tables[k] = v
	}
	return clone
}

// Load registers a phase vector for (taskID, c, bw) directly, sorting it by
// InsnStart and stamping each entry's PhaseIdx/Cache/MemBW/TaskID fields.
// Used by tests to synthesize tables without touching disk.
func (p *MemProvider) Load(taskID string, c, bw int, entries []sched.PhaseEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].InsnStart < entries[j].InsnStart })
	for i := range entries {
		entries[i].TaskID = taskID
		entries[i].Cache = c
		entries[i].MemBW = bw
		entries[i].PhaseIdx = i
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[tableKey{taskID, c, bw}] = entries
}

// LoadDir walks root/{workload}/phases/{c}_{bw}.json for every workload
// subdirectory found, loading each file's phase vector. Missing phase files
// for a particular (workload, c, bw) are not an error at load time — the
// gap only becomes ErrMissingPhase if the scheduler later tries to use it.
func (p *MemProvider) LoadDir(root string) error {
	workloads, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("phasetable: read root %s: %w", root, err)
	}
	for _, w := range workloads {
		if !w.IsDir() {
			continue
		}
		phasesDir := filepath.Join(root, w.Name(), "phases")
		files, err := os.ReadDir(phasesDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
				continue
			}
			var c, bw int
			base := f.Name()[:len(f.Name())-len(filepath.Ext(f.Name()))]
			if _, err := fmt.Sscanf(base, "%d_%d", &c, &bw); err != nil {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(phasesDir, f.Name()))
			if err != nil {
				return fmt.Errorf("phasetable: read %s: %w", f.Name(), err)
			}
			var dump phaseDump
			if err := json.Unmarshal(raw, &dump); err != nil {
				return fmt.Errorf("phasetable: parse %s: %w", f.Name(), err)
			}
			entries := make([]sched.PhaseEntry, len(dump.Phases))
			for i, e := range dump.Phases {
				theta := make([][]sched.ThetaEntry, len(e.ThetaSet))
				for r, row := range e.ThetaSet {
					theta[r] = make([]sched.ThetaEntry, len(row))
					for c2, v := range row {
						theta[r][c2] = sched.ThetaEntry{Value: v.Value, Which: v.Which}
					}
				}
				entries[i] = sched.PhaseEntry{
					InsnStart:      e.InsnStart,
					InsnEnd:        e.InsnEnd,
					InsnRatePerSec: e.InsnRatePerSec,
					ThetaSet:       theta,
				}
			}
			p.Load(w.Name(), c, bw, entries)
		}
	}
	return nil
}

// PhaseEntries implements Provider.
func (p *MemProvider) PhaseEntries(taskID string, c, bw int) ([]sched.PhaseEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries, ok := p.tables[tableKey{taskID, c, bw}]
	if !ok {
		return nil, schederr.WithContext(
			schederr.WithContext(
				schederr.NewError(schederr.CodeIngestion, "no phase entries loaded", schederr.ErrMissingPhase),
				"task_id", taskID),
			"partition", fmt.Sprintf("%d/%d", c, bw))
	}
	return entries, nil
}
