package phasetable

import (
	"sort"

	"github.com/jbctechsolutions/rasco/internal/adapters/cache"
	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// Accessor memoizes phase-table lookups on top of a Provider. Every call
// that needs the (taskID, c, bw) vector fetches it through a single shared
// LRU so preprocessing's repeated calc_task_finish probes across candidate
// partitions don't re-fetch the same table thousands of times; the search
// within the vector still runs on every call.
type Accessor struct {
	provider Provider
	cache    *cache.LRU[phaseKey, []sched.PhaseEntry]
}

// NewAccessor wraps provider with a memoizing cache of the given capacity
// (number of distinct (taskID, c, bw) vectors to retain).
func NewAccessor(provider Provider, capacity int) *Accessor {
	return &Accessor{provider: provider, cache: cache.NewLRU[phaseKey, []sched.PhaseEntry](capacity)}
}

func (a *Accessor) entries(taskID string, c, bw int) ([]sched.PhaseEntry, error) {
	key := phaseKey{taskID, c, bw}
	if v, ok := a.cache.Get(key); ok {
		return v, nil
	}
	entries, err := a.provider.PhaseEntries(taskID, c, bw)
	if err != nil {
		return nil, err
	}
	a.cache.Put(key, entries)
	return entries, nil
}

type phaseKey struct {
	taskID string
	c, bw  int
}

// PhaseEntriesFor exposes the memoized phase vector directly, for callers
// (allocate_resource's Θ-table walk) that need to inspect more than one
// phase's ThetaSet rather than going through FindPhase/CalcTTF/CalcInsnInRange.
func (a *Accessor) PhaseEntriesFor(taskID string, c, bw int) ([]sched.PhaseEntry, error) {
	return a.entries(taskID, c, bw)
}

// FindPhase returns the index of the phase entry covering insnPos (the last
// entry whose InsnStart <= insnPos), via binary search over the sorted
// vector. Grounded on find_phase's bisect-based lookup.
func (a *Accessor) FindPhase(taskID string, c, bw int, insnPos int64) (int, error) {
	entries, err := a.entries(taskID, c, bw)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "empty phase vector", schederr.ErrMissingPhase),
			"task_id", taskID)
	}
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].InsnStart > insnPos }) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(entries) {
		idx = len(entries) - 1
	}
	return idx, nil
}

// CalcTTF computes the wall-clock time in nanoseconds to retire insnToGo
// instructions of taskID starting at phase index startPhase, running at
// partition (c, bw) for the whole span. It walks phases forward, converting
// each phase's remaining instruction span to time via its rate, until
// insnToGo is exhausted or the phase vector runs out (the workload's tail
// phase is treated as holding its rate indefinitely, matching the original's
// use of the last table row past MaxInsn).
//
// Grounded on calc_ttf: ttf += int(insn_to_complete / (rate/1e9) + 1) per
// phase, where rate/1e9 is instructions-per-nanosecond and the +1 covers
// integer-division rounding down.
func (a *Accessor) CalcTTF(taskID string, c, bw int, startPhase int, insnToGo int64) (int64, error) {
	entries, err := a.entries(taskID, c, bw)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "empty phase vector", schederr.ErrMissingPhase),
			"task_id", taskID)
	}
	if insnToGo < 0 {
		return 0, schederr.NewError(schederr.CodeSchedule, "negative instruction count", schederr.ErrNegativeInstructionCount)
	}

	var ttf int64
	remaining := insnToGo
	phase := startPhase
	for remaining > 0 {
		if phase >= len(entries) {
			schederr.Raisef("phasetable.CalcTTF", "ran off phase table for task %s at insn %d", taskID, insnToGo-remaining)
		}
		e := entries[phase]
		span := e.InsnEnd - e.InsnStart
		if phase == len(entries)-1 {
			span = remaining // tail phase has no upper bound; it absorbs whatever is left
		}
		take := span
		if take > remaining {
			take = remaining
		}
		if e.InsnRatePerSec <= 0 {
			schederr.Raisef("phasetable.CalcTTF", "non-positive rate in phase %d of task %s", phase, taskID)
		}
		insnPerNs := float64(e.InsnRatePerSec) / 1e9
		ttf += int64(float64(take)/insnPerNs) + 1
		remaining -= take
		phase++
	}
	return ttf, nil
}

// CalcInsnInRange computes how many instructions of taskID complete within
// elapsed nanoseconds elapsedTime, starting at phase index startPhase and
// instruction offset startInsn, running continuously at partition (c, bw).
//
// Grounded on calc_insn_in_range: full phases are consumed at their rate
// until elapsedTime is exhausted or the table runs out; the last, partial
// phase uses insn_tot += (rate/1e9) * rem_time, clamped to the phase's own
// instruction span so a generous elapsedTime never overshoots phase's end.
// A negative total is returned as an error wrapping
// ErrNegativeInstructionCount.
func (a *Accessor) CalcInsnInRange(taskID string, c, bw int, startPhase int, startInsn int64, elapsedTime int64) (int64, error) {
	entries, err := a.entries(taskID, c, bw)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "empty phase vector", schederr.ErrMissingPhase),
			"task_id", taskID)
	}

	var insnTotal int64
	remTime := elapsedTime
	phase := startPhase
	pos := startInsn
	for remTime > 0 && phase < len(entries) {
		e := entries[phase]
		phaseRemaining := e.InsnEnd - pos
		if phase == len(entries)-1 {
			phaseRemaining = e.InsnEnd - pos
			if phaseRemaining < 0 {
				phaseRemaining = 0
			}
		}
		if e.InsnRatePerSec <= 0 {
			schederr.Raisef("phasetable.CalcInsnInRange", "non-positive rate in phase %d of task %s", phase, taskID)
		}
		insnPerNs := float64(e.InsnRatePerSec) / 1e9
		timeToFinishPhase := int64(float64(phaseRemaining) / insnPerNs)

		if timeToFinishPhase <= remTime && phase != len(entries)-1 {
			insnTotal += phaseRemaining
			remTime -= timeToFinishPhase
			pos = e.InsnEnd
			phase++
			continue
		}

		// Final, partial phase: convert the remaining wall-clock time
		// directly to instructions and clamp to what's left in the phase.
		partial := int64(insnPerNs * float64(remTime))
		if partial > phaseRemaining {
			partial = phaseRemaining
		}
		insnTotal += partial
		remTime = 0
	}
	if insnTotal < 0 {
		return 0, schederr.NewError(schederr.CodeSchedule, "negative instruction count", schederr.ErrNegativeInstructionCount)
	}
	return insnTotal, nil
}

// CalcTaskFinish predicts the wall-clock finish time of a job given its
// current progress (curInsn of maxInsn at phase startPhase), assuming it
// runs the rest of its current phase at partition (c, bw) and everything
// after that phase's boundary at (cInit, bwInit) — the lookahead partition a
// job reverts to once its resource grant expires at the end of the present
// segment.
//
// Grounded on calc_task_finish's two-part walk: calc_ttf from the current
// phase forward at (c, bw) until the phase boundary immediately following
// the current phase, then calc_ttf for the remainder at (cInit, bwInit).
// When startPhase is already the last phase, there is no lookahead phase and
// the whole remainder is computed at (c, bw).
func (a *Accessor) CalcTaskFinish(taskID string, c, bw, cInit, bwInit int, startPhase int, curInsn, maxInsn int64, now int64) (int64, error) {
	entries, err := a.entries(taskID, c, bw)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "empty phase vector", schederr.ErrMissingPhase),
			"task_id", taskID)
	}
	remaining := maxInsn - curInsn
	if remaining <= 0 {
		return now, nil
	}

	if startPhase >= len(entries)-1 {
		ttf, err := a.CalcTTF(taskID, c, bw, startPhase, remaining)
		if err != nil {
			return 0, err
		}
		return now + ttf, nil
	}

	cur := entries[startPhase]
	toBoundary := cur.InsnEnd - curInsn
	if toBoundary > remaining {
		toBoundary = remaining
	}
	ttfToBoundary, err := a.CalcTTF(taskID, c, bw, startPhase, toBoundary)
	if err != nil {
		return 0, err
	}

	remainderAfterBoundary := remaining - toBoundary
	if remainderAfterBoundary <= 0 {
		return now + ttfToBoundary, nil
	}

	ttfAfterBoundary, err := a.CalcTTF(taskID, cInit, bwInit, startPhase+1, remainderAfterBoundary)
	if err != nil {
		return 0, err
	}
	return now + ttfToBoundary + ttfAfterBoundary, nil
}
