// Package sched holds the data model for the offline DAG scheduler: the
// Subtask/Job arenas, phase-table records, and the segment schedule they
// produce. Types here are passed between the ingestion, application, and
// presentation layers; none of them import outside this package and its
// sibling leaf packages.
package sched

// AlgoType selects which of the three preprocessing/scheduling variants a
// run uses. The numeric values match the CLI's positional algo_type arg.
type AlgoType int

const (
	AlgoBaselineTest AlgoType = 0
	AlgoRASCO        AlgoType = 1
	AlgoBaselineSim  AlgoType = 2
)

func (a AlgoType) String() string {
	switch a {
	case AlgoBaselineTest:
		return "baseline-test"
	case AlgoRASCO:
		return "RASCO"
	case AlgoBaselineSim:
		return "baseline-sim"
	default:
		return "unknown"
	}
}

// OutputDir is the directory name an algorithm's results are written under,
// matching the original tool's save_to_file layout.
func (a AlgoType) OutputDir() string {
	switch a {
	case AlgoRASCO:
		return "RASCO"
	case AlgoBaselineSim:
		return "baseline-sim"
	default:
		return "baseline-test"
	}
}

// MinPartition is the smallest cache-way / membw-unit allocation any job may
// hold; MinPartition units of each resource are always reserved per other core.
const MinPartition = 2

// Subtask is the per-DAG template node: one workload instance in the graph,
// mutated only during preprocessing and otherwise immutable. Parents and
// Children are indices into the owning Taskset's Subtasks arena, never
// pointers, so cloning a DAG (e.g. the deep-copy-on-split in preprocessing)
// never aliases unrelated subtasks.
type Subtask struct {
	UID      int
	Name     string
	Period   int64
	MaxInsn  int64
	EvenRate float64

	// Wcets[c][bw] is the worst-case execution time in nanoseconds at
	// partition (c, bw). Indices 0 and 1 are always zero/unused.
	Wcets [][]int64

	Parents  []int
	Children []int

	ReleaseOffset int64
	Deadline      int64
	DAGDeadline   int64
	CInit         int
	BWInit        int
	CurFinish     int64
}

// Clone returns a deep copy of the subtask, including its own Wcets matrix,
// so that mutating the copy's resource cell never affects the original
// (needed by the preprocessor's split-on-absorption step). Parent/Child
// index slices are copied too since the caller may reassign them.
func (s *Subtask) Clone() Subtask {
	out := *s
	out.Wcets = make([][]int64, len(s.Wcets))
	for i, row := range s.Wcets {
		out.Wcets[i] = append([]int64(nil), row...)
	}
	out.Parents = append([]int(nil), s.Parents...)
	out.Children = append([]int(nil), s.Children...)
	return out
}

// Taskset is one experiment instance: a set of independent DAG tasks, each
// a group of Subtask indices into the shared arena. Subtask.Parents and
// Subtask.Children index into Subtasks directly (global, not per-DAG),
// matching the ingestion's globally-incrementing uid_offset.
type Taskset struct {
	Subtasks []Subtask
	DAGs     [][]int // each entry lists Subtasks indices belonging to one DAG, topologically ordered
}

// Job is one hyper-period instance of a Subtask: a flat struct embedding a
// copy of the subtask's template fields (attribute reuse, per the Subtask
// design note — Go has no classical subclassing) plus the mutable fields the
// scheduler advances segment by segment. Parents/Children are indices into
// the owning JobSet's Jobs arena.
type Job struct {
	SubtaskIdx int // index into the originating Taskset.Subtasks
	UID        string
	Name       string
	Period     int64
	MaxInsn    int64
	EvenRate   float64
	Wcets      [][]int64

	Parents  []int
	Children []int

	ReleaseNum  int
	AnchorPoint int64

	ReleaseOffset int64
	Deadline      int64
	DeadlineInit  int64
	DAGDeadline   int64
	CurFinish     int64

	C, BW         int
	CInit, BWInit int
	CurInsn       int64
	Complete      bool
}

// JobSet holds every job instantiated for one hyper-period, plus the set of
// anchor points (DAG release times) discovered while expanding them.
type JobSet struct {
	Jobs         []Job
	AnchorPoints []int64
}

// ThetaEntry is the marginal-benefit record for one (Δc, Δbw) headroom cell
// within a phase: Value is the instruction-count gain from granting that
// much extra resource, Which steers the tie-break between cache (0) and
// bandwidth (1).
type ThetaEntry struct {
	Value int64
	Which int8
}

// PhaseEntry is one piecewise-constant segment of a workload's
// instruction-rate curve at a fixed (cache, membw) partition.
type PhaseEntry struct {
	TaskID    string
	PhaseIdx  int
	Cache     int
	MemBW     int
	InsnStart int64
	InsnEnd   int64
	// InsnRatePerSec is instructions retired per second at this phase.
	InsnRatePerSec int64
	// ThetaSet[Δc][Δbw], sized (MaxCache+1) x (MaxMemBW+1).
	ThetaSet [][]ThetaEntry
}

// Segment is one emitted line of the schedule: the decision point t plus one
// slot per core. An idle core is the zero Slot (UID == "").
type Segment struct {
	T     int64
	Slots []Slot
}

// Slot names the job (if any) occupying one core for a segment.
type Slot struct {
	UID string // empty means idle
	C   int
	BW  int
}

// Schedule is the ordered sequence of segments produced for one task set,
// strictly increasing in T (P4).
type Schedule struct {
	Segments []Segment
}
