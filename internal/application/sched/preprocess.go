package sched

import (
	"sort"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
)

// ResourceBounds gives the per-core partition ceilings a preprocessing run
// must respect. In the absence of a carried-over config.py, these are
// supplied by the caller's loaded Config rather than a compiled-in default.
type ResourceBounds struct {
	NumCPUs     int
	MaxCacheItr int
	MaxMemBWItr int
}

// segment is deadline-decomposition's working unit: a time window plus the
// subtasks (by arena index) that fall inside it, fully or partially.
// Grounded on rasco_preprocess's inner Segment class.
type segment struct {
	start, end float64

	fullyContained     []int
	partiallyContained []int

	isHeavy   bool
	sumWcet   float64
	threshold float64
}

func (s *segment) length() float64 { return s.end - s.start }

// DAGStats carries the schedulability-test inputs produced per DAG by
// Preprocess: utilization, the Γ (gamma) deadline ratio, and the Ω (omega)
// stretch factor.
type DAGStats struct {
	Util  float64
	Gamma float64
	Omega float64
}

// Preprocess runs the deadline-decomposition preprocessing pass over every
// DAG in ts, mutating each subtask's release_offset/deadline/c_init/bw_init/
// cur_finish in place. Grounded on rasco_preprocess.
func Preprocess(ts *sched.Taskset, algo sched.AlgoType, bounds ResourceBounds, acc *phasetable.Accessor) ([]DAGStats, error) {
	stats := make([]DAGStats, 0, len(ts.DAGs))

	for _, dagIdx := range ts.DAGs {
		order := sched.TopoSortDAG(ts, dagIdx)

		// Step 1: assign max resources and compute initial release/finish times.
		for _, idx := range order {
			st := &ts.Subtasks[idx]
			if algo != sched.AlgoRASCO {
				st.CInit = bounds.MaxCacheItr / bounds.NumCPUs
				st.BWInit = bounds.MaxMemBWItr / bounds.NumCPUs
			} else {
				st.CInit = bounds.MaxCacheItr - 2*(bounds.NumCPUs-1)
				st.BWInit = bounds.MaxMemBWItr - 2*(bounds.NumCPUs-1)
			}

			if len(st.Parents) == 0 {
				st.ReleaseOffset = 0
			} else {
				var maxParentFinish int64
				for _, p := range st.Parents {
					if f := ts.Subtasks[p].CurFinish; f > maxParentFinish {
						maxParentFinish = f
					}
				}
				st.ReleaseOffset = maxParentFinish
			}
			st.CurFinish = st.ReleaseOffset + st.Wcets[st.CInit][st.BWInit]
		}

		for _, idx := range order {
			st := &ts.Subtasks[idx]
			if len(st.Children) == 0 {
				st.Deadline = st.CurFinish
			} else {
				minChildRelease := int64(1) << 62
				for _, c := range st.Children {
					if r := ts.Subtasks[c].ReleaseOffset; r < minChildRelease {
						minChildRelease = r
					}
				}
				st.Deadline = minChildRelease
			}
			if st.Deadline-st.ReleaseOffset < st.Wcets[st.CInit][st.BWInit] {
				schederr.Raisef("sched.Preprocess", "subtask %d deadline-release slack smaller than its wcet", st.UID)
			}
		}

		// Step 2: compute segment boundaries and the tasks fully inside each.
		segTimes := computeSegmentTimes(ts, order)
		segs := make([]*segment, 0, len(segTimes)-1)
		notContained := append([]int(nil), order...)

		for i := 0; i < len(segTimes)-1; i++ {
			seg := &segment{start: segTimes[i], end: segTimes[i+1]}
			var stillNot []int
			for _, idx := range notContained {
				st := &ts.Subtasks[idx]
				if float64(st.ReleaseOffset) >= seg.start && float64(st.Deadline) <= seg.end {
					seg.fullyContained = append(seg.fullyContained, idx)
					seg.sumWcet += float64(st.Wcets[st.CInit][st.BWInit])
				} else {
					stillNot = append(stillNot, idx)
				}
			}
			notContained = stillNot
			seg.threshold = seg.sumWcet / seg.length()
			segs = append(segs, seg)
		}

		// Step 3: total threshold for the DAG.
		totalLen := segTimes[len(segTimes)-1] - segTimes[0]
		if totalLen <= 0 {
			schederr.Raisef("sched.Preprocess", "total segment length is non-positive")
		}
		contained := make(map[int]bool, len(order))
		for _, seg := range segs {
			for _, idx := range seg.fullyContained {
				contained[idx] = true
			}
		}
		var totalThreshold float64
		for _, idx := range order {
			if !contained[idx] {
				continue
			}
			totalThreshold += float64(ts.Subtasks[idx].Wcets[ts.Subtasks[idx].CInit][ts.Subtasks[idx].BWInit])
		}
		totalThreshold /= totalLen
		if totalThreshold <= 0 {
			schederr.Raisef("sched.Preprocess", "total threshold is non-positive")
		}

		// Step 4: classify segments heavy/light.
		for _, seg := range segs {
			seg.isHeavy = seg.threshold > totalThreshold
		}

		// Steps 5/6: absorb or split not-yet-contained subtasks into light segments.
		absorbNotContained(ts, segs, &notContained, totalThreshold)

		// stragglers left over go into whichever heavy segments they overlap.
		assignStragglers(ts, segs, notContained, totalThreshold)

		// Step 7: THE BIG STRETCH.
		var wcetsHeavy, lengthLight float64
		for _, seg := range segs {
			if seg.isHeavy {
				wcetsHeavy += seg.sumWcet
			} else {
				lengthLight += seg.length()
			}
		}
		totalWcets := totalThreshold * totalLen
		omega := (wcetsHeavy / totalWcets) + (lengthLight / totalLen)

		sink := ts.Subtasks[order[len(order)-1]]
		if len(sink.Children) != 0 {
			schederr.Raisef("sched.Preprocess", "sink subtask %d has children", sink.UID)
		}
		util := totalWcets / float64(sink.Period)
		if segTimes[len(segTimes)-1] != float64(sink.Deadline) {
			schederr.Raisef("sched.Preprocess", "last segment boundary does not match sink deadline")
		}
		gamma := float64(sink.Deadline) / float64(sink.Period)

		for i, seg := range segs {
			if !seg.isHeavy {
				seg.end = seg.length()/(omega*gamma) + seg.start
			} else {
				seg.end = seg.sumWcet/(omega*util) + seg.start
			}
			if i+1 < len(segs) {
				origLen := segs[i+1].length()
				segs[i+1].start = seg.end
				segs[i+1].end = segs[i+1].start + origLen
			}
		}

		// Step 8: recompute release/deadline from the stretched segments.
		for _, idx := range order {
			st := &ts.Subtasks[idx]
			earliestStart := float64(int64(1) << 62)
			var latestEnd float64
			for _, seg := range segs {
				if containsIdx(seg.fullyContained, idx) || containsIdx(seg.partiallyContained, idx) {
					if seg.start < earliestStart {
						earliestStart = seg.start
					}
					if seg.end > latestEnd {
						latestEnd = seg.end
					}
				}
			}
			st.ReleaseOffset = int64(earliestStart)
			st.Deadline = int64(latestEnd)

			phaseIdx, err := acc.FindPhase(st.Name, st.CInit, st.BWInit, 1)
			if err != nil {
				return nil, err
			}
			ttf, err := acc.CalcTTF(st.Name, st.CInit, st.BWInit, phaseIdx, st.MaxInsn)
			if err != nil {
				return nil, err
			}
			st.CurFinish = st.ReleaseOffset + ttf
		}

		// Step 9: take resources to fill the stretch (RASCO only).
		if algo == sched.AlgoRASCO {
			for _, idx := range order {
				st := &ts.Subtasks[idx]
				for {
					c, bw := selectLeastImpactfulResUnderWcetConstraint(st, st.Deadline-st.ReleaseOffset)
					if c == 0 && bw == 0 {
						break
					}
					st.CInit -= c
					st.BWInit -= bw
					if st.CInit == sched.MinPartition || st.BWInit == sched.MinPartition {
						break
					}
				}
			}

			for _, idx := range order {
				st := &ts.Subtasks[idx]
				if len(st.Parents) == 0 {
					st.ReleaseOffset = 0
				} else {
					var maxParentFinish int64
					for _, p := range st.Parents {
						if f := ts.Subtasks[p].CurFinish; f > maxParentFinish {
							maxParentFinish = f
						}
					}
					st.ReleaseOffset = maxParentFinish
				}
				phaseIdx, err := acc.FindPhase(st.Name, st.CInit, st.BWInit, 1)
				if err != nil {
					return nil, err
				}
				ttf, err := acc.CalcTTF(st.Name, st.CInit, st.BWInit, phaseIdx, st.MaxInsn)
				if err != nil {
					return nil, err
				}
				st.CurFinish = st.ReleaseOffset + ttf
				if st.Deadline > st.DAGDeadline {
					schederr.Raisef("sched.Preprocess", "subtask %d deadline exceeds dag deadline", st.UID)
				}
			}
		}

		// Step 10: for baselines, reset release times to parent finish times
		// (early release, not late release).
		if algo != sched.AlgoRASCO {
			byDeadline := append([]int(nil), order...)
			sort.Slice(byDeadline, func(i, j int) bool {
				return ts.Subtasks[byDeadline[i]].Deadline < ts.Subtasks[byDeadline[j]].Deadline
			})
			for _, idx := range byDeadline {
				st := &ts.Subtasks[idx]
				if len(st.Parents) == 0 {
					if st.ReleaseOffset != 0 {
						schederr.Raisef("sched.Preprocess", "root subtask %d has nonzero release offset", st.UID)
					}
				} else {
					var maxParentFinish int64
					for _, p := range st.Parents {
						if f := ts.Subtasks[p].CurFinish; f > maxParentFinish {
							maxParentFinish = f
						}
					}
					st.ReleaseOffset = maxParentFinish
				}
				st.CurFinish = st.ReleaseOffset + st.Wcets[st.CInit][st.BWInit]
				if st.Deadline > st.DAGDeadline || st.Deadline <= 0 {
					schederr.Raisef("sched.Preprocess", "subtask %d has an invalid deadline", st.UID)
				}
			}
		}

		stats = append(stats, DAGStats{Util: util, Gamma: gamma, Omega: omega})
	}

	return stats, nil
}

func containsIdx(xs []int, target int) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}

// computeSegmentTimes merges each subtask's deadline and release offset into
// one sorted, deduplicated sequence of decision points. Grounded on
// compute_segment_times.
func computeSegmentTimes(ts *sched.Taskset, order []int) []float64 {
	byDeadline := append([]int(nil), order...)
	sort.Slice(byDeadline, func(i, j int) bool {
		return ts.Subtasks[byDeadline[i]].Deadline < ts.Subtasks[byDeadline[j]].Deadline
	})

	var times []float64
	seen := make(map[float64]bool)
	push := func(v float64) {
		if !seen[v] {
			seen[v] = true
			times = append(times, v)
		}
	}

	di, ri := 0, 0
	for di < len(byDeadline) && ri < len(order) {
		if ts.Subtasks[byDeadline[di]].Deadline < ts.Subtasks[order[ri]].ReleaseOffset {
			push(float64(ts.Subtasks[byDeadline[di]].Deadline))
			di++
		} else {
			push(float64(ts.Subtasks[order[ri]].ReleaseOffset))
			ri++
		}
	}
	for ; di < len(byDeadline); di++ {
		push(float64(ts.Subtasks[byDeadline[di]].Deadline))
	}
	for ; ri < len(order); ri++ {
		push(float64(ts.Subtasks[order[ri]].ReleaseOffset))
	}
	return times
}

// absorbNotContained walks every light segment, folding in not-yet-contained
// subtasks that overlap it — wholesale if doing so keeps the segment light,
// otherwise splitting off just enough of the subtask's wcet via a deep copy
// to keep the segment at its threshold and requeuing the remainder. Grounded
// on rasco_preprocess's steps 5/6.
func absorbNotContained(ts *sched.Taskset, segs []*segment, notContained *[]int, totalThreshold float64) {
	for _, seg := range segs {
		if seg.isHeavy {
			continue
		}

		idx := 0
		for len(*notContained) > 0 {
			if idx >= len(*notContained) {
				break
			}
			stIdx := (*notContained)[idx]
			st := &ts.Subtasks[stIdx]

			if !(float64(st.ReleaseOffset) <= seg.start && float64(st.Deadline) >= seg.end) {
				idx++
				continue
			}

			wcet := float64(st.Wcets[st.CInit][st.BWInit])
			if (wcet+seg.sumWcet)/seg.length() <= totalThreshold {
				seg.fullyContained = append(seg.fullyContained, stIdx)
				seg.sumWcet += wcet
				seg.threshold = seg.sumWcet / seg.length()
				seg.isHeavy = seg.threshold > totalThreshold
				if seg.isHeavy {
					schederr.Raisef("sched.Preprocess", "segment unexpectedly became heavy while absorbing")
				}
				*notContained = removeAt(*notContained, idx)
				continue
			}

			wcetForSeg := seg.length()
			if v := totalThreshold*seg.length() - seg.sumWcet; v < wcetForSeg {
				wcetForSeg = v
			}
			if wcetForSeg < 0 || wcetForSeg > seg.length() {
				schederr.Raisef("sched.Preprocess", "wcet carved for segment out of bounds")
			}
			seg.sumWcet += wcetForSeg
			seg.threshold = seg.sumWcet / seg.length()
			seg.isHeavy = seg.threshold > totalThreshold
			if wcetForSeg > 0 {
				seg.partiallyContained = append(seg.partiallyContained, stIdx)
			}

			*notContained = removeAt(*notContained, idx)
			clone := st.Clone()
			clone.Wcets[clone.CInit][clone.BWInit] -= int64(wcetForSeg)
			if clone.Wcets[clone.CInit][clone.BWInit] < 0 {
				schederr.Raisef("sched.Preprocess", "split subtask's remaining wcet went negative")
			}
			clone.UID = st.UID // retains identity for task_is_in_copy_list-style comparisons by uid
			ts.Subtasks = append(ts.Subtasks, clone)
			newIdx := len(ts.Subtasks) - 1
			*notContained = append([]int{newIdx}, *notContained...)
			break // go onto the next segment
		}
	}
}

func removeAt(xs []int, i int) []int {
	out := append([]int(nil), xs[:i]...)
	return append(out, xs[i+1:]...)
}

// assignStragglers spreads whatever subtasks remain unabsorbed after the
// light-segment pass across the heavy segments they overlap, splitting wcet
// across as many heavy segments as needed. Grounded on rasco_preprocess's
// post-loop "ADD TO HEAVY SEGMENTS" straggler handling.
func assignStragglers(ts *sched.Taskset, segs []*segment, notContained []int, totalThreshold float64) {
	for len(notContained) > 0 {
		stIdx := notContained[0]
		notContained = notContained[1:]
		st := ts.Subtasks[stIdx]
		clone := st.Clone()
		clone.UID = st.UID

		done := false
		for _, seg := range segs {
			if !(float64(clone.ReleaseOffset) <= seg.start && float64(clone.Deadline) >= seg.end) {
				continue
			}
			remaining := float64(clone.Wcets[clone.CInit][clone.BWInit])
			if remaining <= seg.length() {
				seg.sumWcet += remaining
				done = true
			} else {
				seg.sumWcet += seg.length()
				clone.Wcets[clone.CInit][clone.BWInit] -= int64(seg.length())
				if clone.Wcets[clone.CInit][clone.BWInit] <= 0 {
					schederr.Raisef("sched.Preprocess", "straggler subtask's remaining wcet went non-positive")
				}
			}
			seg.threshold = seg.sumWcet / seg.length()
			seg.isHeavy = seg.threshold > totalThreshold
			seg.partiallyContained = append(seg.partiallyContained, stIdx)
			if done {
				break
			}
		}
		if !done {
			schederr.Raisef("sched.Preprocess", "straggler subtask %d was never fully assigned", st.UID)
		}
	}
}

// selectLeastImpactfulResUnderWcetConstraint returns which of (cache, membw)
// to shave one unit from without pushing the subtask's wcet at its current
// partition past compareTime, or (0, 0) if neither can be reduced further.
// Grounded on select_least_impactful_res_under_wcet_constraint.
func selectLeastImpactfulResUnderWcetConstraint(st *sched.Subtask, compareTime int64) (int, int) {
	if st.CInit == sched.MinPartition && st.BWInit == sched.MinPartition {
		return 0, 0
	}

	var cacheWcet, membwWcet int64 = -1, -1
	if st.CInit > sched.MinPartition {
		cacheWcet = st.Wcets[st.CInit-1][st.BWInit]
	}
	if st.BWInit > sched.MinPartition {
		membwWcet = st.Wcets[st.CInit][st.BWInit-1]
	}

	cacheOver := cacheWcet < 0 || cacheWcet >= compareTime
	membwOver := membwWcet < 0 || membwWcet >= compareTime

	if cacheOver && membwOver {
		return 0, 0
	}
	if cacheOver {
		return 0, 1
	}
	if membwOver {
		return 1, 0
	}

	if st.CInit == sched.MinPartition {
		return 0, 1
	}
	if st.BWInit == sched.MinPartition {
		return 1, 0
	}

	if cacheWcet <= membwWcet {
		return 1, 0
	}
	return 0, 1
}
