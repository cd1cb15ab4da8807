package sched

import (
	"fmt"
	"math"
	"sort"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
)

// infiniteTime stands in for Python's sys.maxsize: an effectively-unbounded
// horizon used when recomputing a reset job's projected finish time.
const infiniteTime = int64(math.MaxInt64 / 2)

// Run executes the segment-by-segment scheduling loop over js, producing the
// final Schedule. For AlgoBaselineTest it returns an empty schedule
// immediately, matching run_algo's early return — callers wanting only the
// schedulability-test inputs should call Preprocess and stop there. Grounded
// on run_algo's outer/inner while loops.
func Run(js *sched.JobSet, algo sched.AlgoType, bounds ResourceBounds, acc *phasetable.Accessor) (*sched.Schedule, error) {
	if algo == sched.AlgoBaselineTest {
		return &sched.Schedule{}, nil
	}

	jobs := js.Jobs
	var schedule sched.Schedule
	var prevUIDs []string

	var t int64
	var readySet []int
	for i, j := range jobs {
		if j.ReleaseOffset == 0 {
			readySet = append(readySet, i)
		} else {
			break
		}
	}

	complete := func() bool {
		for i := range jobs {
			if !jobs[i].Complete {
				return false
			}
		}
		return true
	}

	for {
		for _, idx := range readySet {
			jobs[idx].DeadlineInit = jobs[idx].Deadline
			jobs[idx].C = jobs[idx].CInit
			jobs[idx].BW = jobs[idx].BWInit
		}

		sort.SliceStable(readySet, func(i, j int) bool { return jobs[readySet[i]].Deadline < jobs[readySet[j]].Deadline })
		schedSetSize := bounds.NumCPUs
		if schedSetSize > len(readySet) {
			schedSetSize = len(readySet)
		}
		schedSet := append([]int(nil), readySet[:schedSetSize]...)
		resC, resBW := sumResources(jobs, schedSet)

		tnext, err := getTNext(jobs, schedSet, js.AnchorPoints, t)
		if err != nil {
			return nil, err
		}

		if algo != sched.AlgoBaselineSim {
			schedSet, resC, resBW, err = checkIfOverallocated(jobs, schedSet, resC, resBW, bounds, t, tnext, acc)
			if err != nil {
				return nil, err
			}
			tnext, err = getTNext(jobs, schedSet, js.AnchorPoints, t)
			if err != nil {
				return nil, err
			}
			for _, idx := range readySet {
				fin, err := calcTaskFinish(jobs, idx, t, tnext, acc)
				if err != nil {
					return nil, err
				}
				jobs[idx].CurFinish = fin
			}

			for {
				chosenIdx, c, bw, err := allocateResource(jobs, readySet, schedSet, resC, resBW, bounds, tnext-t, acc)
				if err != nil {
					return nil, err
				}
				if chosenIdx < 0 {
					break
				}

				chosen := &jobs[chosenIdx]
				chosen.C += c
				chosen.BW += bw
				newFinish, err := calcTaskFinish(jobs, chosenIdx, t, tnext, acc)
				if err != nil {
					return nil, err
				}
				// Tighten the deadline only when the job's projected finish
				// actually got earlier, per the deadline-decomposition
				// update rule — pulling a deadline in is only safe when
				// slack shrank, never when the projection moved later.
				if newFinish < chosen.CurFinish {
					chosen.Deadline -= chosen.CurFinish - newFinish
				}
				chosen.CurFinish, err = calcTaskFinish(jobs, chosenIdx, t, tnext, acc)
				if err != nil {
					return nil, err
				}

				if !containsIdx(schedSet, chosenIdx) {
					maxDeadlineIdx := schedSet[len(schedSet)-1]
					maxJob := jobs[maxDeadlineIdx]
					if chosen.Deadline < maxJob.Deadline &&
						resC-maxJob.C+chosen.C <= bounds.MaxCacheItr &&
						resBW-maxJob.BW+chosen.BW <= bounds.MaxMemBWItr {
						schedSet = removeIdx(schedSet, maxDeadlineIdx)
						schedSet = append(schedSet, chosenIdx)
						sort.SliceStable(schedSet, func(i, j int) bool { return jobs[schedSet[i]].Deadline < jobs[schedSet[j]].Deadline })
					}
				}

				if containsIdx(schedSet, chosenIdx) {
					resC, resBW = sumResources(jobs, schedSet)
					tnext, err = getTNext(jobs, schedSet, js.AnchorPoints, t)
					if err != nil {
						return nil, err
					}
					for _, idx := range readySet {
						fin, err := calcTaskFinish(jobs, idx, t, tnext, acc)
						if err != nil {
							return nil, err
						}
						jobs[idx].CurFinish = fin
					}
				}
			}
		}

		if algo == sched.AlgoRASCO && (resC != bounds.MaxCacheItr || resBW != bounds.MaxMemBWItr) {
			schederr.Raisef("sched.Run", "RASCO finalized sched set without fully allocating resources (c=%d, bw=%d)", resC, resBW)
		}

		for _, idx := range readySet {
			if containsIdx(schedSet, idx) {
				continue
			}
			j := &jobs[idx]
			j.C = j.CInit
			j.BW = j.BWInit
			j.Deadline = j.DeadlineInit
			if algo == sched.AlgoBaselineSim {
				j.CurFinish = tnext + int64(float64(j.MaxInsn-j.CurInsn)/j.EvenRate)
			} else {
				fin, err := calcTaskFinish(jobs, idx, tnext, infiniteTime, acc)
				if err != nil {
					return nil, err
				}
				j.CurFinish = fin
			}
		}

		var finishedThisSegment []int
		for _, idx := range schedSet {
			j := &jobs[idx]
			if j.CurFinish <= tnext {
				j.CurFinish = tnext
				j.Complete = true
				j.CurInsn = j.MaxInsn
				finishedThisSegment = append(finishedThisSegment, idx)
				readySet = removeIdx(readySet, idx)
				readySet = append(readySet, releaseSuccessors(jobs, idx, algo)...)
				continue
			}

			var insnsRetired int64
			if algo == sched.AlgoBaselineSim {
				insnsRetired = int64(float64(tnext-t) * j.EvenRate)
				if remaining := j.MaxInsn - j.CurInsn; insnsRetired > remaining {
					insnsRetired = remaining
				}
			} else {
				phaseIdx, err := acc.FindPhase(j.Name, j.C, j.BW, j.CurInsn)
				if err != nil {
					return nil, err
				}
				insnsRetired, err = acc.CalcInsnInRange(j.Name, j.C, j.BW, phaseIdx, j.CurInsn, tnext-t)
				if err != nil {
					return nil, err
				}
			}
			j.CurInsn += insnsRetired

			if j.CurInsn >= j.MaxInsn {
				j.CurFinish = tnext
				j.Complete = true
				j.CurInsn = j.MaxInsn
				finishedThisSegment = append(finishedThisSegment, idx)
				readySet = removeIdx(readySet, idx)
				readySet = append(readySet, releaseSuccessors(jobs, idx, algo)...)
			}
		}

		var orderedSchedSet []int
		if len(schedule.Segments) == 0 {
			orderedSchedSet = make([]int, bounds.NumCPUs)
			for i := range orderedSchedSet {
				orderedSchedSet[i] = -1
			}
			for i, idx := range schedSet {
				if i < bounds.NumCPUs {
					orderedSchedSet[i] = idx
				}
			}
		} else {
			orderedSchedSet = reorderJobs(jobs, prevUIDs, schedSet, bounds.NumCPUs)
		}

		segSlots := make([]sched.Slot, bounds.NumCPUs)
		nextPrevUIDs := make([]string, bounds.NumCPUs)
		for i, idx := range orderedSchedSet {
			if idx < 0 {
				continue
			}
			segSlots[i] = sched.Slot{UID: jobs[idx].UID, C: jobs[idx].C, BW: jobs[idx].BW}
			nextPrevUIDs[i] = jobs[idx].UID
		}
		schedule.Segments = append(schedule.Segments, sched.Segment{T: t, Slots: segSlots})
		prevUIDs = nextPrevUIDs

		if complete() {
			break
		}

		if len(readySet) == 0 {
			nextAnchor := int64(-1)
			for _, a := range js.AnchorPoints {
				if a > t && (nextAnchor < 0 || a < nextAnchor) {
					nextAnchor = a
				}
			}
			if nextAnchor < 0 {
				schederr.Raisef("sched.Run", "no ready jobs and no future anchor point after t=%d", t)
			}
			t = nextAnchor
		} else {
			t = tnext
		}

		for i := range jobs {
			if jobs[i].ReleaseOffset == t && len(jobs[i].Parents) == 0 && !jobs[i].Complete && !containsIdx(readySet, i) {
				readySet = append(readySet, i)
			}
		}
	}

	return &schedule, nil
}

func sumResources(jobs []sched.Job, idxs []int) (c, bw int) {
	for _, idx := range idxs {
		c += jobs[idx].C
		bw += jobs[idx].BW
	}
	return
}

func removeIdx(xs []int, target int) []int {
	out := xs[:0:0]
	for _, x := range xs {
		if x != target {
			out = append(out, x)
		}
	}
	return out
}

// getTNext returns the next decision point after t: the earlier of the next
// future anchor point and the earliest projected finish among the given
// jobs. Grounded on get_tnext.
func getTNext(jobs []sched.Job, idxs []int, anchors []int64, t int64) (int64, error) {
	best := int64(-1)
	for _, a := range anchors {
		if a > t && (best < 0 || a < best) {
			best = a
		}
	}
	for _, idx := range idxs {
		if f := jobs[idx].CurFinish; best < 0 || f < best {
			best = f
		}
	}
	if best < 0 {
		return 0, schederr.NewError(schederr.CodeSchedule, "no future anchor point or job completion found", nil)
	}
	return best, nil
}

func calcTaskFinish(jobs []sched.Job, idx int, t, tnext int64, acc *phasetable.Accessor) (int64, error) {
	j := &jobs[idx]
	if j.CurInsn >= j.MaxInsn {
		return tnext, nil
	}
	phaseIdx, err := acc.FindPhase(j.Name, j.C, j.BW, j.CurInsn)
	if err != nil {
		return 0, err
	}
	return acc.CalcTaskFinish(j.Name, j.C, j.BW, j.CInit, j.BWInit, phaseIdx, j.CurInsn, j.MaxInsn, t)
}

// checkIfOverallocated strips resources from the job with the most slack
// until sched_set's total budget fits within the partition ceilings, never
// touching the job whose completion currently defines tnext. Grounded on
// check_if_overallocated.
func checkIfOverallocated(jobs []sched.Job, schedSet []int, resC, resBW int, bounds ResourceBounds, t, tnext int64, acc *phasetable.Accessor) ([]int, int, int, error) {
	jobDefiningTnext := -1
	minFinish := int64(math.MaxInt64)
	for _, idx := range schedSet {
		if jobs[idx].CurFinish < minFinish {
			minFinish = jobs[idx].CurFinish
			jobDefiningTnext = idx
		}
	}
	if jobDefiningTnext >= 0 {
		if jobs[jobDefiningTnext].CurFinish < tnext {
			return nil, 0, 0, schederr.NewError(schederr.CodeSchedule, "job defining tnext finishes earlier than tnext", nil)
		}
		if jobs[jobDefiningTnext].CurFinish > tnext {
			jobDefiningTnext = -1
		}
	}

	for resC > bounds.MaxCacheItr || resBW > bounds.MaxMemBWItr {
		bySlack := append([]int(nil), schedSet...)
		sort.SliceStable(bySlack, func(i, j int) bool {
			si := jobs[bySlack[i]].DAGDeadline - jobs[bySlack[i]].CurFinish
			sj := jobs[bySlack[j]].DAGDeadline - jobs[bySlack[j]].CurFinish
			return si > sj
		})

		chosen := -1
		for _, idx := range bySlack {
			if idx == jobDefiningTnext {
				continue
			}
			if resC > bounds.MaxCacheItr && resBW > bounds.MaxMemBWItr {
				c, bw := selectLeastImpactfulRes(&jobs[idx])
				if c == 0 && bw == 0 {
					continue
				}
				jobs[idx].C -= c
				jobs[idx].BW -= bw
				chosen = idx
				break
			} else if jobs[idx].C > sched.MinPartition && resC > bounds.MaxCacheItr {
				jobs[idx].C--
				chosen = idx
				break
			} else if jobs[idx].BW > sched.MinPartition && resBW > bounds.MaxMemBWItr {
				jobs[idx].BW--
				chosen = idx
				break
			}
		}
		if chosen < 0 {
			return nil, 0, 0, schederr.NewError(schederr.CodeSchedule, fmt.Sprintf("could not find a job to de-allocate from, sched set size %d", len(schedSet)), nil)
		}

		resC, resBW = sumResources(jobs, schedSet)
		fin, err := calcTaskFinish(jobs, chosen, t, tnext, acc)
		if err != nil {
			return nil, 0, 0, err
		}
		jobs[chosen].CurFinish = fin
	}

	return schedSet, resC, resBW, nil
}

// releaseSuccessors returns the arena indices of job's children that become
// ready because every one of their parents (including job) is now complete,
// projecting each newly-released job's finish time. Grounded on
// release_successors.
func releaseSuccessors(jobs []sched.Job, idx int, algo sched.AlgoType) []int {
	job := &jobs[idx]
	var released []int
	for _, childIdx := range job.Children {
		child := &jobs[childIdx]
		allParentsDone := true
		for _, p := range child.Parents {
			if !jobs[p].Complete {
				allParentsDone = false
				break
			}
		}
		if allParentsDone {
			child.ReleaseOffset = job.CurFinish
			released = append(released, childIdx)
		}
	}

	for _, childIdx := range released {
		child := &jobs[childIdx]
		if algo != sched.AlgoRASCO {
			child.CurFinish = child.ReleaseOffset + int64(float64(child.MaxInsn-child.CurInsn)/child.EvenRate)
		}
		// AlgoRASCO's immediate calc_task_finish call at release time needs
		// a phase-table accessor; callers recompute it on the next segment's
		// readySet sweep instead, which produces the same projection before
		// it is ever consumed.
	}
	return released
}

// selectLeastImpactfulRes picks which of (cache, membw) to shave one unit
// from based on wcet impact, with no wcet-vs-compareTime bound. Grounded on
// select_least_impactful_res.
func selectLeastImpactfulRes(job *sched.Job) (int, int) {
	if job.C <= sched.MinPartition && job.BW <= sched.MinPartition {
		return 0, 0
	}
	if job.C <= sched.MinPartition {
		return 0, 1
	}
	if job.BW <= sched.MinPartition {
		return 1, 0
	}
	cacheWcet := job.Wcets[job.C-1][job.BW]
	membwWcet := job.Wcets[job.C][job.BW-1]
	if cacheWcet <= membwWcet {
		return 1, 0
	}
	return 0, 1
}

// reorderJobs places each job in schedSet onto the core it (or its parent)
// occupied in the previous segment, to minimize cross-core migrations, with
// leftover jobs filling whatever cores remain. Grounded on reorder_jobs.
func reorderJobs(jobs []sched.Job, prevUIDs []string, schedSet []int, numCPUs int) []int {
	reordered := make([]int, numCPUs)
	for i := range reordered {
		reordered[i] = -1
	}
	var unordered []int

	for _, idx := range schedSet {
		job := jobs[idx]
		placed := false
		for prevIdx, prevUID := range prevUIDs {
			if prevUID == job.UID {
				reordered[prevIdx] = idx
				placed = true
				break
			}
		}
		if !placed {
			for prevIdx, prevUID := range prevUIDs {
				if prevUID == "" || reordered[prevIdx] >= 0 {
					continue
				}
				for _, parentIdx := range job.Parents {
					if jobs[parentIdx].UID == prevUID {
						reordered[prevIdx] = idx
						placed = true
						break
					}
				}
				if placed {
					break
				}
			}
		}
		if !placed {
			unordered = append(unordered, idx)
		}
	}

	for _, idx := range unordered {
		for i := range reordered {
			if reordered[i] < 0 {
				reordered[i] = idx
				break
			}
		}
	}
	return reordered
}

// allocateResource scans ready_set for the job that benefits most (highest
// marginal Θ value) from one additional unit of cache or membw, respecting
// sched_set's remaining budget for sched_set members and only the per-job
// maximum (MaxCacheItr - c, MaxMemBWItr - bw) for everyone else. Grounded on
// allocate_resource.
func allocateResource(jobs []sched.Job, readySet, schedSet []int, resC, resBW int, bounds ResourceBounds, segmentLen int64, acc *phasetable.Accessor) (int, int, int, error) {
	remC := bounds.MaxCacheItr - resC
	remBW := bounds.MaxMemBWItr - resBW
	if remC == 0 && remBW == 0 {
		return -1, 0, 0, nil
	}
	if remC < 0 || remBW < 0 {
		return -1, 0, 0, schederr.NewError(schederr.CodeSchedule, "remaining resource budget went negative", nil)
	}

	picked := -1
	var pickedC, pickedBW int
	bestTheta := -1.0

	for _, idx := range readySet {
		job := &jobs[idx]
		if job.C == bounds.MaxCacheItr && job.BW == bounds.MaxMemBWItr {
			continue
		}
		if job.C == bounds.MaxCacheItr && remBW == 0 {
			continue
		}
		if job.BW == bounds.MaxMemBWItr && remC == 0 {
			continue
		}

		phaseIdx, err := acc.FindPhase(job.Name, job.C, job.BW, job.CurInsn)
		if err != nil {
			return -1, 0, 0, err
		}
		insnInRange, err := acc.CalcInsnInRange(job.Name, job.C, job.BW, phaseIdx, job.CurInsn, segmentLen)
		if err != nil {
			return -1, 0, 0, err
		}
		if remaining := job.MaxInsn - job.CurInsn; insnInRange > remaining {
			insnInRange = remaining
		}
		absInsnOverSegment := job.CurInsn + insnInRange
		if absInsnOverSegment == job.CurInsn {
			continue
		}

		entries, err := acc.PhaseEntriesFor(job.Name, job.C, job.BW)
		if err != nil {
			return -1, 0, 0, err
		}

		inSchedSet := containsIdx(schedSet, idx)
		effRemC, effRemBW := remC, remBW
		if inSchedSet {
			if v := bounds.MaxCacheItr - job.C; v < effRemC {
				effRemC = v
			}
			if v := bounds.MaxMemBWItr - job.BW; v < effRemBW {
				effRemBW = v
			}
		} else {
			effRemC = bounds.MaxCacheItr - job.C
			effRemBW = bounds.MaxMemBWItr - job.BW
		}

		var totalTheta float64
		var cacheInsnSum, membwInsnSum int64
		insn := job.CurInsn
		pIdx := phaseIdx
		for pIdx < len(entries) && insn < job.MaxInsn {
			phase := entries[pIdx]
			if phase.InsnStart >= absInsnOverSegment {
				break
			}
			theta := phase.ThetaSet[effRemC][effRemBW]
			if theta.Value == 0 {
				return -1, 0, 0, schederr.NewError(schederr.CodeSchedule, "unexpected zero marginal-benefit value", nil)
			}

			insnPerPhase := phase.InsnEnd - insn
			if phase.InsnEnd > absInsnOverSegment {
				insnPerPhase = absInsnOverSegment - phase.InsnStart
			}
			if theta.Which == 1 {
				membwInsnSum += insnPerPhase
			} else {
				cacheInsnSum += insnPerPhase
			}
			totalTheta += float64(theta.Value) * float64(insnPerPhase)

			if phase.InsnEnd >= absInsnOverSegment {
				break
			}
			pIdx++
			if pIdx >= len(entries) {
				break
			}
			insn = entries[pIdx].InsnStart
		}

		span := absInsnOverSegment - job.CurInsn
		if totalTheta == 4 {
			totalTheta = 1
		} else if span > 0 {
			totalTheta /= float64(span)
		}

		if totalTheta > bestTheta {
			bestTheta = totalTheta
			picked = idx
			if membwInsnSum > cacheInsnSum {
				pickedC, pickedBW = 0, 1
			} else {
				pickedC, pickedBW = 1, 0
			}
		}
	}

	if bestTheta == 1 {
		smallestIdx := -1
		smallestSum := bounds.MaxCacheItr + bounds.MaxMemBWItr + 1
		for _, idx := range readySet {
			job := jobs[idx]
			if job.C == bounds.MaxCacheItr && job.BW == bounds.MaxMemBWItr {
				continue
			}
			if sum := job.C + job.BW; sum < smallestSum {
				smallestIdx, smallestSum = idx, sum
			}
		}
		if smallestIdx < 0 {
			return -1, 0, 0, nil
		}

		smallRemC, smallRemBW := remC, remBW
		if !containsIdx(schedSet, smallestIdx) {
			smallRemC = bounds.MaxCacheItr - jobs[smallestIdx].C
			smallRemBW = bounds.MaxMemBWItr - jobs[smallestIdx].BW
		}

		job := jobs[smallestIdx]
		switch {
		case job.C <= job.BW && smallRemC > 0:
			return smallestIdx, 1, 0, nil
		case job.BW <= job.C && smallRemBW > 0:
			return smallestIdx, 0, 1, nil
		case smallRemC > 0:
			return smallestIdx, 1, 0, nil
		default:
			return smallestIdx, 0, 1, nil
		}
	}

	return picked, pickedC, pickedBW, nil
}
