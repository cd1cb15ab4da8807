package sched

import (
	"fmt"
	"sort"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// ExpandJobs instantiates every hyper-period release of every subtask into a
// flat Job arena, carrying forward the subtask's preprocessed
// release/deadline/resource fields shifted by each release's anchor point.
// Grounded on get_all_jobs.
func ExpandJobs(ts *sched.Taskset) (*sched.JobSet, error) {
	hyperPeriod := ComputeHyperPeriod(ts)

	var jobs []sched.Job
	var allParentUIDs, allChildUIDs [][]string
	anchorSeen := make(map[int64]bool)
	var anchors []int64

	for _, dagIdx := range ts.DAGs {
		order := sched.TopoSortDAG(ts, dagIdx)
		if len(order) == 0 {
			continue
		}
		period := ts.Subtasks[order[0]].Period
		if period <= 0 {
			return nil, schederr.NewError(schederr.CodeValidation, "dag period must be positive", nil)
		}
		numReleases := int(hyperPeriod / period)

		// posInBatch[subtaskIdx] = position of that subtask's job within
		// the release's batch, so parent/child subtask indices can be
		// translated to job-arena indices once the whole batch is built.
		posInBatch := make(map[int]int, len(order))
		for i, idx := range order {
			posInBatch[idx] = i
		}

		for releaseNum := 0; releaseNum < numReleases; releaseNum++ {
			anchor := period * int64(releaseNum)
			if !anchorSeen[anchor] {
				anchorSeen[anchor] = true
				anchors = append(anchors, anchor)
			}

			batch := make([]sched.Job, len(order))
			for i, idx := range order {
				st := ts.Subtasks[idx]
				batch[i] = sched.Job{
					SubtaskIdx:    idx,
					UID:           fmt.Sprintf("%d_%d", st.UID, releaseNum),
					Name:          st.Name,
					Period:        st.Period,
					MaxInsn:       st.MaxInsn,
					EvenRate:      st.EvenRate,
					Wcets:         st.Wcets,
					ReleaseNum:    releaseNum,
					AnchorPoint:   anchor,
					ReleaseOffset: st.ReleaseOffset + anchor,
					Deadline:      st.Deadline + anchor,
					DeadlineInit:  st.Deadline + anchor,
					DAGDeadline:   st.DAGDeadline + anchor,
					CurFinish:     st.CurFinish + anchor,
					C:             st.CInit,
					BW:            st.BWInit,
					CInit:         st.CInit,
					BWInit:        st.BWInit,
					CurInsn:       1,
					Complete:      false,
				}
				if batch[i].Deadline <= 0 {
					return nil, schederr.NewError(schederr.CodeValidation, "job has non-positive deadline", nil)
				}
			}
			parentUIDs := make([][]string, len(order))
			childUIDs := make([][]string, len(order))
			for i, idx := range order {
				st := ts.Subtasks[idx]
				for _, p := range st.Parents {
					if pos, ok := posInBatch[p]; ok {
						parentUIDs[i] = append(parentUIDs[i], batch[pos].UID)
					}
				}
				for _, c := range st.Children {
					if pos, ok := posInBatch[c]; ok {
						childUIDs[i] = append(childUIDs[i], batch[pos].UID)
					}
				}
			}
			jobs = append(jobs, batch...)
			allParentUIDs = append(allParentUIDs, parentUIDs...)
			allChildUIDs = append(allChildUIDs, childUIDs...)
		}
	}

	// Jobs are scheduled in release order; capture that permutation and
	// remap every UID-based parent/child list into final arena indices once
	// the order is fixed, since sorting invalidates any index computed
	// beforehand. Grounded on get_all_jobs's final "sort by release_offset".
	perm := make([]int, len(jobs))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return jobs[perm[i]].ReleaseOffset < jobs[perm[j]].ReleaseOffset })

	sortedJobs := make([]sched.Job, len(jobs))
	indexOfUID := make(map[string]int, len(jobs))
	for newIdx, oldIdx := range perm {
		sortedJobs[newIdx] = jobs[oldIdx]
		indexOfUID[jobs[oldIdx].UID] = newIdx
	}
	for newIdx, oldIdx := range perm {
		for _, uid := range allParentUIDs[oldIdx] {
			sortedJobs[newIdx].Parents = append(sortedJobs[newIdx].Parents, indexOfUID[uid])
		}
		for _, uid := range allChildUIDs[oldIdx] {
			sortedJobs[newIdx].Children = append(sortedJobs[newIdx].Children, indexOfUID[uid])
		}
	}

	sort.Sort(byAnchor(anchors))

	return &sched.JobSet{Jobs: sortedJobs, AnchorPoints: anchors}, nil
}

type byAnchor []int64

func (a byAnchor) Len() int           { return len(a) }
func (a byAnchor) Less(i, j int) bool { return a[i] < a[j] }
func (a byAnchor) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
