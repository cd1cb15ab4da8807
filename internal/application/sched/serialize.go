package sched

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// RunResult bundles everything one (taskset, util, idx, algo) run produced,
// ready to be written to an output directory. Grounded on main.py's
// save_to_file, which receives the same fields as positional arguments.
type RunResult struct {
	Algo          sched.AlgoType
	Idx           int
	Util          float64
	Schedulable   bool
	ActualUtil    float64
	RuntimeMillis int64
	NumDAGTasks   int
	NumTasks      int
	Jobs          []sched.Job
	Schedule      *sched.Schedule
}

// WriteResult writes a run's job listing and schedule to
// "<outputRoot>/<algo.OutputDir()>/out_<util>_<idx>.txt", creating the algo
// subdirectory if needed. Grounded on main.py's save_to_file / output_schedule;
// AlgoBaselineTest never had a schedule to simulate, so it writes only the
// summary line.
func WriteResult(outputRoot string, res RunResult) error {
	dir := filepath.Join(outputRoot, res.Algo.OutputDir())
	if err := os.MkdirAll(dir, 0750); err != nil {
		return schederr.WithContext(schederr.NewError(schederr.CodeIngestion, "failed to create output directory", err), "dir", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("out_%g_%d.txt", res.Util, res.Idx))
	f, err := os.Create(path)
	if err != nil {
		return schederr.WithContext(schederr.NewError(schederr.CodeIngestion, "failed to create output file", err), "path", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "TASKSET IDX: %d, UTIL: %g, SCHEDULABLE: %t, RUNTIME: %dms, NUM TASKGRAPHS: %d, NUM TASKS: %d\n",
		res.Idx, res.Util, res.Schedulable, res.RuntimeMillis, res.NumDAGTasks, res.NumTasks)

	if res.Algo != sched.AlgoBaselineTest {
		writeJobs(w, res.Jobs)
		writeSchedule(w, res.Schedule)
	}

	return w.Flush()
}

// writeJobs writes one line per job in the Job(uid=…, name=…,
// parent_uids=[…], child_uids=[…], …) form, grounded on output_schedule's
// job listing, which prints each Job via its __repr__ rather than the dead
// output_all_jobs_raw helper (never called from save_to_file).
func writeJobs(w *bufio.Writer, jobs []sched.Job) {
	for _, job := range jobs {
		parentUIDs := make([]string, len(job.Parents))
		for i, p := range job.Parents {
			parentUIDs[i] = jobs[p].UID
		}
		childUIDs := make([]string, len(job.Children))
		for i, c := range job.Children {
			childUIDs[i] = jobs[c].UID
		}
		fmt.Fprintf(w, "Job(uid=%s, name=%s, parent_uids=[%s], child_uids=[%s], release_offset=%d, deadline=%d, dag_deadline=%d, c=%d, bw=%d)\n",
			job.UID, job.Name, strings.Join(parentUIDs, ", "), strings.Join(childUIDs, ", "),
			job.ReleaseOffset, job.Deadline, job.DAGDeadline, job.C, job.BW)
	}
}

// writeSchedule writes the static segment schedule, grounded on
// output_schedule's "(t, uid, c, bw, uid, c, bw, ...)" line format. An idle
// core's zero-value Slot (UID == "") renders as the None sentinel rather
// than an empty field.
func writeSchedule(w *bufio.Writer, schedule *sched.Schedule) {
	fmt.Fprintln(w, "STARTING SCHEDULE, format: (t, job_0.uid, job_0.c, job_0.bw, job_1.uid, job_1.c, job_1.bw, ...)")

	if schedule == nil {
		return
	}

	for _, seg := range schedule.Segments {
		fields := make([]string, 0, 1+3*len(seg.Slots))
		fields = append(fields, fmt.Sprintf("%d", seg.T))
		for _, slot := range seg.Slots {
			uid := slot.UID
			if uid == "" {
				uid = "None"
			}
			fields = append(fields, uid, fmt.Sprintf("%d", slot.C), fmt.Sprintf("%d", slot.BW))
		}
		fmt.Fprintf(w, "(%s)\n", strings.Join(fields, ", "))
	}
}
