// Package driver orchestrates full (taskset, utilization, index, algorithm)
// runs: ingesting a task set, preprocessing and scheduling it, and writing
// its result to disk. It is the Go analogue of main.py's run_rasco, wired
// into a bounded goroutine worker pool in place of main.py's
// ProcessPoolExecutor.
package driver

import (
	"context"
	"fmt"
	"time"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/gml"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/logging"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/profiles"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/tracing"

	appsched "github.com/jbctechsolutions/rasco/internal/application/sched"
)

// Params names one (taskset, utilization, index, algorithm) run within an
// experiment sweep, plus the resources needed to carry it out in isolation
// from every other concurrently running worker.
type Params struct {
	TasksetPath  string
	ProfilesRoot string
	OutputRoot   string

	NumCPUs     int
	MaxCacheItr int
	MaxMemBWItr int

	Util  string // directory-name form, e.g. "0.5"
	Idx   int
	Algo  sched.AlgoType
	Phase *phasetable.MemProvider // per-worker clone; never shared across goroutines
}

// RunOne parses, preprocesses, schedules, and checks schedulability for one
// task set, returning the result ready for WriteResult. Grounded on
// main.py's run_rasco.
func RunOne(ctx context.Context, logger *logging.Logger, tracer *tracing.Tracer, p Params) (appsched.RunResult, error) {
	start := time.Now()

	if tracer == nil {
		tracer = tracing.Default()
	}
	ctx, runSpan := tracer.StartRunSpan(ctx, p.TasksetPath, p.Algo.String())

	fetcher := profiles.NewReader(p.ProfilesRoot, p.MaxCacheItr, p.MaxMemBWItr)
	taskset, uSum, err := gml.ParseTaskset(p.TasksetPath, p.NumCPUs, p.Util, p.Idx, fetcher)
	if err != nil {
		runSpan.EndWithError(err)
		return appsched.RunResult{}, fmt.Errorf("parse taskset: %w", err)
	}

	numDAGTasks := len(taskset.DAGs)
	numTasks := len(taskset.Subtasks)

	bounds := appsched.ResourceBounds{NumCPUs: p.NumCPUs, MaxCacheItr: p.MaxCacheItr, MaxMemBWItr: p.MaxMemBWItr}
	acc := phasetable.NewAccessor(p.Phase, 4096)

	stats, err := appsched.Preprocess(&taskset, p.Algo, bounds, acc)
	if err != nil {
		runSpan.EndWithError(err)
		return appsched.RunResult{}, fmt.Errorf("preprocess: %w", err)
	}

	jobSet, err := appsched.ExpandJobs(&taskset)
	if err != nil {
		runSpan.EndWithError(err)
		return appsched.RunResult{}, fmt.Errorf("expand jobs: %w", err)
	}
	runSpan.SetJobCount(len(jobSet.Jobs))

	schedule, err := appsched.Run(jobSet, p.Algo, bounds, acc)
	if err != nil {
		runSpan.EndWithError(err)
		return appsched.RunResult{}, fmt.Errorf("schedule: %w", err)
	}

	var schedulable bool
	if p.Algo == sched.AlgoBaselineTest {
		schedulable = appsched.CheckSchedulableBaseline(stats, p.NumCPUs)
	} else {
		schedulable = appsched.CheckSchedulable(jobSet)
	}

	runSpan.SetResult(schedulable, len(schedule.Segments))
	runSpan.End()

	util := parseUtil(p.Util)
	logging.LogRunComplete(ctx, logger, p.TasksetPath, time.Since(start), len(schedule.Segments), schedulable)

	return appsched.RunResult{
		Algo:          p.Algo,
		Idx:           p.Idx,
		Util:          util,
		Schedulable:   schedulable,
		ActualUtil:    uSum,
		RuntimeMillis: time.Since(start).Milliseconds(),
		NumDAGTasks:   numDAGTasks,
		NumTasks:      numTasks,
		Jobs:          jobSet.Jobs,
		Schedule:      schedule,
	}, nil
}

func parseUtil(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		schederr.Raisef("driver.parseUtil", "malformed utilization directory name %q", s)
	}
	return f
}
