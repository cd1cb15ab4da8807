package commands

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/rasco/internal/application/driver"
	"github.com/jbctechsolutions/rasco/internal/application/ports"
	appsched "github.com/jbctechsolutions/rasco/internal/application/sched"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/storage"
	"github.com/jbctechsolutions/rasco/internal/presentation/cli/output"
)

// runFlags holds the flags for the run command.
type runFlags struct {
	Resume bool
}

var runOpts runFlags

// NewRunCmd creates the run command, mirroring main.py's positional
// argparse interface: taskset_path max_idx min_util max_util num_threads
// algo_type.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <taskset_path> <max_idx> <min_util> <max_util> <num_threads> <algo_type>",
		Short: "Schedule a sweep of task sets and write their results to disk",
		Long: `Run preprocesses and schedules every (utilization, index) task set under
<taskset_path>, iterating utilizations from <min_util> to <max_util> inclusive
in <min_util> steps, and indices from 0 to <max_idx>-1.

algo_type selects the variant: 0 = baseline-test (closed-form bound only),
1 = RASCO, 2 = baseline-sim.

Examples:
  rasco run ./tasksets 10 0.1 0.9 4 1
  rasco run ./tasksets 10 0.1 0.9 4 1 --resume`,
		Args: cobra.ExactArgs(6),
		RunE: runSweep,
	}

	cmd.Flags().BoolVar(&runOpts.Resume, "resume", false, "skip (util, idx, algo) triples already recorded in the run ledger")

	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	tasksetPath := args[0]

	maxIdx, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("max_idx: %w", err)
	}
	minUtil, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("min_util: %w", err)
	}
	maxUtil, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("max_util: %w", err)
	}
	numThreads, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("num_threads: %w", err)
	}
	algoRaw, err := strconv.Atoi(args[5])
	if err != nil {
		return fmt.Errorf("algo_type: %w", err)
	}
	algo := sched.AlgoType(algoRaw)
	if algo != sched.AlgoBaselineTest && algo != sched.AlgoRASCO && algo != sched.AlgoBaselineSim {
		return fmt.Errorf("algo_type must be 0 (baseline-test), 1 (RASCO), or 2 (baseline-sim), got %d", algoRaw)
	}

	app := GetAppContext()
	if app == nil {
		return fmt.Errorf("application not initialized")
	}
	cfg := app.Config
	formatter := app.Formatter

	phaseProvider := phasetable.NewMemProvider()
	if cfg.Ingestion.PhasesRoot != "" {
		if err := phaseProvider.LoadDir(cfg.Ingestion.PhasesRoot); err != nil {
			formatter.Warning("could not load phase tables from %s: %v", cfg.Ingestion.PhasesRoot, err)
		}
	}

	var ledger ports.RunLedgerPort
	if cfg.RunLedger.Enabled {
		repo, err := storage.OpenRunLedger(cfg.RunLedger.DBPath)
		if err != nil {
			return fmt.Errorf("open run ledger: %w", err)
		}
		defer repo.Close()
		ledger = repo
	}

	tasks := buildTaskList(minUtil, maxUtil, maxIdx)

	sweepCfg := driver.SweepConfig{
		TasksetPath:  tasksetPath,
		ProfilesRoot: cfg.Ingestion.ProfilesRoot,
		PhasesRoot:   cfg.Ingestion.PhasesRoot,
		OutputRoot:   cfg.Ingestion.OutputRoot,
		NumCPUs:      cfg.Resources.NumCPUs,
		MaxCacheItr:  cfg.Resources.MaxCacheItr,
		MaxMemBWItr:  cfg.Resources.MaxMemBWItr,
		Algo:         algo,
		NumWorkers:   numThreads,
		Resume:       runOpts.Resume,
	}

	var bar *output.ProgressBar
	switch {
	case app.Flags.Verbose && formatter.Format() != output.FormatJSON:
		renderer := output.NewScheduleRenderer(formatter)
		var renderMu sync.Mutex
		sweepCfg.OnResult = func(res appsched.RunResult) {
			renderMu.Lock()
			defer renderMu.Unlock()
			renderer.RenderSummary(res.Algo, res.Idx, res.Util, res.Schedulable, res.RuntimeMillis, res.NumDAGTasks, res.NumTasks, res.Schedule)
		}
	case formatter.Format() != output.FormatJSON:
		bar = output.NewProgressBar(len(tasks), "scheduling", output.WithProgressBarColor(output.IsColorSupported()))
		var barMu sync.Mutex
		sweepCfg.OnResult = func(appsched.RunResult) {
			barMu.Lock()
			defer barMu.Unlock()
			bar.Increment()
		}
	}

	formatter.Header("Scheduling sweep")
	formatter.Item("Taskset path", tasksetPath)
	formatter.Item("Algorithm", algo.String())
	formatter.Item("Utilization range", fmt.Sprintf("%g .. %g step %g", minUtil, maxUtil, minUtil))
	formatter.Item("Indices", fmt.Sprintf("0..%d", maxIdx-1))
	formatter.Item("Workers", strconv.Itoa(numThreads))
	formatter.Println("")

	err = driver.RunSweep(context.Background(), app.Logger, app.Tracer, sweepCfg, ledger, phaseProvider, tasks)
	if bar != nil {
		bar.Complete()
	}
	if err != nil {
		formatter.Error("sweep failed: %v", err)
		return err
	}

	formatter.Success("Wrote %d task set result(s) to %s/%s", len(tasks), cfg.Ingestion.OutputRoot, algo.OutputDir())
	return nil
}

// buildTaskList enumerates every (util, idx) pair in the sweep, grounded on
// main.py's `[(round(util, 1), idx) for util in arange(min_util, max_util +
// min_util, min_util) for idx in range(max_idx)]`.
func buildTaskList(minUtil, maxUtil float64, maxIdx int) []driver.Task {
	var tasks []driver.Task
	const epsilon = 1e-9
	for u := minUtil; u <= maxUtil+epsilon; u += minUtil {
		rounded := math.Round(u*10) / 10
		utilStr := fmt.Sprintf("%g", rounded)
		for idx := 0; idx < maxIdx; idx++ {
			tasks = append(tasks, driver.Task{Util: utilStr, Idx: idx})
		}
	}
	return tasks
}
