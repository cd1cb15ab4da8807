package sched

import (
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// ComputeHyperPeriod returns the LCM of every DAG's period in the taskset
// (every subtask in a DAG shares the DAG's period, so the first subtask of
// each DAG is enough to sample it). An empty taskset has a hyper-period of
// zero. Grounded on hyper_period.py's compute_hyper_period.
func ComputeHyperPeriod(ts *sched.Taskset) int64 {
	if len(ts.DAGs) == 0 {
		return 0
	}
	hyperPeriod := ts.Subtasks[ts.DAGs[0][0]].Period
	for _, dag := range ts.DAGs[1:] {
		hyperPeriod = lcm(hyperPeriod, ts.Subtasks[dag[0]].Period)
	}
	return hyperPeriod
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) int64 {
	g := gcd(a, b)
	if g == 0 {
		return 0
	}
	product := a * b
	if product < 0 {
		product = -product
	}
	return product / g
}
