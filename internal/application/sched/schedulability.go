package sched

import (
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// CheckSchedulable checks, for the RASCO and baseline-sim variants, whether
// every DAG sink job in jobSet finished by its original graph deadline.
// Grounded on main.py's schedulability_test: a job with no children is a sink
// node, and a sink finishing after its dag_deadline is a deadline miss.
func CheckSchedulable(jobSet *sched.JobSet) bool {
	for i := range jobSet.Jobs {
		job := &jobSet.Jobs[i]
		if len(job.Children) == 0 {
			if job.DAGDeadline < job.CurFinish {
				return false
			}
		}
	}
	return true
}

// CheckSchedulableBaseline applies the closed-form bound from Jiang, Guan,
// Long & Wan, "Decomposition-based real-time scheduling of parallel tasks on
// multicores platforms" (IEEE TCAD, 2020), used by AlgoBaselineTest in place
// of actually simulating a schedule. Grounded on main.py's
// schedulability_baseline_test.
//
// stats must hold one DAGStats entry per DAG task in the set; numCPUs is the
// platform's core count.
func CheckSchedulableBaseline(stats []DAGStats, numCPUs int) bool {
	if len(stats) == 0 {
		return true
	}

	var sumUtil, maxGamma, maxOmega float64
	for i, s := range stats {
		sumUtil += s.Util
		if i == 0 || s.Gamma > maxGamma {
			maxGamma = s.Gamma
		}
		if i == 0 || s.Omega > maxOmega {
			maxOmega = s.Omega
		}
	}

	headroom := (1 / maxOmega) - maxGamma
	if headroom <= 0 {
		return false
	}

	return float64(numCPUs) >= (sumUtil-maxGamma)/headroom
}
