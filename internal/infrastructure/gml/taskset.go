package gml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// ParseTaskset reads every Tau_*.gml file under
// {root}/data-multi-m{numCPUs}-u{util}/{idx}/, appending each file's DAG
// into a single Taskset arena, and returns the summed per-DAG utilization.
// Grounded on parse_taskset's directory layout and uid_offset handling.
func ParseTaskset(root string, numCPUs int, util string, idx int, fetcher WcetFetcher) (sched.Taskset, float64, error) {
	dir := filepath.Join(root, fmt.Sprintf("data-multi-m%d-u%s", numCPUs, util), fmt.Sprintf("%d", idx))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sched.Taskset{}, 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "read taskset directory", schederr.ErrMissingTaskGraph),
			"path", dir)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "Tau_") || !strings.HasSuffix(name, ".gml") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return sched.Taskset{}, 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "no Tau_*.gml files found", schederr.ErrEmptyTaskset),
			"path", dir)
	}

	var ts sched.Taskset
	var usum float64
	uidOffset := 0
	for _, name := range files {
		parsed, err := ParseFile(filepath.Join(dir, name), uidOffset, fetcher)
		if err != nil {
			return sched.Taskset{}, 0, err
		}

		base := len(ts.Subtasks)
		dagIdx := make([]int, len(parsed.Subtasks))
		for i, st := range parsed.Subtasks {
			st.Parents = rebase(st.Parents, base)
			st.Children = rebase(st.Children, base)
			st.Deadline = parsed.DAGDeadline
			st.DAGDeadline = parsed.DAGDeadline
			ts.Subtasks = append(ts.Subtasks, st)
			dagIdx[i] = base + i
		}
		ts.DAGs = append(ts.DAGs, dagIdx)
		usum += parsed.Utilization
		uidOffset = parsed.NextUIDOffset(uidOffset)
	}

	return ts, usum, nil
}

func rebase(idx []int, base int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + base
	}
	return out
}
