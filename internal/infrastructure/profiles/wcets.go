// Package profiles reads per-workload worst-case-execution-time profiles
// from a directory tree of {cache_allocation}_{bandwidth_allocation}/wcet.txt
// files, one per resource partition a workload was benchmarked at.
package profiles

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
)

// Reader fetches WCET tables for workloads rooted at a profiles directory,
// e.g. {Root}/{workload}/{cache_allocation}_{bw_allocation}/wcet.txt.
type Reader struct {
	Root        string
	MaxCacheItr int // inclusive upper bound on the cache-way iteration index
	MaxMemBWItr int // inclusive upper bound on the membw iteration index
}

// NewReader returns a Reader rooted at root, iterating cache/membw indices
// from 2 through maxCacheItr/maxMemBWItr inclusive (index 0 and 1 are never
// populated, matching the reserved low partitions every other core holds).
func NewReader(root string, maxCacheItr, maxMemBWItr int) *Reader {
	return &Reader{Root: root, MaxCacheItr: maxCacheItr, MaxMemBWItr: maxMemBWItr}
}

// Fetch reads the WCET table and max instruction count for workloadName,
// grounded on fetch_wcets: cache_allocation = (1<<cacheItr)-1,
// bandwidth_allocation = bwItr*72, wcet.txt's first line is wall-clock
// seconds (converted to ns), second line is an instruction count, and
// max_insn tracks the largest second-line value seen across every
// partition sampled for this workload.
// The returned table is indexed wcets[c][bw], matching sched.Subtask.Wcets.
func (r *Reader) Fetch(workloadName string) (wcets [][]int64, maxInsn int64, err error) {
	wcets = make([][]int64, r.MaxCacheItr+1)
	for i := range wcets {
		wcets[i] = make([]int64, r.MaxMemBWItr+1)
	}

	found := false
	for cacheItr := 2; cacheItr <= r.MaxCacheItr; cacheItr++ {
		cacheAllocation := (int64(1) << uint(cacheItr)) - 1
		for bwItr := 2; bwItr <= r.MaxMemBWItr; bwItr++ {
			bwAllocation := bwItr * 72
			dir := filepath.Join(r.Root, workloadName, fmt.Sprintf("%d_%d", cacheAllocation, bwAllocation))
			wcetPath := filepath.Join(dir, "wcet.txt")

			raw, readErr := os.Open(wcetPath)
			if readErr != nil {
				continue // matches the original's best-effort "Warning: missing wcet.txt" skip
			}
			wcetNs, insnCount, parseErr := parseWcetFile(raw)
			raw.Close()
			if parseErr != nil {
				return nil, 0, fmt.Errorf("profiles: parse %s: %w", wcetPath, parseErr)
			}
			wcets[cacheItr][bwItr] = wcetNs
			if insnCount > maxInsn {
				maxInsn = insnCount
			}
			found = true
		}
	}
	if !found {
		return nil, 0, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "no wcet profiles found", schederr.ErrMissingWCET),
			"workload", workloadName)
	}
	return wcets, maxInsn, nil
}

func parseWcetFile(f *os.File) (wcetNs int64, insnCount int64, err error) {
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("empty wcet.txt")
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse wcet seconds: %w", err)
	}
	wcetNs = int64(seconds * 1e9)

	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("wcet.txt missing instruction-count line")
	}
	insn, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse instruction count: %w", err)
	}
	return wcetNs, int64(insn), nil
}
