// Package gml parses the .gml task-graph files that describe one DAG task's
// structure: its nodes (subtask workload names), edges (precedence), and a
// header line giving the DAG's utilization, period, and deadline.
package gml

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

var (
	headerPattern = regexp.MustCompile(`Index (\d+)\s*U ([\d.]+)\s*T "([\d.]+)"\s*W ([\d.]+)`)
	nodePattern   = regexp.MustCompile(`node \[\s*id (\d+)\s*label "\d+"(?:\s*rank \d+)?\s*C [\d.]+\s*type "(\w+)"\s*\]`)
	edgePattern   = regexp.MustCompile(`edge \[\s*source (\d+)\s*target (\d+)\s*label "\d+"\s*\]`)
)

// WcetFetcher resolves a workload's WCET table and max instruction count,
// implemented by profiles.Reader.
type WcetFetcher interface {
	Fetch(workloadName string) (wcets [][]int64, maxInsn int64, err error)
}

// ParsedDAG is one .gml file's header plus the subtasks it describes, before
// those subtasks are appended into a shared Taskset arena.
type ParsedDAG struct {
	Utilization float64
	Period      int64
	DAGDeadline int64
	Subtasks    []sched.Subtask // local node id (file-relative, pre-offset) order
}

// ParseFile reads one .gml file, resolving WCET profiles for each node via
// fetcher and numbering subtasks starting at uidOffset so that a second
// DAG's node ids never collide with a first DAG's, matching the original's
// global uid_offset bookkeeping in process_gml_file.
func ParseFile(path string, uidOffset int, fetcher WcetFetcher) (ParsedDAG, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ParsedDAG{}, schederr.WithContext(
			schederr.NewError(schederr.CodeIngestion, "read gml file", schederr.ErrMissingTaskGraph),
			"path", path)
	}
	content := string(raw)

	var dag ParsedDAG
	if m := headerPattern.FindStringSubmatch(content); m != nil {
		period, _ := strconv.ParseFloat(m[3], 64)
		deadline, _ := strconv.ParseFloat(m[4], 64)
		util, _ := strconv.ParseFloat(m[2], 64)
		dag.Period = int64(period)
		dag.DAGDeadline = int64(deadline)
		dag.Utilization = util
	} else {
		return ParsedDAG{}, fmt.Errorf("gml: %s: missing header line", path)
	}

	type nodeInfo struct {
		localID int
		name    string
	}
	var order []int
	nodesByID := make(map[int]nodeInfo)
	for _, m := range nodePattern.FindAllStringSubmatch(content, -1) {
		localID, _ := strconv.Atoi(m[1])
		id := localID + uidOffset
		nodesByID[id] = nodeInfo{localID: localID, name: m[2]}
		order = append(order, id)
	}
	if len(order) == 0 {
		return ParsedDAG{}, fmt.Errorf("gml: %s: no nodes found", path)
	}
	sort.Ints(order)

	parents := make(map[int][]int)
	children := make(map[int][]int)
	for _, m := range edgePattern.FindAllStringSubmatch(content, -1) {
		src, _ := strconv.Atoi(m[1])
		dst, _ := strconv.Atoi(m[2])
		src += uidOffset
		dst += uidOffset
		parents[dst] = append(parents[dst], src)
		children[src] = append(children[src], dst)
	}

	// indexOf maps a global node id to its position within this DAG's
	// Subtasks slice, since Parents/Children on Subtask are arena indices,
	// not ids — the caller rewrites these to absolute arena offsets once it
	// knows where this DAG's subtasks land in the shared Taskset.Subtasks.
	indexOf := make(map[int]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}

	dag.Subtasks = make([]sched.Subtask, len(order))
	for i, id := range order {
		info := nodesByID[id]
		wcets, maxInsn, err := fetcher.Fetch(info.name)
		if err != nil {
			return ParsedDAG{}, err
		}

		parentIdx := make([]int, 0, len(parents[id]))
		for _, p := range parents[id] {
			parentIdx = append(parentIdx, indexOf[p])
		}
		childIdx := make([]int, 0, len(children[id]))
		for _, c := range children[id] {
			childIdx = append(childIdx, indexOf[c])
		}
		sort.Ints(parentIdx)
		sort.Ints(childIdx)

		dag.Subtasks[i] = sched.Subtask{
			UID:      id,
			Name:     info.name,
			Period:   dag.Period,
			MaxInsn:  maxInsn,
			Wcets:    wcets,
			Parents:  parentIdx,
			Children: childIdx,
		}
	}

	return dag, nil
}

// NextUIDOffset returns the uid offset a subsequent ParseFile call should use
// so its node ids never collide with this DAG's, matching
// "uid_offset += len(uids)" in process_gml_file.
func (d ParsedDAG) NextUIDOffset(currentOffset int) int {
	return currentOffset + len(d.Subtasks)
}
