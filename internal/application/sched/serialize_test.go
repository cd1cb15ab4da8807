package sched

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

func TestWriteResult_RASCOSchedule(t *testing.T) {
	dir := t.TempDir()

	res := RunResult{
		Algo:          sched.AlgoRASCO,
		Idx:           3,
		Util:          0.5,
		Schedulable:   true,
		RuntimeMillis: 42,
		NumDAGTasks:   1,
		NumTasks:      2,
		Jobs: []sched.Job{
			{UID: "0_0", Name: "a", C: 4, BW: 4, Deadline: 500, DAGDeadline: 1000, Children: []int{1}},
			{UID: "1_0", Name: "b", C: 4, BW: 4, ReleaseOffset: 500, Deadline: 1000, DAGDeadline: 1000, Parents: []int{0}},
		},
		Schedule: &sched.Schedule{
			Segments: []sched.Segment{
				{T: 0, Slots: []sched.Slot{{UID: "0_0", C: 4, BW: 4}, {UID: ""}}},
				{T: 500, Slots: []sched.Slot{{UID: "1_0", C: 4, BW: 4}}},
			},
		},
	}

	if err := WriteResult(dir, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "RASCO", "out_0.5_3.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output file at %s: %v", path, err)
	}

	content := string(data)
	if !strings.Contains(content, "TASKSET IDX: 3, UTIL: 0.5, SCHEDULABLE: true") {
		t.Errorf("missing summary line, got: %s", content)
	}
	if !strings.Contains(content, "Job(uid=0_0, name=a, parent_uids=[], child_uids=[1_0]") {
		t.Errorf("missing job listing, got: %s", content)
	}
	if !strings.Contains(content, "Job(uid=1_0, name=b, parent_uids=[0_0], child_uids=[]") {
		t.Errorf("expected child job to list its parent's uid, got: %s", content)
	}
	if !strings.Contains(content, "(0, 0_0, 4, 4, None, 0, 0)") {
		t.Errorf("expected idle core to render as the None sentinel, got: %s", content)
	}
}

func TestWriteResult_BaselineTestSkipsJobsAndSchedule(t *testing.T) {
	dir := t.TempDir()

	res := RunResult{
		Algo:        sched.AlgoBaselineTest,
		Idx:         0,
		Util:        0.3,
		Schedulable: true,
	}

	if err := WriteResult(dir, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "baseline-test", "out_0.3_0.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output file at %s: %v", path, err)
	}

	if strings.Contains(string(data), "STARTING SCHEDULE") {
		t.Error("baseline-test output should not include a schedule section")
	}
}
