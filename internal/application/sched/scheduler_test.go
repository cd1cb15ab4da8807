package sched

import (
	"testing"

	"github.com/jbctechsolutions/rasco/internal/domain/sched"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/phasetable"
)

func TestRun_BaselineTestReturnsEmptySchedule(t *testing.T) {
	js := &sched.JobSet{Jobs: []sched.Job{{UID: "0_0", Name: "a", MaxInsn: 10, Deadline: 10, CInit: 2, BWInit: 2, C: 2, BW: 2}}}
	sc, err := Run(js, sched.AlgoBaselineTest, ResourceBounds{NumCPUs: 1, MaxCacheItr: 2, MaxMemBWItr: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sc.Segments) != 0 {
		t.Errorf("expected an empty schedule for AlgoBaselineTest, got %d segments", len(sc.Segments))
	}
}

func TestRun_SingleJobCompletesInOneSegment(t *testing.T) {
	bounds := ResourceBounds{NumCPUs: 1, MaxCacheItr: 4, MaxMemBWItr: 4}
	provider := phasetable.NewMemProvider()
	provider.Load("only", 4, 4, []sched.PhaseEntry{
		{InsnStart: 0, InsnEnd: 1000, InsnRatePerSec: 1_000_000_000},
	})
	acc := phasetable.NewAccessor(provider, 8)

	js := &sched.JobSet{
		Jobs: []sched.Job{{
			UID: "0_0", Name: "only",
			MaxInsn: 100, CurInsn: 1,
			Deadline: 1000, DAGDeadline: 1000, DeadlineInit: 1000,
			CInit: 4, BWInit: 4, C: 4, BW: 4,
			CurFinish: 99,
		}},
		AnchorPoints: []int64{0},
	}

	sc, err := Run(js, sched.AlgoRASCO, bounds, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sc.Segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	if !js.Jobs[0].Complete {
		t.Error("expected the only job to be marked complete")
	}
	if js.Jobs[0].CurInsn != js.Jobs[0].MaxInsn {
		t.Errorf("expected CurInsn to reach MaxInsn, got %d of %d", js.Jobs[0].CurInsn, js.Jobs[0].MaxInsn)
	}
}

func TestRun_ParentChildSequencesAcrossSegments(t *testing.T) {
	bounds := ResourceBounds{NumCPUs: 1, MaxCacheItr: 4, MaxMemBWItr: 4}
	provider := phasetable.NewMemProvider()
	provider.Load("parent", 4, 4, []sched.PhaseEntry{{InsnStart: 0, InsnEnd: 1000, InsnRatePerSec: 1_000_000_000}})
	provider.Load("child", 4, 4, []sched.PhaseEntry{{InsnStart: 0, InsnEnd: 1000, InsnRatePerSec: 1_000_000_000}})
	acc := phasetable.NewAccessor(provider, 8)

	js := &sched.JobSet{
		Jobs: []sched.Job{
			{
				UID: "0_0", Name: "parent", Children: []int{1},
				MaxInsn: 50, CurInsn: 1,
				Deadline: 500, DAGDeadline: 1000, DeadlineInit: 500,
				CInit: 4, BWInit: 4, C: 4, BW: 4, CurFinish: 49,
			},
			{
				UID: "1_0", Name: "child", Parents: []int{0},
				MaxInsn: 50, CurInsn: 1,
				ReleaseOffset: 500, Deadline: 1000, DAGDeadline: 1000, DeadlineInit: 1000,
				CInit: 4, BWInit: 4, C: 4, BW: 4, CurFinish: 549,
			},
		},
		AnchorPoints: []int64{0},
	}

	sc, err := Run(js, sched.AlgoRASCO, bounds, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sc.Segments) < 2 {
		t.Fatalf("expected at least 2 segments (parent then child), got %d", len(sc.Segments))
	}
	for i, j := range js.Jobs {
		if !j.Complete {
			t.Errorf("expected job %d (%s) to be complete", i, j.UID)
		}
	}
	if js.Jobs[1].ReleaseOffset < js.Jobs[0].CurFinish {
		t.Errorf("expected child's release offset (%d) to be at or after parent's finish (%d)", js.Jobs[1].ReleaseOffset, js.Jobs[0].CurFinish)
	}
}
