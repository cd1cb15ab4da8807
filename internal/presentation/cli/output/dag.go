// Package output provides CLI output formatting utilities.
package output

import (
	"fmt"
	"strings"

	"github.com/jbctechsolutions/rasco/internal/domain/sched"
)

// ScheduleRenderer renders a task set's schedulability verdict and segment
// timeline as box-drawn tables, adapted from the teacher's DAG execution
// plan renderer.
type ScheduleRenderer struct {
	formatter *Formatter
}

// NewScheduleRenderer creates a new schedule renderer with the given formatter.
func NewScheduleRenderer(formatter *Formatter) *ScheduleRenderer {
	return &ScheduleRenderer{formatter: formatter}
}

// RenderSummary renders a run's header, schedulability verdict, and segment
// timeline.
func (r *ScheduleRenderer) RenderSummary(algo sched.AlgoType, idx int, util float64, schedulable bool, runtimeMillis int64, numDAGTasks, numTasks int, schedule *sched.Schedule) {
	r.renderHeader(algo, idx, util, schedulable, runtimeMillis, numDAGTasks, numTasks)
	if schedule != nil {
		r.renderSegments(schedule)
	}
}

func (r *ScheduleRenderer) renderHeader(algo sched.AlgoType, idx int, util float64, schedulable bool, runtimeMillis int64, numDAGTasks, numTasks int) {
	_ = r.formatter.Header(fmt.Sprintf("Taskset %d (util %.2g, %s)", idx, util, algo.String()))

	verdict := "SCHEDULABLE"
	if !schedulable {
		verdict = "NOT SCHEDULABLE"
	}
	_ = r.formatter.Item("Verdict", verdict)
	_ = r.formatter.Item("Runtime", fmt.Sprintf("%dms", runtimeMillis))
	_ = r.formatter.Item("DAG tasks", fmt.Sprintf("%d", numDAGTasks))
	_ = r.formatter.Item("Tasks", fmt.Sprintf("%d", numTasks))
	_ = r.formatter.Println("")
}

// renderSegments renders each segment as a box listing its decision time and
// occupied slots, idle cores rendered as "-".
func (r *ScheduleRenderer) renderSegments(schedule *sched.Schedule) {
	if len(schedule.Segments) == 0 {
		return
	}

	_ = r.formatter.SubHeader(fmt.Sprintf("Schedule (%d segments)", len(schedule.Segments)))
	_ = r.formatter.Println("")

	for i, seg := range schedule.Segments {
		r.renderSegmentBox(seg, i == 0, i == len(schedule.Segments)-1)
	}
}

func (r *ScheduleRenderer) renderSegmentBox(seg sched.Segment, isFirst, isLast bool) {
	const boxWidth = 50

	slots := make([]string, len(seg.Slots))
	for i, slot := range seg.Slots {
		if slot.UID == "" {
			slots[i] = "-"
			continue
		}
		slots[i] = fmt.Sprintf("%s(c%d,bw%d)", slot.UID, slot.C, slot.BW)
	}

	title := fmt.Sprintf("t=%d", seg.T)
	body := strings.Join(slots, "  ")
	if len(body) > boxWidth-4 {
		body = body[:boxWidth-7] + "..."
	}

	if isFirst {
		_ = r.formatter.Println("┌%s┐", strings.Repeat("─", boxWidth-2))
	} else {
		_ = r.formatter.Println("├%s┤", strings.Repeat("─", boxWidth-2))
	}
	r.renderBoxLine(title, "", boxWidth)
	r.renderBoxLine(body, "", boxWidth)
	if isLast {
		_ = r.formatter.Println("└%s┘", strings.Repeat("─", boxWidth-2))
	}
}

func (r *ScheduleRenderer) renderBoxLine(left, right string, boxWidth int) {
	availableWidth := boxWidth - 4

	if right != "" {
		rightPadded := " " + right
		leftWidth := availableWidth - len(rightPadded)
		if len(left) > leftWidth {
			left = left[:leftWidth-3] + "..."
		}
		padding := strings.Repeat(" ", leftWidth-len(left))
		_ = r.formatter.Println("│ %s%s%s │", left, padding, rightPadded)
		return
	}

	if len(left) > availableWidth {
		left = left[:availableWidth-3] + "..."
	}
	padding := strings.Repeat(" ", availableWidth-len(left))
	_ = r.formatter.Println("│ %s%s │", left, padding)
}

// RenderJSON outputs the schedule as JSON.
func (r *ScheduleRenderer) RenderJSON(schedule *sched.Schedule) error {
	return r.formatter.JSON(schedule)
}
