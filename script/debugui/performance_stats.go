package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/scripthost/script"
)

// PerformanceStats shows controller and scheduler counters with a tick time
// graph.
type PerformanceStats struct {
	historyFrames int
	tickHistory   []float32
	tickIndex     int
}

func NewPerformanceStats(historyFrames int) *PerformanceStats {
	return &PerformanceStats{
		historyFrames: historyFrames,
		tickHistory:   make([]float32, historyFrames),
	}
}

func (ps *PerformanceStats) Render(c *script.Controller) {
	if !imgui.BeginV("Performance Stats", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	stats := c.Stats()
	ps.tickHistory[ps.tickIndex] = float32(stats.LastTick.Seconds() * 1000)
	ps.tickIndex = (ps.tickIndex + 1) % ps.historyFrames

	imgui.Text(fmt.Sprintf("Instances: %d", stats.InstanceCount))
	imgui.Text(fmt.Sprintf("Ticks: %d", stats.TickCount))
	imgui.Text(fmt.Sprintf("Avg Tick: %s (max %s)", stats.AvgTick, stats.MaxTick))

	imgui.Separator()
	imgui.Text("Tick Time Graph (ms)")
	imgui.PlotLinesFloatPtr("##ticktime", &ps.tickHistory[0], int32(len(ps.tickHistory)))

	if imgui.TreeNodeStr("Scheduler") {
		s := stats.Scheduler
		imgui.Text(fmt.Sprintf("Active: %d", s.Active))
		imgui.Text(fmt.Sprintf("Started: %d  Completed: %d", s.Started, s.Completed))
		imgui.Text(fmt.Sprintf("Failed: %d  Cancelled: %d", s.Failed, s.Cancelled))
		imgui.Text(fmt.Sprintf("Resumes: %d", s.Resumes))
		imgui.Text(fmt.Sprintf("Last Tick: %s (max %s)", s.LastDuration, s.MaxDuration))
		imgui.TreePop()
	}

	if imgui.TreeNodeStr("Slowest Updates") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("UpdateStatsTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Instance")
			imgui.TableSetupColumn("Updates")
			imgui.TableSetupColumn("Avg")
			imgui.TableSetupColumn("Max")
			imgui.TableHeadersRow()

			for _, inst := range slowest(stats.Instances, 10) {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(inst.Name + "@" + inst.Object.String())
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%d", inst.UpdateCount))
				imgui.TableNextColumn()
				imgui.Text(inst.AvgUpdate.String())
				imgui.TableNextColumn()
				imgui.Text(inst.MaxUpdate.String())
			}
			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}
