package debugui

import (
	"fmt"
	"strings"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/scripthost/script"
)

// CoroutineList shows every registered coroutine with a cancel button.
type CoroutineList struct {
	filterText string
}

func NewCoroutineList() *CoroutineList {
	return &CoroutineList{}
}

func (cl *CoroutineList) Render(c *script.Controller) {
	if !imgui.BeginV("Coroutines", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.InputTextWithHint("##owner", "Owner...", &cl.filterText, imgui.InputTextFlagsNone, nil)

	now := c.Clock().Now()
	infos := filterCoroutines(c.Scheduler().Coroutines(), cl.filterText)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsScrollY
	if imgui.BeginTableV("CoroutineTable", 6, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Handle")
		imgui.TableSetupColumn("Owner")
		imgui.TableSetupColumn("Sequence")
		imgui.TableSetupColumn("Throttle")
		imgui.TableSetupColumn("Ready In")
		imgui.TableSetupColumn("")
		imgui.TableHeadersRow()

		for _, info := range infos {
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", info.Handle))
			imgui.TableNextColumn()
			imgui.Text(info.Owner)
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%s (%d resumes, %d values)", info.Label, info.Resumes, info.Produced))
			imgui.TableNextColumn()
			imgui.Text(info.Throttle.String())
			imgui.TableNextColumn()
			imgui.Text(max(info.ReadyAt.Sub(now), 0).Round(time.Millisecond).String())
			imgui.TableNextColumn()
			if imgui.Button(fmt.Sprintf("Cancel##%d", info.Handle)) {
				c.Scheduler().Cancel(info.Handle)
			}
		}
		imgui.EndTable()
	}

	imgui.Text(fmt.Sprintf("Total: %d coroutines", len(infos)))
	imgui.End()
}

func filterCoroutines(infos []script.CoroutineInfo, owner string) []script.CoroutineInfo {
	if owner == "" {
		return infos
	}
	owner = strings.ToLower(owner)
	var out []script.CoroutineInfo
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Owner), owner) {
			out = append(out, info)
		}
	}
	return out
}
