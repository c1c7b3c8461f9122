package debugui

import (
	"fmt"
	"unicode/utf8"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/scripthost/script"
)

// SlotInspector shows the selected instance with editable slots and
// lifecycle buttons.
type SlotInspector struct {
	browser *InstanceBrowser
}

func NewSlotInspector(browser *InstanceBrowser) *SlotInspector {
	return &SlotInspector{browser: browser}
}

func (si *SlotInspector) Render(c *script.Controller) {
	if !imgui.BeginV("Slot Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	inst, ok := si.browser.Selected(c)
	if !ok {
		imgui.Text("No instance selected")
		imgui.End()
		return
	}

	imgui.Text(fmt.Sprintf("Instance: %s", inst))
	imgui.Text(fmt.Sprintf("ID: %s", inst.ID()))
	imgui.Text(fmt.Sprintf("State: %s", inst.State()))
	imgui.Text(fmt.Sprintf("Behaviour: %T", inst.Behaviour()))

	if inst.State() != script.Destroyed {
		if imgui.Button("Toggle") {
			_ = c.Toggle(inst)
		}
		imgui.SameLine()
		if imgui.Button("Destroy") {
			_ = c.Destroy(inst)
		}
	}
	imgui.Separator()

	slots := inst.Slots()
	if slots.Len() == 0 {
		imgui.Text("No slots")
	}
	for _, desc := range slots.Descriptors() {
		v, _ := slots.Get(desc.Name)
		if next, changed := renderSlot(desc.Name, v); changed {
			_ = slots.Set(desc.Name, next)
		}
	}

	imgui.End()
}

// renderSlot draws one slot editor and returns the edited value.
func renderSlot(name string, v script.SlotValue) (script.SlotValue, bool) {
	id := fmt.Sprintf("##%s", name)
	switch v.Kind {
	case script.SlotBool:
		b := v.Bool
		if imgui.Checkbox(name, &b) {
			return script.BoolValue(b), true
		}

	case script.SlotInt:
		i := int32(v.Int)
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(id, &i) {
			return script.IntValue(int64(i)), true
		}

	case script.SlotFloat:
		f := float32(v.Float)
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputFloat(id, &f) {
			return script.FloatValue(float64(f)), true
		}

	case script.SlotChar:
		s := string(v.Char)
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(50)
		if imgui.InputTextWithHint(id, "", &s, imgui.InputTextFlagsNone, nil) && utf8.RuneCountInString(s) == 1 {
			r, _ := utf8.DecodeRuneInString(s)
			return script.CharValue(r), true
		}

	default:
		imgui.Text(fmt.Sprintf("%s: %s", name, v))
	}
	return v, false
}
