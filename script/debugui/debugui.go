// Package debugui provides Dear ImGui inspection windows for a script
// controller. The Overlay behaviour queues every panel's render function
// after LateUpdate, so panels see the state of a finished tick.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/scripthost/script"
)

// Panel renders one ImGui window for the controller.
type Panel interface {
	Render(c *script.Controller)
}

// PanelFunc adapts a function to the Panel interface.
type PanelFunc func(c *script.Controller)

func (f PanelFunc) Render(c *script.Controller) { f(c) }

// InputState tracks Dear ImGui's input capture state.
// Use this to determine if ImGui is consuming mouse or keyboard input.
type InputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// Overlay is a behaviour that renders its panels once per tick.
type Overlay struct {
	Panels []Panel
	Input  InputState
}

// LateUpdate updates the input state and defers every panel's render.
func (o *Overlay) LateUpdate(ctx *script.Context) error {
	io := imgui.CurrentIO()
	o.Input.WantCaptureMouse = io.WantCaptureMouse()
	o.Input.WantCaptureKeyboard = io.WantCaptureKeyboard()

	c := ctx.Controller()
	for _, p := range o.Panels {
		ctx.Defer(func() { p.Render(c) })
	}
	return nil
}

// NewOverlay creates an overlay with the standard panels: an instance
// browser, a slot inspector for the selected instance, the coroutine list
// and performance statistics.
func NewOverlay() *Overlay {
	browser := NewInstanceBrowser(100)
	return &Overlay{Panels: []Panel{
		browser,
		NewSlotInspector(browser),
		NewCoroutineList(),
		NewPerformanceStats(120),
	}}
}
