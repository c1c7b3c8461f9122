package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Context is handed to every callback. It is bound to one instance and is
// the behaviour's only way to reach the scheduler, the scene and the log.
type Context struct {
	c      *Controller
	inst   *Instance
	logger *slog.Logger
}

func newContext(c *Controller, inst *Instance) *Context {
	return &Context{
		c:      c,
		inst:   inst,
		logger: c.logger.With(inst.logAttrs()...),
	}
}

// Instance returns the instance this context is bound to.
func (ctx *Context) Instance() *Instance { return ctx.inst }

// Controller returns the owning controller.
func (ctx *Context) Controller() *Controller { return ctx.c }

// Frame returns the tick currently being processed.
func (ctx *Context) Frame() Frame { return ctx.c.frame }

// DeltaTime returns the time since the previous tick.
func (ctx *Context) DeltaTime() time.Duration { return ctx.c.frame.DeltaTime }

// Now returns the controller clock reading.
func (ctx *Context) Now() time.Time { return ctx.c.clock.Now() }

// Logger returns a logger carrying the instance identity.
func (ctx *Context) Logger() *slog.Logger { return ctx.logger }

// Log writes msg at level with the instance identity attached.
func (ctx *Context) Log(level slog.Level, msg string, args ...any) {
	ctx.logger.Log(context.Background(), level, msg, args...)
}

// StartCoroutine registers seq as a coroutine owned by this instance.
func (ctx *Context) StartCoroutine(seq Sequence, throttle Throttle, cont Continuation) (Handle, error) {
	return ctx.c.scheduler.Start(ctx.inst, seq, throttle, cont)
}

// Coroutine builds a sequence with factory and runs it every intervalMs
// milliseconds, passing each produced value to onValue.
func (ctx *Context) Coroutine(factory func() Sequence, intervalMs int, onValue func(v any)) (Handle, error) {
	if factory == nil {
		return 0, fmt.Errorf("script: start coroutine on %s: nil factory", ctx.inst)
	}
	cont := Continuation{}
	if onValue != nil {
		cont.Produced = func(_ Handle, v any) { onValue(v) }
	}
	return ctx.StartCoroutine(factory(), Millis(intervalMs), cont)
}

// StopCoroutine cancels h. Unknown handles are ignored.
func (ctx *Context) StopCoroutine(h Handle) {
	ctx.c.scheduler.Cancel(h)
}

// StopAllCoroutines cancels every coroutine this instance owns.
func (ctx *Context) StopAllCoroutines() int {
	return ctx.c.scheduler.CancelOwner(ctx.inst)
}

// ActiveCoroutines returns how many coroutines this instance owns.
func (ctx *Context) ActiveCoroutines() int {
	return len(ctx.inst.handles)
}

// Find returns a reference to the script named scriptName on the object
// named objectName. The reference resolves lazily.
func (ctx *Context) Find(objectName, scriptName string) ScriptRef {
	return ctx.c.ref(objectName, scriptName)
}

// Self returns a reference to this instance.
func (ctx *Context) Self() ScriptRef {
	name, _ := ctx.c.objectName(ctx.inst.object)
	return ScriptRef{Object: ctx.inst.object, ObjectName: name, Script: ctx.inst.name, c: ctx.c}
}

// Transform returns the transform of the owning object.
func (ctx *Context) Transform() (Transform, bool) {
	if ctx.c.transforms == nil {
		return nil, false
	}
	return ctx.c.transforms.Transform(ctx.inst.object)
}

// Defer runs fn after the current callback returns.
func (ctx *Context) Defer(fn func()) {
	ctx.c.Defer(fn)
}

// Enable enables this instance once the current callback returns.
func (ctx *Context) Enable() error { return ctx.c.Enable(ctx.inst) }

// Disable disables this instance once the current callback returns.
func (ctx *Context) Disable() error { return ctx.c.Disable(ctx.inst) }

// Toggle flips this instance between enabled and disabled.
func (ctx *Context) Toggle() error { return ctx.c.Toggle(ctx.inst) }

// Destroy destroys this instance once the current callback returns.
func (ctx *Context) Destroy() error { return ctx.c.Destroy(ctx.inst) }
