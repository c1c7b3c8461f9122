package script_test

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/script"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestController(opts ...script.Option) (*script.ManualClock, *script.Controller) {
	clock := script.NewManualClock(epoch)
	base := []script.Option{
		script.WithClock(clock),
		script.WithLogger(slog.New(slog.DiscardHandler)),
	}
	return clock, script.NewController(append(base, opts...)...)
}

// recorder logs every callback it receives as "name:Callback" and runs an
// optional hook for each.
type recorder struct {
	name  string
	log   *[]string
	hooks map[string]func(ctx *script.Context) error
}

func newRecorder(name string, log *[]string) *recorder {
	return &recorder{name: name, log: log, hooks: map[string]func(ctx *script.Context) error{}}
}

func (r *recorder) on(callback string, fn func(ctx *script.Context) error) *recorder {
	r.hooks[callback] = fn
	return r
}

func (r *recorder) record(callback string, ctx *script.Context) error {
	*r.log = append(*r.log, r.name+":"+callback)
	if fn, ok := r.hooks[callback]; ok {
		return fn(ctx)
	}
	return nil
}

func (r *recorder) Awake(ctx *script.Context) error       { return r.record("Awake", ctx) }
func (r *recorder) OnEnable(ctx *script.Context) error    { return r.record("OnEnable", ctx) }
func (r *recorder) Start(ctx *script.Context) error       { return r.record("Start", ctx) }
func (r *recorder) FixedUpdate(ctx *script.Context) error { return r.record("FixedUpdate", ctx) }
func (r *recorder) Update(ctx *script.Context) error      { return r.record("Update", ctx) }
func (r *recorder) LateUpdate(ctx *script.Context) error  { return r.record("LateUpdate", ctx) }
func (r *recorder) OnDisable(ctx *script.Context) error   { return r.record("OnDisable", ctx) }
func (r *recorder) OnDestroy(ctx *script.Context) error   { return r.record("OnDestroy", ctx) }

// idle implements no callbacks at all.
type idle struct{}

type testObjects map[string]script.ObjectID

func (o testObjects) LookupObject(name string) (script.ObjectID, bool) {
	id, ok := o[name]
	return id, ok
}

func (o testObjects) ObjectName(id script.ObjectID) (string, bool) {
	for name, candidate := range o {
		if candidate == id {
			return name, true
		}
	}
	return "", false
}

type testTransform struct {
	pos mgl64.Vec3
}

func (t *testTransform) Position() mgl64.Vec3     { return t.pos }
func (t *testTransform) SetPosition(p mgl64.Vec3) { t.pos = p }
func (t *testTransform) SetPositionAxis(axis script.Axis, v float64) {
	t.pos[axis] = v
}

type testTransforms map[script.ObjectID]*testTransform

func (p testTransforms) Transform(id script.ObjectID) (script.Transform, bool) {
	t, ok := p[id]
	if !ok {
		return nil, false
	}
	return t, true
}

// collector gathers everything a coroutine produces.
type collector struct {
	produced  []any
	completed []any
	failed    []error
}

func (c *collector) continuation() script.Continuation {
	return script.Continuation{
		Produced:  func(_ script.Handle, v any) { c.produced = append(c.produced, v) },
		Completed: func(_ script.Handle, v any) { c.completed = append(c.completed, v) },
		Failed:    func(_ script.Handle, err error) { c.failed = append(c.failed, err) },
	}
}
