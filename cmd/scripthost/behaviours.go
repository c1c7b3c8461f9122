package main

import (
	"iter"
	"log/slog"

	"github.com/plus3/scripthost/script"
)

// Testing is a passive behaviour other scripts reference.
type Testing struct {
	Hihi bool
}

func (t *Testing) Slots(table *script.SlotTable) {
	table.Bool("hihi", &t.Hihi)
}

// Test finds itself by name on awake, pins its object to x=3 on every update
// and counts 0..4 in a coroutine that yields once per second.
type Test struct {
	Self    script.ScriptRef
	Testing script.ScriptRef
	Armed   bool
	Ratio   float64
	Count   int
	Scale   float32
	Glyph   rune

	Yielded  []int
	Finished bool
}

func (t *Test) Slots(table *script.SlotTable) {
	table.Ref("testing", &t.Testing)
	table.Bool("armed", &t.Armed)
	table.Float("ratio", &t.Ratio)
	table.Int("count", &t.Count)
	table.Float32("scale", &t.Scale)
	table.Char("glyph", &t.Glyph)
}

func (t *Test) Awake(ctx *script.Context) error {
	t.Self = ctx.Find("entity1", "test")
	return nil
}

func (t *Test) OnEnable(ctx *script.Context) error {
	ctx.Log(slog.LevelInfo, "enabled")
	_, err := ctx.StartCoroutine(script.FromSeq(t.steps(ctx)), script.Millis(1000), script.Continuation{
		Produced: func(_ script.Handle, v any) {
			t.Yielded = append(t.Yielded, v.(int))
			ctx.Log(slog.LevelInfo, "yielded value", "value", v)
		},
		Completed: func(script.Handle, any) {
			t.Finished = true
			ctx.Log(slog.LevelInfo, "coroutine finished")
		},
	})
	return err
}

func (t *Test) steps(ctx *script.Context) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range 5 {
			ctx.Log(slog.LevelDebug, "coroutine step", "step", i)
			if !yield(i) {
				return
			}
		}
	}
}

func (t *Test) Start(ctx *script.Context) error {
	attrs := []any{"self", t.Self.String()}
	if peer, ok := script.ResolveAs[*Testing](t.Testing); ok {
		attrs = append(attrs, "testing", t.Testing.String(), "hihi", peer.Hihi)
	}
	ctx.Log(slog.LevelInfo, "start", attrs...)
	return nil
}

func (t *Test) Update(ctx *script.Context) error {
	if tf, ok := ctx.Transform(); ok {
		tf.SetPositionAxis(script.AxisX, 3)
	}
	return nil
}

func (t *Test) OnDisable(ctx *script.Context) error {
	ctx.Log(slog.LevelInfo, "disabled")
	return nil
}

func (t *Test) OnDestroy(ctx *script.Context) error {
	ctx.Log(slog.LevelInfo, "exit")
	return nil
}

func registerBehaviours(r *script.Registry) {
	script.RegisterBehaviour[Test](r, "Test")
	r.Register("Testing", func() script.Behaviour { return &Testing{Hihi: true} })
}
