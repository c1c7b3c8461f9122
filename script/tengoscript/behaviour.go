package tengoscript

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/d5/tengo/v2"
	"github.com/plus3/scripthost/script"
)

// ErrReentrant is returned when a hook tries to run while another hook of the
// same behaviour is still running.
var ErrReentrant = errors.New("tengoscript: re-entrant dispatch")

// Behaviour is one running instance of a Program.
type Behaviour struct {
	program  *Program
	compiled *tengo.Compiled
	state    *tengo.Map
	fields   []*field
	engine   *tengo.ImmutableMap
	ctx      *script.Context
	running  bool

	// names of the coroutines this behaviour started, by handle
	handles map[script.Handle]string
}

// New creates a behaviour with its own globals, state map and field values.
func (p *Program) New() *Behaviour {
	b := &Behaviour{
		program:  p,
		compiled: p.compiled.Clone(),
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		handles:  make(map[script.Handle]string),
	}
	for _, f := range p.fields {
		b.fields = append(b.fields, &f)
	}
	return b
}

// Program returns the program b runs.
func (b *Behaviour) Program() *Program { return b.program }

// State returns a copy of the script's state map as Go values.
func (b *Behaviour) State() map[string]any {
	out, _ := objectToAny(b.state).(map[string]any)
	return out
}

func (b *Behaviour) String() string { return b.program.name }

func (b *Behaviour) Slots(t *script.SlotTable) {
	for _, f := range b.fields {
		t.Value(f.name, &f.value)
	}
}

func (b *Behaviour) Awake(ctx *script.Context) error       { return b.hook(ctx, "awake") }
func (b *Behaviour) OnEnable(ctx *script.Context) error    { return b.hook(ctx, "on_enable") }
func (b *Behaviour) Start(ctx *script.Context) error       { return b.hook(ctx, "start") }
func (b *Behaviour) FixedUpdate(ctx *script.Context) error { return b.hook(ctx, "fixed_update") }
func (b *Behaviour) Update(ctx *script.Context) error      { return b.hook(ctx, "update") }
func (b *Behaviour) LateUpdate(ctx *script.Context) error  { return b.hook(ctx, "late_update") }

// OnDisable and OnDestroy run after the controller cancelled every coroutine
// of the instance.
func (b *Behaviour) OnDisable(ctx *script.Context) error {
	clear(b.handles)
	return b.hook(ctx, "on_disable")
}

func (b *Behaviour) OnDestroy(ctx *script.Context) error {
	clear(b.handles)
	return b.hook(ctx, "on_destroy")
}

// CoroutineFailed hands coroutine failures to the script's on_error hook.
func (b *Behaviour) CoroutineFailed(ctx *script.Context, h script.Handle, err error) {
	if !b.program.hooks["on_error"] {
		ctx.Log(slog.LevelError, "coroutine failed", "handle", h, "error", err)
		return
	}
	b.bind(ctx)
	_, runErr := b.run("on_error", b.forget(h), &tengo.String{Value: err.Error()})
	if runErr != nil {
		ctx.Log(slog.LevelError, "on_error failed", "handle", h, "error", runErr)
	}
}

func (b *Behaviour) hook(ctx *script.Context, name string) error {
	if !b.program.hooks[name] {
		return nil
	}
	b.bind(ctx)
	_, err := b.run(name, "", nil)
	return err
}

func (b *Behaviour) bind(ctx *script.Context) {
	if b.ctx == ctx && b.engine != nil {
		return
	}
	b.ctx = ctx
	b.engine = newEngine(b)
}

// run dispatches one phase and returns the value the called function
// returned. A returned Tengo error value becomes a Go error.
func (b *Behaviour) run(phase, co string, value tengo.Object, local ...*tengo.Map) (tengo.Object, error) {
	if b.running {
		return nil, fmt.Errorf("%s: %w", phase, ErrReentrant)
	}
	b.running = true
	defer func() { b.running = false }()

	for _, f := range b.fields {
		b.state.Value[f.name] = f.object()
	}
	if value == nil {
		value = tengo.UndefinedValue
	}
	var localMap tengo.Object = tengo.UndefinedValue
	if len(local) > 0 {
		localMap = local[0]
	}

	vars := []struct {
		name  string
		value any
	}{
		{"__phase", phase},
		{"__engine", b.engine},
		{"__state", b.state},
		{"__co", co},
		{"__local", localMap},
		{"__value", value},
		{"__result", tengo.UndefinedValue},
	}
	for _, v := range vars {
		if err := b.compiled.Set(v.name, v.value); err != nil {
			return nil, err
		}
	}

	if err := b.compiled.Run(); err != nil {
		return nil, err
	}
	for _, f := range b.fields {
		f.assign(b.state.Value[f.name])
	}

	result := b.compiled.Get("__result").Object()
	if e, ok := result.(*tengo.Error); ok {
		return nil, errors.New(objectAsString(e.Value))
	}
	return result, nil
}

// field is a script-declared slot.
type field struct {
	name  string
	value script.SlotValue
}

func (f *field) object() tengo.Object {
	v := f.value
	switch v.Kind {
	case script.SlotBool:
		return boolObject(v.Bool)
	case script.SlotInt:
		return &tengo.Int{Value: v.Int}
	case script.SlotFloat:
		return &tengo.Float{Value: v.Float}
	case script.SlotChar:
		return &tengo.Char{Value: v.Char}
	case script.SlotRef:
		return &tengo.ImmutableMap{Value: map[string]tengo.Object{
			"object": &tengo.String{Value: v.Ref.Object},
			"script": &tengo.String{Value: v.Ref.Script},
		}}
	}
	return tengo.UndefinedValue
}

// assign copies a value the script wrote back. Values of the wrong type are
// ignored and overwritten on the next dispatch.
func (f *field) assign(obj tengo.Object) {
	switch v := obj.(type) {
	case *tengo.Bool:
		if f.value.Kind == script.SlotBool {
			f.value.Bool = !v.IsFalsy()
		}
	case *tengo.Int:
		switch f.value.Kind {
		case script.SlotInt:
			f.value.Int = v.Value
		case script.SlotFloat:
			f.value.Float = float64(v.Value)
		}
	case *tengo.Float:
		if f.value.Kind == script.SlotFloat {
			f.value.Float = v.Value
		}
	case *tengo.Char:
		if f.value.Kind == script.SlotChar {
			f.value.Char = v.Value
		}
	}
}
