package luascript

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Shopify/go-lua"
	"github.com/plus3/scripthost/script"
)

// ErrReentrant is returned when a hook tries to run while another hook of the
// same behaviour is still running.
var ErrReentrant = errors.New("luascript: re-entrant dispatch")

// Behaviour is one running instance of a Program with its own Lua state.
type Behaviour struct {
	program *Program
	l       *lua.State
	err     error
	fields  []*field
	ctx     *script.Context
	running bool
	nextSeq int
	handles map[script.Handle]string
}

// New loads the program into a fresh Lua state. A load failure is reported
// by the first callback.
func (p *Program) New() *Behaviour {
	b := &Behaviour{program: p, handles: make(map[script.Handle]string)}
	for _, f := range p.fields {
		b.fields = append(b.fields, &f)
	}
	b.l, b.err = load(p.source)
	if b.err == nil {
		b.l.NewTable()
		b.l.SetGlobal("__state")
	}
	return b
}

// Program returns the program b runs.
func (b *Behaviour) Program() *Program { return b.program }

// State returns a copy of the script's state table as Go values.
func (b *Behaviour) State() map[string]any {
	if b.err != nil {
		return nil
	}
	b.l.Global("__state")
	defer b.l.Pop(1)
	return tableToMap(b.l, -1)
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
	name := b.forget(h)
	if !b.program.hooks["on_error"] {
		ctx.Log(slog.LevelError, "coroutine failed", "coroutine", name, "error", err)
		return
	}
	b.bind(ctx)
	if _, runErr := b.dispatch(global("on_error"), name, err.Error()); runErr != nil {
		ctx.Log(slog.LevelError, "on_error failed", "coroutine", name, "error", runErr)
	}
}

func (b *Behaviour) hook(ctx *script.Context, name string) error {
	if b.err != nil {
		return b.err
	}
	if !b.program.hooks[name] {
		return nil
	}
	b.bind(ctx)
	_, err := b.dispatch(global(name))
	return err
}

func (b *Behaviour) bind(ctx *script.Context) {
	if b.ctx == ctx {
		return
	}
	b.ctx = ctx
	b.l.NewTable()
	lua.SetFunctions(b.l, engineFunctions(b), 0)
	b.l.SetGlobal("__engine")
}

// dispatch calls fn(engine, state, args...) and returns its first result.
func (b *Behaviour) dispatch(fn any, args ...any) (any, error) {
	if b.running {
		return nil, ErrReentrant
	}
	b.running = true
	defer func() { b.running = false }()

	l := b.l
	top := l.Top()
	defer l.SetTop(top)

	b.pushFields()
	if name, ok := fn.(coroutineFunc); ok {
		l.Global("coroutines")
		l.Field(-1, string(name))
	} else {
		pushValue(l, fn)
	}
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("luascript: %v is not a function", fn)
	}
	l.Global("__engine")
	l.Global("__state")
	for _, arg := range args {
		pushValue(l, arg)
	}
	if err := l.ProtectedCall(2+len(args), 1, 0); err != nil {
		return nil, err
	}
	result := luaToGo(l, -1)
	b.pullFields()
	return result, nil
}

func (b *Behaviour) pushFields() {
	if len(b.fields) == 0 {
		return
	}
	l := b.l
	l.Global("__state")
	for _, f := range b.fields {
		pushValue(l, f.any())
		l.SetField(-2, f.name)
	}
	l.Pop(1)
}

func (b *Behaviour) pullFields() {
	if len(b.fields) == 0 {
		return
	}
	l := b.l
	l.Global("__state")
	for _, f := range b.fields {
		l.Field(-1, f.name)
		f.assign(luaToGo(l, -1))
		l.Pop(1)
	}
	l.Pop(1)
}

// field is a script-declared slot.
type field struct {
	name  string
	value script.SlotValue
}

func (f *field) any() any {
	switch f.value.Kind {
	case script.SlotChar:
		return string(f.value.Char)
	case script.SlotRef:
		return map[string]any{"object": f.value.Ref.Object, "script": f.value.Ref.Script}
	case script.SlotInt:
		return int(f.value.Int)
	}
	return f.value.Any()
}

// assign copies a value the script wrote back. Values of the wrong type are
// ignored and overwritten on the next dispatch.
func (f *field) assign(v any) {
	switch v := v.(type) {
	case bool:
		if f.value.Kind == script.SlotBool {
			f.value.Bool = v
		}
	case int:
		switch f.value.Kind {
		case script.SlotInt:
			f.value.Int = int64(v)
		case script.SlotFloat:
			f.value.Float = float64(v)
		}
	case float64:
		if f.value.Kind == script.SlotFloat {
			f.value.Float = v
		}
	case string:
		if f.value.Kind == script.SlotChar && utf8.RuneCountInString(v) == 1 {
			f.value.Char, _ = utf8.DecodeRuneInString(v)
		}
	}
}

// sequence resumes one entry of the script's coroutines table. Its local
// table lives in a per-sequence global until the scheduler stops it.
type sequence struct {
	b     *Behaviour
	name  string
	local global
}

func (s *sequence) Resume(time.Time) script.Step {
	result, err := s.b.dispatch(coroutineFunc(s.name), s.local)
	if err != nil {
		return script.Fail(err)
	}
	return stepOf(result)
}

func (s *sequence) Stop() {
	s.b.l.PushNil()
	s.b.l.SetGlobal(string(s.local))
}

func (s *sequence) String() string { return s.b.program.name + ":" + s.name }

// coroutineFunc pushes coroutines[name].
type coroutineFunc string

func (b *Behaviour) startCoroutine(name string, interval time.Duration) (script.Handle, error) {
	known := false
	for _, n := range b.program.coroutines {
		known = known || n == name
	}
	if !known {
		return 0, fmt.Errorf("luascript: unknown coroutine %q", name)
	}

	b.nextSeq++
	seq := &sequence{b: b, name: name, local: global(fmt.Sprintf("__local_%d", b.nextSeq))}
	b.l.NewTable()
	b.l.SetGlobal(string(seq.local))

	cont := script.Continuation{
		Completed: func(h script.Handle, result any) {
			b.forget(h)
			b.continuation("on_complete", name, result)
		},
	}
	if b.program.hooks["on_yield"] {
		cont.Produced = func(_ script.Handle, v any) { b.continuation("on_yield", name, v) }
	}

	h, err := b.ctx.StartCoroutine(seq, script.Every(interval), cont)
	if err != nil {
		seq.Stop()
		return 0, err
	}
	b.handles[h] = name
	return h, nil
}

func (b *Behaviour) continuation(hook, name string, v any) {
	if !b.program.hooks[hook] {
		return
	}
	if _, err := b.dispatch(global(hook), name, v); err != nil {
		b.ctx.Logger().Error("luascript: "+hook+" failed", "coroutine", name, "error", err)
	}
}

func (b *Behaviour) forget(h script.Handle) string {
	name := b.handles[h]
	delete(b.handles, h)
	return name
}

// stepOf maps a coroutine function's return value to a Step.
func stepOf(v any) script.Step {
	m, ok := v.(map[string]any)
	switch {
	case v == nil:
		return script.Pending()
	case !ok:
		return script.Yield(v)
	}
	if msg, ok := m["error"]; ok {
		return script.Fail(fmt.Errorf("%v", msg))
	}
	if done, _ := m["done"].(bool); done {
		return script.Complete(m["result"])
	}
	if value, ok := m["value"]; ok {
		if wait, ok := m["wait"].(int); ok && wait > 0 {
			return script.YieldAfter(value, time.Duration(wait)*time.Millisecond)
		}
		return script.Yield(value)
	}
	return script.Yield(m)
}
