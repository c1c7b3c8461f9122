package tengoscript

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/plus3/scripthost/script"
)

// sequence resumes one named entry of the script's coroutines map. Each
// sequence carries its own local map across resumptions.
type sequence struct {
	b     *Behaviour
	name  string
	local *tengo.Map
}

func (s *sequence) Resume(time.Time) script.Step {
	result, err := s.b.run("coroutine", s.name, nil, s.local)
	if err != nil {
		return script.Fail(err)
	}
	return stepOf(result)
}

func (s *sequence) String() string { return s.b.program.name + ":" + s.name }

func (b *Behaviour) startCoroutine(name string, interval time.Duration) (script.Handle, error) {
	found := false
	for _, n := range b.program.coroutines {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("tengoscript: unknown coroutine %q", name)
	}

	seq := &sequence{b: b, name: name, local: &tengo.Map{Value: map[string]tengo.Object{}}}
	h, err := b.ctx.StartCoroutine(seq, script.Every(interval), b.continuation(name))
	if err != nil {
		return 0, err
	}
	b.handles[h] = name
	return h, nil
}

func (b *Behaviour) continuation(name string) script.Continuation {
	cont := script.Continuation{
		Completed: func(h script.Handle, result any) {
			b.forget(h)
			if b.program.hooks["on_complete"] {
				b.dispatchContinuation("on_complete", name, result)
			}
		},
	}
	if b.program.hooks["on_yield"] {
		cont.Produced = func(_ script.Handle, v any) {
			b.dispatchContinuation("on_yield", name, v)
		}
	}
	return cont
}

func (b *Behaviour) dispatchContinuation(hook, name string, v any) {
	if _, err := b.run(hook, name, toObject(v)); err != nil {
		b.ctx.Logger().Error("tengoscript: "+hook+" failed", "coroutine", name, "error", err)
	}
}

// forget drops h from the handle table and returns the coroutine name.
func (b *Behaviour) forget(h script.Handle) string {
	name := b.handles[h]
	delete(b.handles, h)
	return name
}

// stepOf maps a coroutine function's return value to a Step.
func stepOf(obj tengo.Object) script.Step {
	if _, undefined := obj.(*tengo.Undefined); obj == nil || undefined {
		return script.Pending()
	}
	entries, ok := mapEntries(obj)
	if !ok {
		return script.Yield(objectToAny(obj))
	}
	if msg, ok := entries["error"]; ok {
		return script.Fail(errors.New(objectAsString(msg)))
	}
	if done, ok := entries["done"]; ok && !done.IsFalsy() {
		return script.Complete(objectToAny(entries["result"]))
	}
	if v, ok := entries["value"]; ok {
		if wait, ok := tengo.ToInt64(entries["wait"]); ok && wait > 0 {
			return script.YieldAfter(objectToAny(v), time.Duration(wait)*time.Millisecond)
		}
		return script.Yield(objectToAny(v))
	}
	return script.Yield(objectToAny(obj))
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Char:
		return v.Value
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}

// toObject converts a Go value for a script. Values Tengo cannot represent
// are passed as their string form.
func toObject(v any) tengo.Object {
	if v == nil {
		return tengo.UndefinedValue
	}
	obj, err := tengo.FromInterface(v)
	if err != nil {
		return &tengo.String{Value: fmt.Sprint(v)}
	}
	return obj
}
