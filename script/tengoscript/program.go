// Package tengoscript runs behaviours written in Tengo.
//
// A script defines any of the lifecycle hooks as top-level functions taking
// (engine, state):
//
//	awake, on_enable, start, fixed_update, update, late_update, on_disable, on_destroy
//
// Optional globals:
//
//	fields      map of slot defaults; bool, int, float, char or {object, script}
//	coroutines  map of step functions taking (engine, state, local)
//	on_yield    func(engine, state, name, value)
//	on_complete func(engine, state, name, result)
//	on_error    func(engine, state, name, message)
//
// A coroutine step returns undefined to wait, {value: v} or {value: v, wait: ms}
// to produce, {done: true, result: r} to finish and {error: msg} to fail. Any
// other return value is produced as is.
//
// The whole script runs on every dispatch, so top-level code should only
// define values.
package tengoscript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/plus3/scripthost/script"
)

// Extension is the file extension of Tengo behaviour sources.
const Extension = ".tengo"

var lifecycleHooks = []string{
	"awake", "on_enable", "start", "fixed_update",
	"update", "late_update", "on_disable", "on_destroy",
}

var continuationHooks = []string{"on_yield", "on_complete", "on_error"}

// Program is a compiled Tengo behaviour. Each behaviour created from it gets
// its own globals and state.
type Program struct {
	name       string
	compiled   *tengo.Compiled
	hooks      map[string]bool
	coroutines []string
	fields     []field
}

// LoadFile compiles the script at path.
func LoadFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tengoscript: read %s: %w", path, err)
	}
	return Compile(filepath.Base(path), src)
}

// Compile checks src, discovers its hooks, coroutines and fields, and
// compiles it together with a dispatcher for the hooks it defines.
func Compile(name string, src []byte) (*Program, error) {
	probe := tengo.NewScript(src)
	probe.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	compiled, err := probe.Run()
	if err != nil {
		return nil, fmt.Errorf("tengoscript: %s: %w", name, err)
	}

	p := &Program{name: name, hooks: make(map[string]bool)}
	for _, hook := range slices.Concat(lifecycleHooks, continuationHooks) {
		if !compiled.IsDefined(hook) {
			continue
		}
		if !compiled.Get(hook).Object().CanCall() {
			return nil, fmt.Errorf("tengoscript: %s: %s is not a function", name, hook)
		}
		p.hooks[hook] = true
	}

	if compiled.IsDefined("coroutines") {
		names, err := coroutineNames(compiled.Get("coroutines").Object())
		if err != nil {
			return nil, fmt.Errorf("tengoscript: %s: %w", name, err)
		}
		p.coroutines = names
	}
	if compiled.IsDefined("fields") {
		fields, err := fieldsOf(compiled.Get("fields").Object())
		if err != nil {
			return nil, fmt.Errorf("tengoscript: %s: %w", name, err)
		}
		p.fields = fields
	}

	full := tengo.NewScript([]byte(string(src) + "\n" + p.dispatcher()))
	_ = full.Add("__phase", "")
	_ = full.Add("__engine", map[string]any{})
	_ = full.Add("__state", map[string]any{})
	_ = full.Add("__co", "")
	_ = full.Add("__local", map[string]any{})
	_ = full.Add("__value", nil)
	_ = full.Add("__result", nil)
	full.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	p.compiled, err = full.Compile()
	if err != nil {
		return nil, fmt.Errorf("tengoscript: %s: %w", name, err)
	}
	return p, nil
}

// Name returns the file name the program was compiled from.
func (p *Program) Name() string { return p.name }

// Hooks returns the hooks the script defines.
func (p *Program) Hooks() []string {
	out := make([]string, 0, len(p.hooks))
	for hook := range p.hooks {
		out = append(out, hook)
	}
	slices.Sort(out)
	return out
}

// Coroutines returns the names of the coroutines the script defines.
func (p *Program) Coroutines() []string { return slices.Clone(p.coroutines) }

// Factory returns a factory creating fresh behaviours from p.
func (p *Program) Factory() script.Factory {
	return func() script.Behaviour { return p.New() }
}

func (p *Program) dispatcher() string {
	var b strings.Builder
	for _, hook := range lifecycleHooks {
		if p.hooks[hook] {
			fmt.Fprintf(&b, "if __phase == %q {\n\t__result = %s(__engine, __state)\n}\n", hook, hook)
		}
	}
	if len(p.coroutines) > 0 {
		b.WriteString("if __phase == \"coroutine\" {\n\t__result = coroutines[__co](__engine, __state, __local)\n}\n")
	}
	for _, hook := range continuationHooks {
		if p.hooks[hook] {
			fmt.Fprintf(&b, "if __phase == %q {\n\t__result = %s(__engine, __state, __co, __value)\n}\n", hook, hook)
		}
	}
	return b.String()
}

func coroutineNames(obj tengo.Object) ([]string, error) {
	entries, ok := mapEntries(obj)
	if !ok {
		return nil, errors.New("coroutines must be a map")
	}
	names := make([]string, 0, len(entries))
	for name, fn := range entries {
		if !fn.CanCall() {
			return nil, fmt.Errorf("coroutine %q is not a function", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func fieldsOf(obj tengo.Object) ([]field, error) {
	entries, ok := mapEntries(obj)
	if !ok {
		return nil, errors.New("fields must be a map")
	}
	var errs []error
	fields := make([]field, 0, len(entries))
	for name, v := range entries {
		value, err := slotValue(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
			continue
		}
		fields = append(fields, field{name: name, value: value})
	}
	slices.SortFunc(fields, func(a, b field) int { return strings.Compare(a.name, b.name) })
	return fields, errors.Join(errs...)
}

func slotValue(obj tengo.Object) (script.SlotValue, error) {
	switch v := obj.(type) {
	case *tengo.Bool:
		return script.BoolValue(!v.IsFalsy()), nil
	case *tengo.Int:
		return script.IntValue(v.Value), nil
	case *tengo.Float:
		return script.FloatValue(v.Value), nil
	case *tengo.Char:
		return script.CharValue(v.Value), nil
	case *tengo.Map, *tengo.ImmutableMap:
		entries, _ := mapEntries(v)
		if entries["object"] == nil || entries["script"] == nil {
			return script.SlotValue{}, errors.New("reference needs object and script")
		}
		return script.RefTo(objectAsString(entries["object"]), objectAsString(entries["script"])), nil
	default:
		return script.SlotValue{}, fmt.Errorf("unsupported type %s", obj.TypeName())
	}
}

func mapEntries(obj tengo.Object) (map[string]tengo.Object, bool) {
	switch v := obj.(type) {
	case *tengo.Map:
		return v.Value, true
	case *tengo.ImmutableMap:
		return v.Value, true
	}
	return nil, false
}
