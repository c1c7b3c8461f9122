// Package luascript runs behaviours written in Lua.
//
// Scripts follow the same conventions as Tengo behaviours: lifecycle hooks
// are global functions taking (engine, state), `fields` declares slot
// defaults, `coroutines` maps names to step functions taking
// (engine, state, local), and on_yield, on_complete and on_error receive
// coroutine results. Engine functions are called with a dot:
//
//	function update(engine, state)
//	  engine.set_axis("x", state.speed)
//	end
//
// Every behaviour owns a separate Lua state.
package luascript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Shopify/go-lua"
	"github.com/plus3/scripthost/script"
)

// Extension is the file extension of Lua behaviour sources.
const Extension = ".lua"

var hookNames = []string{
	"awake", "on_enable", "start", "fixed_update", "update", "late_update",
	"on_disable", "on_destroy", "on_yield", "on_complete", "on_error",
}

// Program is a checked Lua behaviour source.
type Program struct {
	name       string
	source     string
	hooks      map[string]bool
	coroutines []string
	fields     []field
}

// LoadFile checks the script at path.
func LoadFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("luascript: read %s: %w", path, err)
	}
	return Compile(filepath.Base(path), src)
}

// Compile runs src once in a scratch state to find its hooks, coroutines
// and fields.
func Compile(name string, src []byte) (*Program, error) {
	l, err := load(string(src))
	if err != nil {
		return nil, fmt.Errorf("luascript: %s: %w", name, err)
	}

	p := &Program{name: name, source: string(src), hooks: make(map[string]bool)}
	for _, hook := range hookNames {
		l.Global(hook)
		switch {
		case l.IsFunction(-1):
			p.hooks[hook] = true
		case !l.IsNil(-1):
			return nil, fmt.Errorf("luascript: %s: %s is not a function", name, hook)
		}
		l.Pop(1)
	}

	l.Global("coroutines")
	if !l.IsNil(-1) {
		names, err := coroutineNames(l)
		if err != nil {
			return nil, fmt.Errorf("luascript: %s: %w", name, err)
		}
		p.coroutines = names
	}
	l.Pop(1)

	l.Global("fields")
	if !l.IsNil(-1) {
		fields, err := fieldsOf(l)
		if err != nil {
			return nil, fmt.Errorf("luascript: %s: %w", name, err)
		}
		p.fields = fields
	}
	l.Pop(1)
	return p, nil
}

// Name returns the file name the program was loaded from.
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

func load(src string) (*lua.State, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	if err := lua.LoadString(l, src); err != nil {
		return nil, err
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, err
	}
	return l, nil
}

func coroutineNames(l *lua.State) ([]string, error) {
	if !l.IsTable(-1) {
		return nil, errors.New("coroutines must be a table")
	}
	var names []string
	index := l.AbsIndex(-1)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString {
			l.Pop(2)
			return nil, errors.New("coroutine names must be strings")
		}
		name, _ := l.ToString(-2)
		if !l.IsFunction(-1) {
			l.Pop(2)
			return nil, fmt.Errorf("coroutine %q is not a function", name)
		}
		names = append(names, name)
		l.Pop(1)
	}
	slices.Sort(names)
	return names, nil
}

func fieldsOf(l *lua.State) ([]field, error) {
	if !l.IsTable(-1) {
		return nil, errors.New("fields must be a table")
	}
	var errs []error
	var fields []field
	index := l.AbsIndex(-1)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString {
			errs = append(errs, errors.New("field names must be strings"))
			l.Pop(1)
			continue
		}
		name, _ := l.ToString(-2)
		value, err := slotValue(luaToGo(l, -1))
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
		} else {
			fields = append(fields, field{name: name, value: value})
		}
		l.Pop(1)
	}
	slices.SortFunc(fields, func(a, b field) int { return strings.Compare(a.name, b.name) })
	return fields, errors.Join(errs...)
}

func slotValue(v any) (script.SlotValue, error) {
	switch v := v.(type) {
	case bool:
		return script.BoolValue(v), nil
	case int:
		return script.IntValue(int64(v)), nil
	case float64:
		return script.FloatValue(v), nil
	case string:
		if utf8.RuneCountInString(v) != 1 {
			return script.SlotValue{}, fmt.Errorf("string field must be a single character, got %q", v)
		}
		r, _ := utf8.DecodeRuneInString(v)
		return script.CharValue(r), nil
	case map[string]any:
		object, _ := v["object"].(string)
		target, _ := v["script"].(string)
		if object == "" || target == "" {
			return script.SlotValue{}, errors.New("reference needs object and script")
		}
		return script.RefTo(object, target), nil
	default:
		return script.SlotValue{}, fmt.Errorf("unsupported value %v", v)
	}
}
