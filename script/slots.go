package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrSlotKind is returned when a value cannot be stored in a slot of another kind.
var ErrSlotKind = errors.New("script: slot kind mismatch")

// ErrUnknownSlot is returned when setting a slot that was never declared.
var ErrUnknownSlot = errors.New("script: unknown slot")

// SlotKind is the type of a configurable field.
type SlotKind uint8

const (
	SlotBool SlotKind = iota
	SlotInt
	SlotFloat
	SlotChar
	SlotRef
)

func (k SlotKind) String() string {
	switch k {
	case SlotBool:
		return "bool"
	case SlotInt:
		return "int"
	case SlotFloat:
		return "float"
	case SlotChar:
		return "char"
	case SlotRef:
		return "ref"
	default:
		return "unknown"
	}
}

// RefValue names a script on another object by object name and script name.
type RefValue struct {
	Object string
	Script string
}

// SlotValue is a tagged union holding one slot value.
type SlotValue struct {
	Kind  SlotKind
	Bool  bool
	Int   int64
	Float float64
	Char  rune
	Ref   RefValue
}

func BoolValue(b bool) SlotValue     { return SlotValue{Kind: SlotBool, Bool: b} }
func IntValue(i int64) SlotValue     { return SlotValue{Kind: SlotInt, Int: i} }
func FloatValue(f float64) SlotValue { return SlotValue{Kind: SlotFloat, Float: f} }
func CharValue(r rune) SlotValue     { return SlotValue{Kind: SlotChar, Char: r} }
func RefTo(object, script string) SlotValue {
	return SlotValue{Kind: SlotRef, Ref: RefValue{Object: object, Script: script}}
}

func (v SlotValue) String() string {
	switch v.Kind {
	case SlotBool:
		return strconv.FormatBool(v.Bool)
	case SlotInt:
		return strconv.FormatInt(v.Int, 10)
	case SlotFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case SlotChar:
		return strconv.QuoteRune(v.Char)
	case SlotRef:
		return v.Ref.Object + "/" + v.Ref.Script
	default:
		return "<invalid>"
	}
}

// Any returns the value as a plain Go value.
func (v SlotValue) Any() any {
	switch v.Kind {
	case SlotBool:
		return v.Bool
	case SlotInt:
		return v.Int
	case SlotFloat:
		return v.Float
	case SlotChar:
		return v.Char
	case SlotRef:
		return v.Ref
	default:
		return nil
	}
}

// SlotDescriptor describes one declared slot.
type SlotDescriptor struct {
	Name string
	Kind SlotKind
}

// SlotSource supplies initial slot values for an instance before Awake.
type SlotSource interface {
	LoadSlots(object ObjectID, script string) (map[string]SlotValue, error)
}

// SlotSink persists slot values when an instance is destroyed.
type SlotSink interface {
	SaveSlots(object ObjectID, script string, values map[string]SlotValue) error
}

type slot struct {
	desc SlotDescriptor
	get  func() SlotValue
	set  func(SlotValue) error
}

// SlotTable binds slot names to fields of a behaviour. Bindings are typed
// pointers, so reading and writing a slot never goes through reflection.
type SlotTable struct {
	slots   []slot
	byName  map[string]int
	resolve func(RefValue) ScriptRef
}

// NewSlotTable creates an empty table. Ref slots stay unresolved unless the
// table is owned by a controller.
func NewSlotTable() *SlotTable {
	return &SlotTable{byName: make(map[string]int)}
}

func (t *SlotTable) bind(name string, kind SlotKind, get func() SlotValue, set func(SlotValue) error) {
	s := slot{desc: SlotDescriptor{Name: name, Kind: kind}, get: get, set: set}
	if i, ok := t.byName[name]; ok {
		t.slots[i] = s
		return
	}
	t.byName[name] = len(t.slots)
	t.slots = append(t.slots, s)
}

// Bool declares a bool slot backed by p.
func (t *SlotTable) Bool(name string, p *bool) {
	t.bind(name, SlotBool,
		func() SlotValue { return BoolValue(*p) },
		func(v SlotValue) error {
			if v.Kind != SlotBool {
				return kindError(name, SlotBool, v.Kind)
			}
			*p = v.Bool
			return nil
		})
}

// Int declares an int slot backed by p. Integral floats are accepted.
func (t *SlotTable) Int(name string, p *int) {
	t.bind(name, SlotInt,
		func() SlotValue { return IntValue(int64(*p)) },
		func(v SlotValue) error {
			switch v.Kind {
			case SlotInt:
				*p = int(v.Int)
			case SlotFloat:
				if v.Float != math.Trunc(v.Float) {
					return kindError(name, SlotInt, v.Kind)
				}
				*p = int(v.Float)
			default:
				return kindError(name, SlotInt, v.Kind)
			}
			return nil
		})
}

// Float declares a float slot backed by p. Ints are widened.
func (t *SlotTable) Float(name string, p *float64) {
	t.bind(name, SlotFloat,
		func() SlotValue { return FloatValue(*p) },
		func(v SlotValue) error {
			f, err := floatOf(name, v)
			if err != nil {
				return err
			}
			*p = f
			return nil
		})
}

// Float32 declares a float slot backed by a float32.
func (t *SlotTable) Float32(name string, p *float32) {
	t.bind(name, SlotFloat,
		func() SlotValue { return FloatValue(float64(*p)) },
		func(v SlotValue) error {
			f, err := floatOf(name, v)
			if err != nil {
				return err
			}
			*p = float32(f)
			return nil
		})
}

// Char declares a single-character slot backed by p.
func (t *SlotTable) Char(name string, p *rune) {
	t.bind(name, SlotChar,
		func() SlotValue { return CharValue(*p) },
		func(v SlotValue) error {
			if v.Kind != SlotChar {
				return kindError(name, SlotChar, v.Kind)
			}
			*p = v.Char
			return nil
		})
}

// Ref declares a script reference slot backed by p.
func (t *SlotTable) Ref(name string, p *ScriptRef) {
	t.bind(name, SlotRef,
		func() SlotValue { return RefTo(p.ObjectName, p.Script) },
		func(v SlotValue) error {
			if v.Kind != SlotRef {
				return kindError(name, SlotRef, v.Kind)
			}
			if t.resolve != nil {
				*p = t.resolve(v.Ref)
			} else {
				*p = ScriptRef{ObjectName: v.Ref.Object, Script: v.Ref.Script}
			}
			return nil
		})
}

// Value declares a slot backed by a SlotValue. The slot takes the kind p
// holds when declared; ints and integral floats convert as for Int and Float.
// Ref values are stored unresolved.
func (t *SlotTable) Value(name string, p *SlotValue) {
	kind := p.Kind
	t.bind(name, kind,
		func() SlotValue { return *p },
		func(v SlotValue) error {
			switch {
			case v.Kind == kind:
				*p = v
			case kind == SlotFloat && v.Kind == SlotInt:
				*p = FloatValue(float64(v.Int))
			case kind == SlotInt && v.Kind == SlotFloat && v.Float == math.Trunc(v.Float):
				*p = IntValue(int64(v.Float))
			default:
				return kindError(name, kind, v.Kind)
			}
			return nil
		})
}

// Set assigns a declared slot.
func (t *SlotTable) Set(name string, v SlotValue) error {
	i, ok := t.byName[name]
	if !ok {
		return fmt.Errorf("set %q: %w", name, ErrUnknownSlot)
	}
	return t.slots[i].set(v)
}

// Get reads a declared slot.
func (t *SlotTable) Get(name string) (SlotValue, bool) {
	i, ok := t.byName[name]
	if !ok {
		return SlotValue{}, false
	}
	return t.slots[i].get(), true
}

// Len returns the number of declared slots.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// Descriptors returns the declared slots in declaration order.
func (t *SlotTable) Descriptors() []SlotDescriptor {
	out := make([]SlotDescriptor, len(t.slots))
	for i, s := range t.slots {
		out[i] = s.desc
	}
	return out
}

// Values reads every declared slot.
func (t *SlotTable) Values() map[string]SlotValue {
	out := make(map[string]SlotValue, len(t.slots))
	for _, s := range t.slots {
		out[s.desc.Name] = s.get()
	}
	return out
}

// Apply sets every value in values, returning all errors joined.
func (t *SlotTable) Apply(values map[string]SlotValue) error {
	var errs []error
	for name, v := range values {
		if err := t.Set(name, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func floatOf(name string, v SlotValue) (float64, error) {
	switch v.Kind {
	case SlotFloat:
		return v.Float, nil
	case SlotInt:
		return float64(v.Int), nil
	default:
		return 0, kindError(name, SlotFloat, v.Kind)
	}
}

func kindError(name string, want, got SlotKind) error {
	return fmt.Errorf("slot %q is %s, got %s: %w", name, want, got, ErrSlotKind)
}

// StaticSlots is a SlotSource backed by an in-memory map keyed by object
// and script name.
type StaticSlots map[ObjectID]map[string]map[string]SlotValue

func (s StaticSlots) LoadSlots(object ObjectID, script string) (map[string]SlotValue, error) {
	return s[object][script], nil
}
