package script

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ObjectID encodes a scene object's generation (upper 32 bits) and slot
// index (lower 32 bits). The zero ObjectID never names a live object.
type ObjectID uint64

// NewObjectID creates an ObjectID from a generation and slot index.
func NewObjectID(generation uint32, index uint32) ObjectID {
	return ObjectID(uint64(generation)<<32 | uint64(index))
}

// Generation extracts the generation counter from the object ID.
func (id ObjectID) Generation() uint32 {
	return uint32(id >> 32)
}

// Index extracts the slot index from the object ID.
func (id ObjectID) Index() uint32 {
	return uint32(id & 0xFFFFFFFF)
}

func (id ObjectID) String() string {
	return fmt.Sprintf("%d:%d", id.Generation(), id.Index())
}

// Axis selects one component of a position vector.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// ParseAxis parses "x", "y" or "z" in either case.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("script: unknown axis %q", s)
}

// Transform is the host's mutable spatial state for one object.
type Transform interface {
	Position() mgl64.Vec3
	SetPosition(p mgl64.Vec3)
	SetPositionAxis(axis Axis, v float64)
}

// ObjectResolver maps object names to identifiers.
type ObjectResolver interface {
	LookupObject(name string) (ObjectID, bool)
	ObjectName(id ObjectID) (string, bool)
}

// TransformProvider hands out the transform of an object.
type TransformProvider interface {
	Transform(id ObjectID) (Transform, bool)
}

// ScriptRef is a non-owning reference to a script instance attached to some
// object. It never keeps the target alive; Resolve fails once the target is
// destroyed or was never attached.
type ScriptRef struct {
	Object     ObjectID
	ObjectName string
	Script     string

	c *Controller
}

// Bound reports whether the reference was issued by a controller.
func (r ScriptRef) Bound() bool {
	return r.c != nil
}

// Resolve returns the target instance if it is still attached. A reference
// issued before its object existed is looked up by object name.
func (r ScriptRef) Resolve() (*Instance, bool) {
	if r.c == nil {
		return nil, false
	}
	object := r.Object
	if object == 0 {
		id, ok := r.c.lookupObject(r.ObjectName)
		if !ok {
			return nil, false
		}
		object = id
	}
	inst, ok := r.c.Find(object, r.Script)
	if !ok || inst.state == Destroyed {
		return nil, false
	}
	return inst, true
}

func (r ScriptRef) String() string {
	if r.ObjectName != "" {
		return r.ObjectName + "/" + r.Script
	}
	return r.Object.String() + "/" + r.Script
}

// ResolveAs resolves r and asserts the target behaviour to T.
func ResolveAs[T any](r ScriptRef) (T, bool) {
	var zero T
	inst, ok := r.Resolve()
	if !ok {
		return zero, false
	}
	b, ok := inst.behaviour.(T)
	if !ok {
		return zero, false
	}
	return b, true
}
