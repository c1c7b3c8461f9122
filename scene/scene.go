// Package scene holds the objects that scripts attach to: a name index,
// per-object transforms and the active flag.
package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/script"
)

var (
	// ErrDuplicateObject is returned when creating an object whose name is taken.
	ErrDuplicateObject = errors.New("scene: duplicate object name")

	// ErrUnknownObject is returned for IDs that do not name a live object.
	ErrUnknownObject = errors.New("scene: unknown object")
)

type objectRecord struct {
	id       script.ObjectID
	name     string
	active   bool
	position mgl64.Vec3
}

// Object is a snapshot of one scene object.
type Object struct {
	ID       script.ObjectID
	Name     string
	Active   bool
	Position mgl64.Vec3
}

// Scene is a flat set of named objects. It is not safe for concurrent use.
type Scene struct {
	objects     blockStorage[objectRecord]
	generations []uint32
	names       map[string]script.ObjectID
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{names: make(map[string]script.ObjectID)}
}

// Create adds an active object named name at position.
func (s *Scene) Create(name string, position mgl64.Vec3) (script.ObjectID, error) {
	if name == "" {
		return 0, errors.New("scene: object name is empty")
	}
	if _, taken := s.names[name]; taken {
		return 0, fmt.Errorf("create %q: %w", name, ErrDuplicateObject)
	}

	index := s.objects.Append(objectRecord{name: name, active: true, position: position})
	for len(s.generations) <= index {
		s.generations = append(s.generations, 0)
	}
	s.generations[index]++

	id := script.NewObjectID(s.generations[index], uint32(index))
	s.objects.Get(index).id = id
	s.names[name] = id
	return id, nil
}

// Remove deletes the object. Its ID will never resolve again, even after the
// slot is reused.
func (s *Scene) Remove(id script.ObjectID) error {
	rec := s.record(id)
	if rec == nil {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownObject)
	}
	delete(s.names, rec.name)
	s.objects.Delete(int(id.Index()))
	return nil
}

// Len returns the number of objects.
func (s *Scene) Len() int {
	return s.objects.Len()
}

// LookupObject returns the ID of the object named name.
func (s *Scene) LookupObject(name string) (script.ObjectID, bool) {
	id, ok := s.names[name]
	return id, ok
}

// ObjectName returns the name of the object with the given ID.
func (s *Scene) ObjectName(id script.ObjectID) (string, bool) {
	rec := s.record(id)
	if rec == nil {
		return "", false
	}
	return rec.name, true
}

// Get returns a snapshot of one object.
func (s *Scene) Get(id script.ObjectID) (Object, bool) {
	rec := s.record(id)
	if rec == nil {
		return Object{}, false
	}
	return rec.snapshot(), true
}

// Objects returns snapshots of every object in slot order.
func (s *Scene) Objects() []Object {
	out := make([]Object, 0, s.objects.Len())
	for _, rec := range s.objects.All() {
		out = append(out, rec.snapshot())
	}
	return out
}

// Active reports whether the object is active.
func (s *Scene) Active(id script.ObjectID) bool {
	rec := s.record(id)
	return rec != nil && rec.active
}

// SetActive changes the object's active flag.
func (s *Scene) SetActive(id script.ObjectID, active bool) error {
	rec := s.record(id)
	if rec == nil {
		return fmt.Errorf("set active %s: %w", id, ErrUnknownObject)
	}
	rec.active = active
	return nil
}

// Transform returns a handle to the object's transform. The handle looks the
// object up on every access and becomes inert once the object is removed.
func (s *Scene) Transform(id script.ObjectID) (script.Transform, bool) {
	if s.record(id) == nil {
		return nil, false
	}
	return &transform{scene: s, id: id}, true
}

func (s *Scene) record(id script.ObjectID) *objectRecord {
	index := int(id.Index())
	if index >= len(s.generations) || s.generations[index] != id.Generation() {
		return nil
	}
	rec := s.objects.Get(index)
	if rec == nil || rec.id != id {
		return nil
	}
	return rec
}

func (r *objectRecord) snapshot() Object {
	return Object{ID: r.id, Name: r.name, Active: r.active, Position: r.position}
}

type transform struct {
	scene *Scene
	id    script.ObjectID
}

func (t *transform) Position() mgl64.Vec3 {
	if rec := t.scene.record(t.id); rec != nil {
		return rec.position
	}
	return mgl64.Vec3{}
}

func (t *transform) SetPosition(p mgl64.Vec3) {
	if rec := t.scene.record(t.id); rec != nil {
		rec.position = p
	}
}

func (t *transform) SetPositionAxis(axis script.Axis, v float64) {
	if axis > script.AxisZ {
		return
	}
	if rec := t.scene.record(t.id); rec != nil {
		rec.position[axis] = v
	}
}
