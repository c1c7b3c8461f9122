package script

import (
	"fmt"
	"slices"
	"sync"
)

// Behaviour is the user-supplied logic attached to an object. It opts into
// lifecycle callbacks by implementing any of the interfaces below; a
// behaviour implementing none of them is legal and simply never called.
type Behaviour any

// Awaker is called once, when the instance is attached.
type Awaker interface {
	Awake(ctx *Context) error
}

// Enabler is called on every transition into Enabled.
type Enabler interface {
	OnEnable(ctx *Context) error
}

// Starter is called once, on the first tick after the first enable.
type Starter interface {
	Start(ctx *Context) error
}

// FixedUpdater is called once per elapsed fixed step.
type FixedUpdater interface {
	FixedUpdate(ctx *Context) error
}

// Updater is called once per tick while the instance is started.
type Updater interface {
	Update(ctx *Context) error
}

// LateUpdater is called after every instance's Update in the same tick.
type LateUpdater interface {
	LateUpdate(ctx *Context) error
}

// Disabler is called on every transition into Disabled, after the
// instance's coroutines have been cancelled.
type Disabler interface {
	OnDisable(ctx *Context) error
}

// Destroyer is called once, on the transition into Destroyed, if Awake ran.
type Destroyer interface {
	OnDestroy(ctx *Context) error
}

// ErrorSink receives coroutine failures that have no Failed continuation.
type ErrorSink interface {
	CoroutineFailed(ctx *Context, h Handle, err error)
}

// Slotted behaviours expose named, typed fields for external configuration.
type Slotted interface {
	Slots(t *SlotTable)
}

// Factory creates a fresh behaviour value.
type Factory func() Behaviour

// Registry maps behaviour type names to factories so scenes can attach
// behaviours by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds name to f, replacing any previous binding.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// RegisterBehaviour binds name to a factory returning a new zero T.
func RegisterBehaviour[T any](r *Registry, name string) {
	r.Register(name, func() Behaviour { return new(T) })
}

// New creates a behaviour by type name.
func (r *Registry) New(name string) (Behaviour, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("script: no behaviour registered as %q", name)
	}
	return f(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
