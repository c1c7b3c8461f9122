package script

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Instance is one behaviour attached to one object, together with its
// lifecycle state and the coroutines it owns.
type Instance struct {
	id        uuid.UUID
	object    ObjectID
	name      string
	behaviour Behaviour

	state      State
	awoken     bool
	started    bool
	destroying bool

	handles []Handle
	slots   *SlotTable
	ctx     *Context
	stats   instanceStats
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() uuid.UUID { return i.id }

// Object returns the object the instance is attached to.
func (i *Instance) Object() ObjectID { return i.object }

// Name returns the script name, unique per object.
func (i *Instance) Name() string { return i.name }

// State returns the current lifecycle state.
func (i *Instance) State() State { return i.state }

// Behaviour returns the user-supplied behaviour value.
func (i *Instance) Behaviour() Behaviour { return i.behaviour }

// Slots returns the instance's slot table.
func (i *Instance) Slots() *SlotTable { return i.slots }

// Context returns the adapter passed to the instance's callbacks.
func (i *Instance) Context() *Context { return i.ctx }

// Coroutines returns the handles of the coroutines the instance owns.
func (i *Instance) Coroutines() []Handle { return slices.Clone(i.handles) }

func (i *Instance) String() string {
	return fmt.Sprintf("%s@%s", i.name, i.object)
}

func (i *Instance) logAttrs() []any {
	return []any{"object", i.object.String(), "script", i.name, "instance", i.id.String()}
}

func (i *Instance) dropHandle(h Handle) {
	if idx := slices.Index(i.handles, h); idx >= 0 {
		i.handles = slices.Delete(i.handles, idx, idx+1)
	}
}

type instanceStats struct {
	updateCount int64
	totalUpdate time.Duration
	minUpdate   time.Duration
	maxUpdate   time.Duration
	lastUpdate  time.Duration
	failures    int64
}

func (s *instanceStats) recordUpdate(d time.Duration) {
	s.updateCount++
	s.totalUpdate += d
	s.lastUpdate = d
	if s.updateCount == 1 || d < s.minUpdate {
		s.minUpdate = d
	}
	if d > s.maxUpdate {
		s.maxUpdate = d
	}
}
