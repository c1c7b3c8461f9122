package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxFixedSteps bounds the FixedUpdate catch-up work done in one tick.
const maxFixedSteps = 8

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for coroutine scheduling and frame deltas.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithObjects sets the resolver used to turn object names into IDs.
func WithObjects(objects ObjectResolver) Option {
	return func(c *Controller) { c.objects = objects }
}

// WithTransforms sets the provider backing Context.Transform.
func WithTransforms(transforms TransformProvider) Option {
	return func(c *Controller) { c.transforms = transforms }
}

// WithSlotSource sets where initial slot values come from. If the source
// also implements SlotSink, slot values are saved when instances are destroyed.
func WithSlotSource(source SlotSource) Option {
	return func(c *Controller) { c.slotSource = source }
}

// WithFixedStep enables FixedUpdate callbacks at the given step.
func WithFixedStep(step time.Duration) Option {
	return func(c *Controller) { c.fixedStep = step }
}

type instanceKey struct {
	object ObjectID
	name   string
}

// Controller owns script instances, drives their lifecycle and runs their
// coroutines. Everything except Post must be called from the goroutine that
// calls Tick.
type Controller struct {
	clock      Clock
	logger     *slog.Logger
	scheduler  *Scheduler
	objects    ObjectResolver
	transforms TransformProvider
	slotSource SlotSource
	fixedStep  time.Duration
	fixedAccum time.Duration

	instances []*Instance
	byKey     map[instanceKey]*Instance
	byID      map[uuid.UUID]*Instance
	dirty     bool

	commands *Commands
	depth    int
	flushing bool
	ticking  bool

	inboxMu sync.Mutex
	inbox   []func()

	frame Frame
	timer FrameTimer
	ticks tickStats
}

// NewController creates a controller with no instances.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		byKey:    make(map[instanceKey]*Instance),
		byID:     make(map[uuid.UUID]*Instance),
		commands: newCommands(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.scheduler = NewScheduler(c.clock, c.logger)
	c.scheduler.afterResume = c.flushPass
	return c
}

// flushPass applies lifecycle calls queued by one coroutine step while the
// tick pass is still running, so later coroutines see them.
func (c *Controller) flushPass() {
	c.depth--
	c.flush()
	c.depth++
}

// Scheduler returns the coroutine scheduler.
func (c *Controller) Scheduler() *Scheduler { return c.scheduler }

// Clock returns the controller clock.
func (c *Controller) Clock() Clock { return c.clock }

// Logger returns the controller logger.
func (c *Controller) Logger() *slog.Logger { return c.logger }

// Frame returns the most recent tick.
func (c *Controller) Frame() Frame { return c.frame }

// Register creates a Constructed instance of b attached to object under name.
func (c *Controller) Register(object ObjectID, name string, b Behaviour) (*Instance, error) {
	if b == nil {
		return nil, fmt.Errorf("script: register %q: nil behaviour", name)
	}
	key := instanceKey{object: object, name: name}
	if _, dup := c.byKey[key]; dup {
		return nil, fmt.Errorf("register %s@%s: %w", name, object, ErrDuplicateInstance)
	}

	inst := &Instance{
		id:        uuid.New(),
		object:    object,
		name:      name,
		behaviour: b,
		state:     Constructed,
		slots:     NewSlotTable(),
	}
	inst.slots.resolve = func(v RefValue) ScriptRef { return c.ref(v.Object, v.Script) }
	inst.ctx = newContext(c, inst)
	if s, ok := b.(Slotted); ok {
		s.Slots(inst.slots)
	}

	c.instances = append(c.instances, inst)
	c.byKey[key] = inst
	c.byID[inst.id] = inst
	return inst, nil
}

// Spawn registers, attaches and enables b in one call. A failing Awake is
// reported here and leaves the instance Destroyed.
func (c *Controller) Spawn(object ObjectID, name string, b Behaviour) (*Instance, error) {
	inst, err := c.Register(object, name, b)
	if err != nil {
		return nil, err
	}
	if err := c.Attach(inst); err != nil {
		return inst, err
	}
	if err := c.Enable(inst); err != nil {
		return inst, err
	}
	return inst, nil
}

// Attach loads slot values and runs Awake.
func (c *Controller) Attach(inst *Instance) error {
	if inst == nil {
		return errors.New("script: attach nil instance")
	}
	if c.depth > 0 {
		c.commands.attach(inst)
		return nil
	}
	return c.attach(inst)
}

// Enable moves inst into Enabled and runs OnEnable.
func (c *Controller) Enable(inst *Instance) error {
	if inst == nil {
		return errors.New("script: enable nil instance")
	}
	if c.depth > 0 {
		c.commands.Enable(inst)
		return nil
	}
	return c.enable(inst)
}

// Disable cancels inst's coroutines and runs OnDisable.
func (c *Controller) Disable(inst *Instance) error {
	if inst == nil {
		return errors.New("script: disable nil instance")
	}
	if c.depth > 0 {
		c.commands.Disable(inst)
		return nil
	}
	return c.disable(inst)
}

// Toggle disables a live instance and enables an idle one.
func (c *Controller) Toggle(inst *Instance) error {
	if inst == nil {
		return errors.New("script: toggle nil instance")
	}
	if c.depth > 0 {
		c.commands.Toggle(inst)
		return nil
	}
	return c.toggle(inst)
}

// Destroy disables inst if needed, runs OnDestroy and forgets it.
func (c *Controller) Destroy(inst *Instance) error {
	if inst == nil {
		return errors.New("script: destroy nil instance")
	}
	if c.depth > 0 {
		c.commands.Destroy(inst)
		return nil
	}
	return c.destroy(inst)
}

// Defer runs fn after the current callback returns, or immediately when
// no callback is running.
func (c *Controller) Defer(fn func()) {
	if c.depth > 0 {
		c.commands.Defer(fn)
		return
	}
	c.safeRun("defer", fn)
}

// DestroyAll destroys every instance in registration order.
func (c *Controller) DestroyAll() {
	for _, inst := range append([]*Instance(nil), c.instances...) {
		if err := c.Destroy(inst); err != nil {
			c.logger.Warn("script: destroy failed", append(inst.logAttrs(), "error", err)...)
		}
	}
	c.compact()
}

// DestroyObject destroys every instance attached to object.
func (c *Controller) DestroyObject(object ObjectID) int {
	n := 0
	for _, inst := range append([]*Instance(nil), c.instances...) {
		if inst.object == object && inst.state != Destroyed {
			_ = c.Destroy(inst)
			n++
		}
	}
	return n
}

func (c *Controller) attach(inst *Instance) error {
	if inst.state != Constructed {
		return &TransitionError{Instance: inst.String(), Op: "attach", From: inst.state}
	}

	if c.slotSource != nil {
		values, err := c.slotSource.LoadSlots(inst.object, inst.name)
		if err != nil {
			c.logger.Warn("script: load slots failed", append(inst.logAttrs(), "error", err)...)
		}
		if err := inst.slots.Apply(values); err != nil {
			c.logger.Warn("script: slot values rejected", append(inst.logAttrs(), "error", err)...)
		}
	}

	inst.state = Awake
	inst.awoken = true
	if err := c.invoke(inst, "Awake", func(ctx *Context) (err error) {
		// A failed awake must refuse anything it queued before invoke
		// flushes the command queue.
		awoke := false
		defer func() {
			if !awoke {
				inst.destroying = true
			}
		}()
		if a, ok := inst.behaviour.(Awaker); ok {
			err = a.Awake(ctx)
		}
		awoke = err == nil
		return err
	}); err != nil {
		c.scheduler.CancelOwner(inst)
		inst.state = Destroyed
		c.forget(inst)
		return err
	}
	return nil
}

func (c *Controller) enable(inst *Instance) error {
	switch inst.state {
	case Enabled, Started, Updating:
		return nil
	case Awake, Disabled:
		if inst.destroying {
			return &TransitionError{Instance: inst.String(), Op: "enable", From: inst.state}
		}
	default:
		return &TransitionError{Instance: inst.String(), Op: "enable", From: inst.state}
	}

	inst.state = Enabled
	c.invoke(inst, "OnEnable", func(ctx *Context) error {
		if e, ok := inst.behaviour.(Enabler); ok {
			return e.OnEnable(ctx)
		}
		return nil
	})
	return nil
}

func (c *Controller) disable(inst *Instance) error {
	switch inst.state {
	case Disabled:
		return nil
	case Awake:
		inst.state = Disabled
		return nil
	case Enabled, Started, Updating:
	default:
		return &TransitionError{Instance: inst.String(), Op: "disable", From: inst.state}
	}

	inst.state = Disabled
	c.scheduler.CancelOwner(inst)
	c.invoke(inst, "OnDisable", func(ctx *Context) error {
		if d, ok := inst.behaviour.(Disabler); ok {
			return d.OnDisable(ctx)
		}
		return nil
	})
	return nil
}

func (c *Controller) toggle(inst *Instance) error {
	if inst.state.Live() {
		return c.disable(inst)
	}
	return c.enable(inst)
}

func (c *Controller) destroy(inst *Instance) error {
	if inst.destroying || inst.state == Destroyed {
		return nil
	}
	if inst.state == Constructed {
		inst.state = Destroyed
		c.forget(inst)
		return nil
	}

	inst.destroying = true
	if inst.state.Live() {
		c.disable(inst)
	}
	c.scheduler.CancelOwner(inst)
	c.saveSlots(inst)

	inst.state = Destroyed
	if inst.awoken {
		c.invoke(inst, "OnDestroy", func(ctx *Context) error {
			if d, ok := inst.behaviour.(Destroyer); ok {
				return d.OnDestroy(ctx)
			}
			return nil
		})
	}
	c.forget(inst)
	return nil
}

func (c *Controller) saveSlots(inst *Instance) {
	sink, ok := c.slotSource.(SlotSink)
	if !ok || inst.slots.Len() == 0 {
		return
	}
	if err := sink.SaveSlots(inst.object, inst.name, inst.slots.Values()); err != nil {
		c.logger.Warn("script: save slots failed", append(inst.logAttrs(), "error", err)...)
	}
}

func (c *Controller) forget(inst *Instance) {
	key := instanceKey{object: inst.object, name: inst.name}
	if c.byKey[key] == inst {
		delete(c.byKey, key)
	}
	delete(c.byID, inst.id)
	c.dirty = true
	if !c.ticking {
		c.compact()
	}
}

func (c *Controller) compact() {
	if !c.dirty || c.ticking {
		return
	}
	write := 0
	for _, inst := range c.instances {
		if inst.state != Destroyed {
			c.instances[write] = inst
			write++
		}
	}
	for i := write; i < len(c.instances); i++ {
		c.instances[i] = nil
	}
	c.instances = c.instances[:write]
	c.dirty = false
}

// invoke runs one callback with panics contained, then applies any
// lifecycle commands it queued.
func (c *Controller) invoke(inst *Instance, callback string, fn func(*Context) error) (err error) {
	c.depth++
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
		}()
		err = fn(inst.ctx)
	}()
	duration := time.Since(start)
	c.depth--

	if callback == "Update" {
		inst.stats.recordUpdate(duration)
	}
	if err != nil {
		inst.stats.failures++
		err = &CallbackError{Instance: inst.String(), Callback: callback, Err: err}
		c.logger.Error("script: callback failed",
			append(inst.logAttrs(), "callback", callback, "error", err)...)
	}

	c.flush()
	return err
}

// flush applies queued commands in request order. Commands queued while
// flushing are applied by the same loop.
func (c *Controller) flush() {
	if c.depth > 0 || c.flushing {
		return
	}
	c.flushing = true
	defer func() { c.flushing = false }()

	for {
		cmd, ok := c.commands.pop()
		if !ok {
			return
		}
		var err error
		switch cmd.op {
		case opAttach:
			err = c.attach(cmd.inst)
		case opEnable:
			err = c.enable(cmd.inst)
		case opDisable:
			err = c.disable(cmd.inst)
		case opToggle:
			err = c.toggle(cmd.inst)
		case opDestroy:
			err = c.destroy(cmd.inst)
		case opDefer:
			c.safeRun("defer", cmd.fn)
		}
		if err != nil && !errors.Is(err, ErrCallbackFailure) {
			c.logger.Warn("script: queued command failed",
				append(cmd.inst.logAttrs(), "command", cmd.op.String(), "error", err)...)
		}
	}
}

func (c *Controller) safeRun(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("script: "+what+" panicked", "error", panicError(r))
		}
	}()
	fn()
}

// Post queues fn to run at the start of the next tick. It is the only
// method that may be called from other goroutines.
func (c *Controller) Post(fn func()) {
	c.inboxMu.Lock()
	c.inbox = append(c.inbox, fn)
	c.inboxMu.Unlock()
}

func (c *Controller) drainInbox() {
	c.inboxMu.Lock()
	fns := c.inbox
	c.inbox = nil
	c.inboxMu.Unlock()

	for _, fn := range fns {
		c.safeRun("posted function", fn)
	}
}

// Tick runs one frame: posted work, Start, FixedUpdate, Update, LateUpdate
// and then the coroutine pass.
func (c *Controller) Tick(now time.Time) {
	if c.ticking {
		c.logger.Warn("script: nested tick ignored")
		return
	}
	start := time.Now()

	c.frame = c.frame.next(now, c.timer.Delta(now))
	c.drainInbox()

	c.ticking = true
	n := len(c.instances)

	for i := 0; i < n; i++ {
		inst := c.instances[i]
		if inst.state != Enabled {
			continue
		}
		inst.state = Started
		if inst.started {
			continue
		}
		inst.started = true
		c.invoke(inst, "Start", func(ctx *Context) error {
			if s, ok := inst.behaviour.(Starter); ok {
				return s.Start(ctx)
			}
			return nil
		})
	}

	if c.fixedStep > 0 {
		c.fixedAccum += c.frame.DeltaTime
		steps := 0
		for c.fixedAccum >= c.fixedStep && steps < maxFixedSteps {
			c.fixedAccum -= c.fixedStep
			steps++
			for i := 0; i < n; i++ {
				inst := c.instances[i]
				if inst.state != Started {
					continue
				}
				if f, ok := inst.behaviour.(FixedUpdater); ok {
					c.invoke(inst, "FixedUpdate", f.FixedUpdate)
				}
			}
		}
		if c.fixedAccum >= c.fixedStep {
			c.fixedAccum = 0
		}
	}

	for i := 0; i < n; i++ {
		inst := c.instances[i]
		if inst.state != Started {
			continue
		}
		inst.state = Updating
		if u, ok := inst.behaviour.(Updater); ok {
			c.invoke(inst, "Update", u.Update)
		}
	}

	for i := 0; i < n; i++ {
		inst := c.instances[i]
		if inst.state != Updating {
			continue
		}
		if l, ok := inst.behaviour.(LateUpdater); ok {
			c.invoke(inst, "LateUpdate", l.LateUpdate)
		}
	}

	for i := 0; i < n; i++ {
		if inst := c.instances[i]; inst.state == Updating {
			inst.state = Started
		}
	}

	c.depth++
	c.scheduler.Tick(now)
	c.depth--
	c.flush()

	c.ticking = false
	c.compact()
	c.ticks.record(time.Since(start))
}

// Once runs a single tick at the controller clock's current time.
func (c *Controller) Once() {
	c.Tick(c.clock.Now())
}

// Run ticks at the given interval until the context is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Once()
		}
	}
}

// Find returns the live instance attached to object under name.
func (c *Controller) Find(object ObjectID, name string) (*Instance, bool) {
	inst, ok := c.byKey[instanceKey{object: object, name: name}]
	return inst, ok
}

// FindByName resolves objectName through the object resolver and returns
// the instance attached under scriptName.
func (c *Controller) FindByName(objectName, scriptName string) (*Instance, bool) {
	id, ok := c.lookupObject(objectName)
	if !ok {
		return nil, false
	}
	return c.Find(id, scriptName)
}

// Lookup returns the instance with the given identifier.
func (c *Controller) Lookup(id uuid.UUID) (*Instance, bool) {
	inst, ok := c.byID[id]
	return inst, ok
}

// Instances returns every instance not yet destroyed, in registration order.
func (c *Controller) Instances() []*Instance {
	out := make([]*Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		if inst.state != Destroyed {
			out = append(out, inst)
		}
	}
	return out
}

// ObjectInstances returns the instances attached to object.
func (c *Controller) ObjectInstances(object ObjectID) []*Instance {
	var out []*Instance
	for _, inst := range c.instances {
		if inst.object == object && inst.state != Destroyed {
			out = append(out, inst)
		}
	}
	return out
}

// Ref returns a lazily resolved reference to scriptName on objectName.
func (c *Controller) Ref(objectName, scriptName string) ScriptRef {
	return c.ref(objectName, scriptName)
}

func (c *Controller) ref(objectName, scriptName string) ScriptRef {
	r := ScriptRef{ObjectName: objectName, Script: scriptName, c: c}
	if id, ok := c.lookupObject(objectName); ok {
		r.Object = id
	}
	return r
}

func (c *Controller) lookupObject(name string) (ObjectID, bool) {
	if c.objects == nil || name == "" {
		return 0, false
	}
	return c.objects.LookupObject(name)
}

func (c *Controller) objectName(id ObjectID) (string, bool) {
	if c.objects == nil {
		return "", false
	}
	return c.objects.ObjectName(id)
}
