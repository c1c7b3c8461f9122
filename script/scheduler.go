package script

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kamstrup/intmap"
)

// Handle identifies one in-flight coroutine. The zero Handle is never issued.
type Handle uint64

// Throttle is the minimum time between two resumptions of one coroutine.
type Throttle struct {
	Interval time.Duration
}

// Millis returns a Throttle of ms milliseconds.
func Millis(ms int) Throttle {
	return Throttle{Interval: time.Duration(ms) * time.Millisecond}
}

// Every returns a Throttle of d.
func Every(d time.Duration) Throttle {
	return Throttle{Interval: d}
}

// Continuation receives what a coroutine produces. Any field may be nil.
// A nil Failed routes failures to the owner's ErrorSink, if it has one.
type Continuation struct {
	Produced  func(h Handle, v any)
	Completed func(h Handle, result any)
	Failed    func(h Handle, err error)
}

// SchedulerStats provides statistics about coroutine execution.
type SchedulerStats struct {
	Active       int
	Started      int64
	Completed    int64
	Failed       int64
	Cancelled    int64
	Resumes      int64
	TickCount    int64
	LastDuration time.Duration
	MaxDuration  time.Duration
}

// CoroutineInfo is a point-in-time view of one registered coroutine.
type CoroutineInfo struct {
	Handle      Handle
	Owner       string
	OwnerID     uuid.UUID
	Label       string
	Throttle    time.Duration
	StartedAt   time.Time
	LastResumed time.Time
	ReadyAt     time.Time
	Resumes     int64
	Produced    int64
}

type coroutine struct {
	handle   Handle
	owner    *Instance
	seq      Sequence
	throttle Throttle
	cont     Continuation

	startedAt   time.Time
	lastResumed time.Time
	readyAt     time.Time
	resumes     int64
	produced    int64

	done        bool
	resuming    bool
	stopPending bool
}

// Scheduler multiplexes coroutines onto the single tick goroutine.
// It is not safe for concurrent use; all calls must come from the goroutine
// that drives Tick.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	next    Handle
	order   []*coroutine
	index   *intmap.Map[Handle, *coroutine]
	ticking bool
	dirty   bool

	// afterResume runs after each resume and its continuation. The
	// controller uses it to apply lifecycle calls they queued.
	afterResume func()

	stats SchedulerStats
}

// NewScheduler creates a scheduler reading time from clock.
func NewScheduler(clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger,
		order:  make([]*coroutine, 0, 64),
		index:  intmap.New[Handle, *coroutine](64),
	}
}

// Start registers seq for owner, ready to run on the next Tick.
// Coroutines started while a Tick is in progress are first resumed on the
// following Tick.
func (s *Scheduler) Start(owner *Instance, seq Sequence, throttle Throttle, cont Continuation) (Handle, error) {
	if owner == nil {
		return 0, &OwnerStateError{Instance: "<nil>", State: Destroyed}
	}
	if !owner.state.Live() || owner.destroying {
		return 0, &OwnerStateError{Instance: owner.String(), State: owner.state}
	}
	if seq == nil {
		return 0, fmt.Errorf("script: start coroutine on %s: nil sequence", owner)
	}
	if throttle.Interval < 0 {
		throttle.Interval = 0
	}

	s.next++
	now := s.clock.Now()
	co := &coroutine{
		handle:    s.next,
		owner:     owner,
		seq:       seq,
		throttle:  throttle,
		cont:      cont,
		startedAt: now,
		readyAt:   now,
	}

	s.order = append(s.order, co)
	s.index.Put(co.handle, co)
	owner.handles = append(owner.handles, co.handle)
	s.stats.Started++

	return co.handle, nil
}

// Cancel removes the coroutine without resuming it again.
// Unknown, completed and already-cancelled handles are ignored.
// It reports whether a live coroutine was cancelled.
func (s *Scheduler) Cancel(h Handle) bool {
	co, ok := s.index.Get(h)
	if !ok {
		return false
	}
	s.cancel(co)
	return true
}

// CancelOwner cancels every coroutine owned by inst in start order and
// returns how many were cancelled.
func (s *Scheduler) CancelOwner(inst *Instance) int {
	if inst == nil || len(inst.handles) == 0 {
		return 0
	}
	handles := slices.Clone(inst.handles)
	cancelled := 0
	for _, h := range handles {
		if s.Cancel(h) {
			cancelled++
		}
	}
	return cancelled
}

func (s *Scheduler) cancel(co *coroutine) {
	s.deregister(co)
	s.stats.Cancelled++
	if co.resuming {
		co.stopPending = true
		return
	}
	s.stopSequence(co)
}

// Alive reports whether h is still registered.
func (s *Scheduler) Alive(h Handle) bool {
	_, ok := s.index.Get(h)
	return ok
}

// Lookup returns a snapshot of the coroutine registered under h.
func (s *Scheduler) Lookup(h Handle) (CoroutineInfo, error) {
	co, ok := s.index.Get(h)
	if !ok {
		return CoroutineInfo{}, fmt.Errorf("lookup %d: %w", h, ErrUnknownHandle)
	}
	return co.info(), nil
}

// Len returns the number of registered coroutines.
func (s *Scheduler) Len() int {
	return s.index.Len()
}

// Coroutines returns snapshots of all registered coroutines in FIFO order.
func (s *Scheduler) Coroutines() []CoroutineInfo {
	out := make([]CoroutineInfo, 0, s.index.Len())
	for _, co := range s.order {
		if co.done {
			continue
		}
		out = append(out, co.info())
	}
	return out
}

// Tick resumes every coroutine whose throttle has elapsed, in registration order.
func (s *Scheduler) Tick(now time.Time) {
	if s.ticking {
		s.logger.Warn("script: nested scheduler tick ignored")
		return
	}

	start := time.Now()
	s.ticking = true
	s.compact()

	n := len(s.order)
	for i := 0; i < n; i++ {
		co := s.order[i]
		if co.done || now.Before(co.readyAt) {
			continue
		}
		if !co.owner.state.Live() {
			s.cancel(co)
			continue
		}
		s.resume(co, now)
		if s.afterResume != nil {
			s.afterResume()
		}
	}

	s.ticking = false
	s.compact()

	duration := time.Since(start)
	s.stats.TickCount++
	s.stats.LastDuration = duration
	if duration > s.stats.MaxDuration {
		s.stats.MaxDuration = duration
	}
}

// Stats returns statistics about coroutine execution.
func (s *Scheduler) Stats() SchedulerStats {
	stats := s.stats
	stats.Active = s.index.Len()
	return stats
}

func (s *Scheduler) resume(co *coroutine, now time.Time) {
	co.resuming = true
	step := s.safeResume(co, now)
	co.resuming = false

	co.lastResumed = now
	co.resumes++
	s.stats.Resumes++

	if co.done {
		if co.stopPending {
			s.stopSequence(co)
		}
		return
	}

	switch step.Kind {
	case StepPending:
		co.readyAt = now.Add(co.throttle.Interval)

	case StepProduced:
		co.readyAt = now.Add(max(step.Wait, co.throttle.Interval))
		co.produced++
		if co.cont.Produced != nil {
			s.dispatch(co, "Produced", func() { co.cont.Produced(co.handle, step.Value) })
		}

	case StepCompleted:
		s.deregister(co)
		s.stopSequence(co)
		s.stats.Completed++
		if co.cont.Completed != nil {
			s.dispatch(co, "Completed", func() { co.cont.Completed(co.handle, step.Value) })
		}

	default:
		err := step.Err
		if step.Kind != StepFailed {
			err = fmt.Errorf("unknown step kind %d", step.Kind)
		}
		if err == nil {
			err = errors.New("sequence failed without an error")
		}
		s.deregister(co)
		s.stopSequence(co)
		s.fail(co, &SequenceError{Handle: co.handle, Owner: co.owner.String(), Err: err})
	}
}

func (s *Scheduler) safeResume(co *coroutine, now time.Time) (step Step) {
	defer func() {
		if r := recover(); r != nil {
			step = Fail(panicError(r))
		}
	}()
	return co.seq.Resume(now)
}

func (s *Scheduler) fail(co *coroutine, err *SequenceError) {
	s.stats.Failed++
	s.logger.Error("script: coroutine failed",
		append(co.owner.logAttrs(), "handle", co.handle, "error", err.Err)...)

	if co.cont.Failed != nil {
		s.dispatch(co, "Failed", func() { co.cont.Failed(co.handle, err) })
		return
	}
	if sink, ok := co.owner.behaviour.(ErrorSink); ok {
		s.dispatch(co, "CoroutineFailed", func() { sink.CoroutineFailed(co.owner.ctx, co.handle, err) })
	}
}

// dispatch runs a continuation, containing any panic it raises.
func (s *Scheduler) dispatch(co *coroutine, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("script: continuation panicked",
				append(co.owner.logAttrs(), "handle", co.handle, "continuation", what, "error", panicError(r))...)
		}
	}()
	fn()
}

func (s *Scheduler) deregister(co *coroutine) {
	if co.done {
		return
	}
	co.done = true
	s.index.Del(co.handle)
	co.owner.dropHandle(co.handle)
	s.dirty = true
}

func (s *Scheduler) stopSequence(co *coroutine) {
	co.stopPending = false
	stopper, ok := co.seq.(Stopper)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("script: sequence stop panicked",
				append(co.owner.logAttrs(), "handle", co.handle, "error", panicError(r))...)
		}
	}()
	stopper.Stop()
}

// compact drops finished coroutines while keeping registration order.
func (s *Scheduler) compact() {
	if !s.dirty || s.ticking {
		return
	}
	write := 0
	for _, co := range s.order {
		if !co.done {
			s.order[write] = co
			write++
		}
	}
	for i := write; i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = s.order[:write]
	s.dirty = false
}

func (co *coroutine) info() CoroutineInfo {
	label := ""
	if named, ok := co.seq.(fmt.Stringer); ok {
		label = named.String()
	}
	return CoroutineInfo{
		Handle:      co.handle,
		Owner:       co.owner.String(),
		OwnerID:     co.owner.id,
		Label:       label,
		Throttle:    co.throttle.Interval,
		StartedAt:   co.startedAt,
		LastResumed: co.lastResumed,
		ReadyAt:     co.readyAt,
		Resumes:     co.resumes,
		Produced:    co.produced,
	}
}
