package script

import (
	"iter"
	"time"
)

// StepKind classifies the outcome of a single resumption.
type StepKind uint8

const (
	// StepPending means the sequence is not ready yet and produced nothing.
	StepPending StepKind = iota

	// StepProduced carries a value; the sequence stays registered.
	StepProduced

	// StepCompleted carries the final result; the sequence is deregistered.
	StepCompleted

	// StepFailed carries an error; the sequence is deregistered.
	StepFailed
)

func (k StepKind) String() string {
	switch k {
	case StepPending:
		return "Pending"
	case StepProduced:
		return "Produced"
	case StepCompleted:
		return "Completed"
	case StepFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Step is the result of resuming a Sequence once.
type Step struct {
	Kind  StepKind
	Value any
	// Wait asks the scheduler not to resume again for at least this long.
	// The throttle interval still applies; the larger of the two wins.
	Wait time.Duration
	Err  error
}

// Pending reports that the sequence is waiting on something external.
func Pending() Step { return Step{Kind: StepPending} }

// Yield produces v and pauses until the throttle interval elapses.
func Yield(v any) Step { return Step{Kind: StepProduced, Value: v} }

// YieldAfter produces v and sleeps for at least wait.
func YieldAfter(v any, wait time.Duration) Step {
	return Step{Kind: StepProduced, Value: v, Wait: wait}
}

// Complete ends the sequence with a final result.
func Complete(result any) Step { return Step{Kind: StepCompleted, Value: result} }

// Fail ends the sequence with an error.
func Fail(err error) Step { return Step{Kind: StepFailed, Err: err} }

// Sequence is a resumable computation advanced one step per Resume call.
// Implementations keep their own local state between calls.
type Sequence interface {
	Resume(now time.Time) Step
}

// Stopper is implemented by sequences holding resources that must be released
// when the scheduler drops them early or after they finish.
type Stopper interface {
	Stop()
}

// SequenceFunc adapts a step function to the Sequence interface.
type SequenceFunc func(now time.Time) Step

func (f SequenceFunc) Resume(now time.Time) Step { return f(now) }

// Values returns a sequence producing each value in turn, then completing
// with a nil result.
func Values(vals ...any) Sequence {
	return &valueSequence{vals: vals}
}

type valueSequence struct {
	vals []any
	next int
}

func (s *valueSequence) Resume(time.Time) Step {
	if s.next >= len(s.vals) {
		return Complete(nil)
	}
	v := s.vals[s.next]
	s.next++
	return Yield(v)
}

// FromSteps runs a push-style step iterator as a pull-style Sequence.
// The iterator body reads top to bottom; each yielded Step is one suspension
// point. When the iterator returns the sequence completes with a nil result.
func FromSteps(seq iter.Seq[Step]) Sequence {
	next, stop := iter.Pull(seq)
	return &pullSequence{next: next, stop: stop}
}

// FromSeq produces every value of seq, one per resumption.
func FromSeq[T any](seq iter.Seq[T]) Sequence {
	return FromSteps(func(yield func(Step) bool) {
		for v := range seq {
			if !yield(Yield(v)) {
				return
			}
		}
	})
}

type pullSequence struct {
	next func() (Step, bool)
	stop func()
	done bool
}

func (p *pullSequence) Resume(time.Time) Step {
	if p.done {
		return Complete(nil)
	}
	step, ok := p.next()
	if !ok {
		p.Stop()
		return Complete(nil)
	}
	if step.Kind == StepCompleted || step.Kind == StepFailed {
		p.Stop()
	}
	return step
}

func (p *pullSequence) Stop() {
	p.done = true
	p.stop()
}
