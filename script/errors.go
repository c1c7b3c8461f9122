package script

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOwnerState is returned by Start when the owning instance is not live.
	ErrInvalidOwnerState = errors.New("script: owner not in a live state")

	// ErrSequenceFailure marks errors raised while resuming a coroutine.
	ErrSequenceFailure = errors.New("script: sequence failure")

	// ErrCallbackFailure marks errors raised inside a lifecycle callback.
	ErrCallbackFailure = errors.New("script: callback failure")

	// ErrUnknownHandle is returned by lookups on a handle that is no longer registered.
	// Cancel never returns it.
	ErrUnknownHandle = errors.New("script: unknown coroutine handle")

	// ErrInvalidTransition is returned when a lifecycle operation is not legal
	// from the instance's current state.
	ErrInvalidTransition = errors.New("script: invalid lifecycle transition")

	// ErrDuplicateInstance is returned by Register when the object already carries
	// a script with the same name.
	ErrDuplicateInstance = errors.New("script: duplicate script on object")
)

// OwnerStateError reports a coroutine start against a non-live instance.
type OwnerStateError struct {
	Instance string
	State    State
}

func (e *OwnerStateError) Error() string {
	return fmt.Sprintf("script: start coroutine on %s in state %s", e.Instance, e.State)
}

func (e *OwnerStateError) Unwrap() error { return ErrInvalidOwnerState }

// SequenceError wraps an error raised while resuming a coroutine.
type SequenceError struct {
	Handle Handle
	Owner  string
	Err    error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("script: coroutine %d of %s failed: %v", e.Handle, e.Owner, e.Err)
}

func (e *SequenceError) Unwrap() []error { return []error{ErrSequenceFailure, e.Err} }

// CallbackError wraps an error raised inside a lifecycle callback.
type CallbackError struct {
	Instance string
	Callback string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("script: %s.%s failed: %v", e.Instance, e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() []error { return []error{ErrCallbackFailure, e.Err} }

// TransitionError reports an illegal lifecycle operation.
type TransitionError struct {
	Instance string
	Op       string
	From     State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("script: cannot %s %s from state %s", e.Op, e.Instance, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
