package script_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/plus3/scripthost/script"
	"github.com/stretchr/testify/assert"
)

func drain(seq script.Sequence, limit int) []script.Step {
	var steps []script.Step
	for range limit {
		step := seq.Resume(epoch)
		steps = append(steps, step)
		if step.Kind == script.StepCompleted || step.Kind == script.StepFailed {
			break
		}
	}
	return steps
}

func TestSequences(t *testing.T) {
	t.Run("values", func(t *testing.T) {
		steps := drain(script.Values("a", "b"), 10)
		assert.Equal(t, []script.Step{script.Yield("a"), script.Yield("b"), script.Complete(nil)}, steps)
	})

	t.Run("from seq", func(t *testing.T) {
		steps := drain(script.FromSeq(slices.Values([]int{1, 2})), 10)
		assert.Equal(t, []script.Step{script.Yield(1), script.Yield(2), script.Complete(nil)}, steps)
	})

	t.Run("from steps reads top to bottom", func(t *testing.T) {
		boom := errors.New("boom")
		seq := script.FromSteps(func(yield func(script.Step) bool) {
			if !yield(script.YieldAfter("warmup", time.Second)) {
				return
			}
			if !yield(script.Pending()) {
				return
			}
			yield(script.Fail(boom))
		})

		steps := drain(seq, 10)
		assert.Equal(t, []script.Step{
			script.YieldAfter("warmup", time.Second),
			script.Pending(),
			script.Fail(boom),
		}, steps)

		assert.Equal(t, script.Complete(nil), seq.Resume(epoch), "finished sequences stay complete")
	})

	t.Run("step kinds print", func(t *testing.T) {
		assert.Equal(t, "Produced", script.StepProduced.String())
		assert.Equal(t, "Unknown", script.StepKind(42).String())
	})
}

func TestManualClock(t *testing.T) {
	clock := script.NewManualClock(epoch)
	assert.Equal(t, epoch.Add(time.Second), clock.Advance(time.Second))
	assert.Equal(t, epoch.Add(time.Second), clock.Advance(-time.Hour))

	clock.Set(epoch)
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, time.Second, clock.ElapsedSince(epoch))

	var timer script.FrameTimer
	assert.Equal(t, time.Duration(0), timer.Delta(epoch))
	assert.Equal(t, 10*time.Millisecond, timer.Delta(epoch.Add(10*time.Millisecond)))
	assert.Equal(t, time.Duration(0), timer.Delta(epoch))
}
