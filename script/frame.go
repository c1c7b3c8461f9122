package script

import "time"

// Frame describes the tick currently being processed.
type Frame struct {
	Index     uint64
	Now       time.Time
	DeltaTime time.Duration
}

// Seconds returns the frame delta in seconds.
func (f Frame) Seconds() float64 {
	return f.DeltaTime.Seconds()
}

func (f Frame) next(now time.Time, dt time.Duration) Frame {
	return Frame{
		Index:     f.Index + 1,
		Now:       now,
		DeltaTime: dt,
	}
}
