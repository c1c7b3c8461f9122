package script

import (
	"time"

	"github.com/google/uuid"
)

// ControllerStats provides statistics about controller execution.
type ControllerStats struct {
	InstanceCount int
	TickCount     int64
	LastTick      time.Duration
	MaxTick       time.Duration
	AvgTick       time.Duration
	Instances     []InstanceStats
	Scheduler     SchedulerStats
}

// InstanceStats provides execution statistics for a single instance.
type InstanceStats struct {
	ID          uuid.UUID
	Object      ObjectID
	Name        string
	State       State
	Coroutines  int
	UpdateCount int64
	MinUpdate   time.Duration
	MaxUpdate   time.Duration
	AvgUpdate   time.Duration
	LastUpdate  time.Duration
	Failures    int64
}

type tickStats struct {
	count int64
	total time.Duration
	last  time.Duration
	max   time.Duration
}

func (s *tickStats) record(d time.Duration) {
	s.count++
	s.total += d
	s.last = d
	if d > s.max {
		s.max = d
	}
}

// Stats returns statistics about instance and coroutine execution.
func (c *Controller) Stats() ControllerStats {
	stats := ControllerStats{
		TickCount: c.ticks.count,
		LastTick:  c.ticks.last,
		MaxTick:   c.ticks.max,
		Scheduler: c.scheduler.Stats(),
	}
	if c.ticks.count > 0 {
		stats.AvgTick = c.ticks.total / time.Duration(c.ticks.count)
	}

	for _, inst := range c.instances {
		if inst.state == Destroyed {
			continue
		}
		internal := inst.stats
		avg := time.Duration(0)
		if internal.updateCount > 0 {
			avg = internal.totalUpdate / time.Duration(internal.updateCount)
		}
		stats.Instances = append(stats.Instances, InstanceStats{
			ID:          inst.id,
			Object:      inst.object,
			Name:        inst.name,
			State:       inst.state,
			Coroutines:  len(inst.handles),
			UpdateCount: internal.updateCount,
			MinUpdate:   internal.minUpdate,
			MaxUpdate:   internal.maxUpdate,
			AvgUpdate:   avg,
			LastUpdate:  internal.lastUpdate,
			Failures:    internal.failures,
		})
	}
	stats.InstanceCount = len(stats.Instances)
	return stats
}
