package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_AllMethodsSafe(t *testing.T) {
	// Every method must be callable without side effects or panics.
	s := NewNoopSink()

	s.TickStarted()
	s.TickCompleted(time.Second, 3)
	s.TaskScheduled("oneshot")
	s.TaskRevoked("recurring")
	s.TasksRegisteredUpdate(10)
	s.HandlerCompleted("event.start", time.Millisecond, nil)
	s.FiresInFlightIncr()
	s.FiresInFlightDecr()
	s.BufferSizeUpdate(5)
	s.BufferCapacitySet(100)
	s.EmitError()
	s.ResyncCycleCompleted(time.Second, 1)
	s.NotifyAttemptCompleted(StatusClass2xx, time.Millisecond)
	s.NotifySkipped("circuit_open")
	s.LeaderStatusChanged(true)
	s.LeaderAcquired()
	s.LeaderLost("shutdown")
}
