package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickStarted()
	TickCompleted(duration time.Duration, fired int)
	TaskScheduled(kind string)
	TaskRevoked(kind string)
	TasksRegisteredUpdate(count int)

	// Runner metrics
	HandlerCompleted(handler string, duration time.Duration, err error)
	FiresInFlightIncr()
	FiresInFlightDecr()

	// TaskBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()

	// Reconciler metrics
	ResyncCycleCompleted(duration time.Duration, restored int)

	// Notifier metrics
	NotifyAttemptCompleted(statusClass string, duration time.Duration)
	NotifySkipped(reason string)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// StatusClass constants for NotifyAttemptCompleted.
const (
	StatusClass2xx   = "2xx"
	StatusClass4xx   = "4xx"
	StatusClass5xx   = "5xx"
	StatusClassError = "error"
	StatusClassOther = "other"
)
