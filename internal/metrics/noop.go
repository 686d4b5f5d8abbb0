package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                  {}
func (n *NoopSink) TickCompleted(duration time.Duration, fired int)               {}
func (n *NoopSink) TaskScheduled(kind string)                                     {}
func (n *NoopSink) TaskRevoked(kind string)                                       {}
func (n *NoopSink) TasksRegisteredUpdate(count int)                               {}
func (n *NoopSink) HandlerCompleted(handler string, d time.Duration, err error)   {}
func (n *NoopSink) FiresInFlightIncr()                                            {}
func (n *NoopSink) FiresInFlightDecr()                                            {}
func (n *NoopSink) BufferSizeUpdate(size int)                                     {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                {}
func (n *NoopSink) EmitError()                                                    {}
func (n *NoopSink) ResyncCycleCompleted(duration time.Duration, restored int)     {}
func (n *NoopSink) NotifyAttemptCompleted(statusClass string, d time.Duration)    {}
func (n *NoopSink) NotifySkipped(reason string)                                   {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                             {}
func (n *NoopSink) LeaderAcquired()                                               {}
func (n *NoopSink) LeaderLost(reason string)                                      {}
