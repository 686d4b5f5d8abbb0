package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal          prometheus.Counter
	firesTotal          prometheus.Counter
	tickDuration        prometheus.Histogram
	tasksScheduledTotal *prometheus.CounterVec
	tasksRevokedTotal   *prometheus.CounterVec
	tasksRegistered     prometheus.Gauge

	// Runner metrics
	handlersTotal   *prometheus.CounterVec
	handlerDuration prometheus.Histogram
	firesInFlight   prometheus.Gauge

	// TaskBus metrics
	bufferSize      prometheus.Gauge
	bufferCapacity  prometheus.Gauge
	emitErrorsTotal prometheus.Counter

	// Reconciler metrics
	resyncCyclesTotal   prometheus.Counter
	resyncRestoredTotal prometheus.Counter
	resyncDuration      prometheus.Histogram

	// Notifier metrics
	notifyAttemptsTotal *prometheus.CounterVec
	notifySkippedTotal  *prometheus.CounterVec
	notifyDuration      prometheus.Histogram

	// Leader election metrics
	leaderStatus            prometheus.Gauge
	leaderAcquisitionsTotal prometheus.Counter
	leaderLossesTotal       *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initRunnerMetrics(reg)
	s.initTaskBusMetrics(reg)
	s.initReconcilerMetrics(reg)
	s.initNotifierMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.firesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_scheduler_fires_total",
		Help: "Total number of task fires emitted.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcron_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.tasksScheduledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_scheduler_tasks_scheduled_total",
		Help: "Total number of tasks registered.",
	}, []string{"kind"})
	s.tasksRevokedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_scheduler_tasks_revoked_total",
		Help: "Total number of tasks revoked or removed.",
	}, []string{"kind"})
	s.tasksRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventcron_scheduler_tasks_registered",
		Help: "Number of tasks currently in the task table.",
	})

	s.register(reg, s.ticksTotal, "eventcron_scheduler_ticks_total")
	s.register(reg, s.firesTotal, "eventcron_scheduler_fires_total")
	s.register(reg, s.tickDuration, "eventcron_scheduler_tick_duration_seconds")
	s.register(reg, s.tasksScheduledTotal, "eventcron_scheduler_tasks_scheduled_total")
	s.register(reg, s.tasksRevokedTotal, "eventcron_scheduler_tasks_revoked_total")
	s.register(reg, s.tasksRegistered, "eventcron_scheduler_tasks_registered")
}

func (s *PrometheusSink) initRunnerMetrics(reg prometheus.Registerer) {
	s.handlersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_runner_handlers_total",
		Help: "Total number of handler invocations.",
	}, []string{"handler", "outcome"})
	s.handlerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcron_runner_handler_duration_seconds",
		Help:    "Handler execution latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	s.firesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventcron_runner_fires_in_flight",
		Help: "Number of fires currently being processed.",
	})

	s.register(reg, s.handlersTotal, "eventcron_runner_handlers_total")
	s.register(reg, s.handlerDuration, "eventcron_runner_handler_duration_seconds")
	s.register(reg, s.firesInFlight, "eventcron_runner_fires_in_flight")
}

func (s *PrometheusSink) initTaskBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventcron_taskbus_buffer_size",
		Help: "Current number of fires in the task bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventcron_taskbus_buffer_capacity",
		Help: "Configured capacity of the task bus buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_taskbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "eventcron_taskbus_buffer_size")
	s.register(reg, s.bufferCapacity, "eventcron_taskbus_buffer_capacity")
	s.register(reg, s.emitErrorsTotal, "eventcron_taskbus_emit_errors_total")
}

func (s *PrometheusSink) initReconcilerMetrics(reg prometheus.Registerer) {
	s.resyncCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_reconciler_cycles_total",
		Help: "Total number of resync cycles completed.",
	})
	s.resyncRestoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_reconciler_restored_total",
		Help: "Total number of tasks restored by resync cycles.",
	})
	s.resyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcron_reconciler_cycle_duration_seconds",
		Help:    "Duration of each resync cycle in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	s.register(reg, s.resyncCyclesTotal, "eventcron_reconciler_cycles_total")
	s.register(reg, s.resyncRestoredTotal, "eventcron_reconciler_restored_total")
	s.register(reg, s.resyncDuration, "eventcron_reconciler_cycle_duration_seconds")
}

func (s *PrometheusSink) initNotifierMetrics(reg prometheus.Registerer) {
	s.notifyAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_notify_attempts_total",
		Help: "Total number of notification delivery attempts.",
	}, []string{"status_class"})
	s.notifySkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_notify_skipped_total",
		Help: "Total number of notifications dropped before sending.",
	}, []string{"reason"})
	s.notifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventcron_notify_duration_seconds",
		Help:    "Notification request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.register(reg, s.notifyAttemptsTotal, "eventcron_notify_attempts_total")
	s.register(reg, s.notifySkippedTotal, "eventcron_notify_skipped_total")
	s.register(reg, s.notifyDuration, "eventcron_notify_duration_seconds")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventcron_leader_status",
		Help: "Whether this instance currently holds leadership (1 or 0).",
	})
	s.leaderAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventcron_leader_acquisitions_total",
		Help: "Total number of times leadership was acquired.",
	})
	s.leaderLossesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventcron_leader_losses_total",
		Help: "Total number of times leadership was lost.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "eventcron_leader_status")
	s.register(reg, s.leaderAcquisitionsTotal, "eventcron_leader_acquisitions_total")
	s.register(reg, s.leaderLossesTotal, "eventcron_leader_losses_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, fired int) {
	s.tickDuration.Observe(duration.Seconds())
	s.firesTotal.Add(float64(fired))
}

func (s *PrometheusSink) TaskScheduled(kind string) {
	s.tasksScheduledTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) TaskRevoked(kind string) {
	s.tasksRevokedTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) TasksRegisteredUpdate(count int) {
	s.tasksRegistered.Set(float64(count))
}

// Runner metrics implementation

func (s *PrometheusSink) HandlerCompleted(handler string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.handlersTotal.WithLabelValues(handler, outcome).Inc()
	s.handlerDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) FiresInFlightIncr() {
	s.firesInFlight.Inc()
}

func (s *PrometheusSink) FiresInFlightDecr() {
	s.firesInFlight.Dec()
}

// TaskBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) ResyncCycleCompleted(duration time.Duration, restored int) {
	s.resyncCyclesTotal.Inc()
	s.resyncRestoredTotal.Add(float64(restored))
	s.resyncDuration.Observe(duration.Seconds())
}

// Notifier metrics implementation

func (s *PrometheusSink) NotifyAttemptCompleted(statusClass string, duration time.Duration) {
	s.notifyAttemptsTotal.WithLabelValues(statusClass).Inc()
	s.notifyDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) NotifySkipped(reason string) {
	s.notifySkippedTotal.WithLabelValues(reason).Inc()
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquisitionsTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLossesTotal.WithLabelValues(reason).Inc()
}
