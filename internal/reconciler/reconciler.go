// Package reconciler periodically re-derives the scheduler's task table
// from persisted records.
//
// The task table lives in memory, so a restart loses every registration
// while records still hold the refs they persisted. Each cycle asks the
// managers to resync: revoke refs that are no longer live, register the
// tasks the records require, and persist fresh refs. The first cycle
// runs immediately on startup, which is what rebuilds the table after a
// restart.
package reconciler

import (
	"context"
	"log"
	"time"
)

// Resyncer re-derives one record family's task set. Implemented by the
// lifecycle, generator and pool managers.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// MetricsSink defines the interface for recording reconciler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ResyncCycleCompleted(duration time.Duration, restored int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often a resync cycle runs. Default: 5 minutes.
	Interval time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

// Reconciler drives the resync cycle over a set of resyncers.
type Reconciler struct {
	config    Config
	resyncers []Resyncer
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

// New creates a Reconciler over the given resyncers. Order matters only
// for logging; each resyncer fails independently.
func New(config Config, resyncers ...Resyncer) *Reconciler {
	return &Reconciler{
		config:    config,
		resyncers: resyncers,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the resync loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s)", r.config.Interval)

	// Rebuild the table immediately, then keep it honest on the ticker.
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// RunOnce executes a single resync cycle, for callers that want the
// startup rebuild without the loop.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.runCycle(ctx)
}

func (r *Reconciler) runCycle(ctx context.Context) {
	started := r.clock()
	restored := 0

	for _, rs := range r.resyncers {
		if ctx.Err() != nil {
			log.Println("reconciler: cycle interrupted")
			return
		}
		n, err := rs.Resync(ctx)
		if err != nil {
			// Likely a store error; the next cycle retries.
			log.Printf("reconciler: resync failed: %v", err)
			continue
		}
		restored += n
	}

	duration := r.clock().Sub(started)
	if restored > 0 {
		log.Printf("reconciler: cycle complete, restored=%d in %s", restored, duration.Round(time.Millisecond))
	}
	if r.metrics != nil {
		r.metrics.ResyncCycleCompleted(duration, restored)
	}
}
