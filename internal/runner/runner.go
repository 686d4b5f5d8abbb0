// Package runner consumes task fires from the bus and invokes the
// registered handler by name. Handler failures are isolated per
// invocation: they are logged and never stop the consume loop.
package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/eventcron/internal/domain"
)

// HandlerFunc executes one fired task. arg is the serialized argument
// stored at registration time (a record id); the handler reloads current
// record state rather than trusting anything captured earlier.
type HandlerFunc func(ctx context.Context, arg string) error

// MetricsSink defines the interface for recording runner metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	HandlerCompleted(handler string, duration time.Duration, err error)
	FiresInFlightIncr()
	FiresInFlightDecr()
}

// DefaultDrainTimeout is the maximum time to wait for buffered fires
// during shutdown unless overridden with WithDrainTimeout.
const DefaultDrainTimeout = 30 * time.Second

// Runner resolves fired tasks against a handler registry.
type Runner struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	drainTimeout time.Duration
	metrics      MetricsSink // optional, nil = disabled
}

// New creates an empty Runner. Handlers are added with Register before Run.
func New() *Runner {
	return &Runner{
		handlers:     make(map[string]HandlerFunc),
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithMetrics attaches a metrics sink to the runner.
func (r *Runner) WithMetrics(sink MetricsSink) *Runner {
	r.metrics = sink
	return r
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (r *Runner) WithDrainTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.drainTimeout = d
	}
	return r
}

// Register binds a handler name to a function. Names must be unique;
// they are the stable identity that survives process restarts.
func (r *Runner) Register(name string, fn HandlerFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("runner: invalid handler registration %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("runner: handler %q already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

// Run processes fires from the channel until ctx is cancelled, then
// drains remaining buffered fires with a timeout.
func (r *Runner) Run(ctx context.Context, ch <-chan domain.TaskFire) {
	log.Println("runner: started")
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			log.Println("runner: stopped")
			return
		case fire := <-ch:
			r.invoke(ctx, fire)
		}
	}
}

// drain processes remaining fires after the shutdown signal, using a
// background context since the main one is already cancelled.
func (r *Runner) drain(ch <-chan domain.TaskFire) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			log.Printf("runner: drain timeout, processed %d fires", count)
			return
		case fire, ok := <-ch:
			if !ok {
				log.Printf("runner: drain complete, processed %d fires", count)
				return
			}
			r.invoke(drainCtx, fire)
			count++
		default:
			if count > 0 {
				log.Printf("runner: drain complete, processed %d fires", count)
			}
			return
		}
	}
}

func (r *Runner) invoke(ctx context.Context, fire domain.TaskFire) {
	r.mu.RLock()
	fn, ok := r.handlers[fire.Handler]
	r.mu.RUnlock()

	if !ok {
		log.Printf("runner: no handler registered for %q (task=%s)", fire.Handler, fire.TaskID)
		return
	}

	if r.metrics != nil {
		r.metrics.FiresInFlightIncr()
		defer r.metrics.FiresInFlightDecr()
	}

	started := time.Now()
	err := fn(ctx, fire.Arg)
	if r.metrics != nil {
		r.metrics.HandlerCompleted(fire.Handler, time.Since(started), err)
	}
	if err != nil {
		log.Printf("runner: handler=%s arg=%s: %v", fire.Handler, fire.Arg, err)
	}
}
