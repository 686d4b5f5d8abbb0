// Package channel carries task fires from the scheduler to the runner
// over a bounded in-memory buffer.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/djlord-it/eventcron/internal/domain"
)

// ErrBufferFull is returned when an emit cannot be accepted within the
// emit timeout. The scheduler leaves the task due and retries next tick.
var ErrBufferFull = errors.New("channel: buffer full")

// MetricsSink defines the interface for recording bus metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

// Option configures a TaskBus.
type Option func(*TaskBus)

// WithEmitTimeout bounds how long Emit blocks on a full buffer.
// Zero means fail immediately.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *TaskBus) { b.emitTimeout = d }
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *TaskBus) { b.metrics = sink }
}

// TaskBus is a bounded channel of task fires.
type TaskBus struct {
	ch          chan domain.TaskFire
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

// NewTaskBus creates a bus with the given buffer capacity.
func NewTaskBus(buffer int, opts ...Option) *TaskBus {
	b := &TaskBus{
		ch: make(chan domain.TaskFire, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues a fire. It fails with ErrBufferFull when the buffer stays
// full past the emit timeout, or with the context error on cancellation.
func (b *TaskBus) Emit(ctx context.Context, fire domain.TaskFire) error {
	select {
	case b.ch <- fire:
		b.updateSize()
		return nil
	default:
	}

	if b.emitTimeout == 0 {
		b.recordEmitError()
		return ErrBufferFull
	}

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- fire:
		b.updateSize()
		return nil
	case <-timer.C:
		b.recordEmitError()
		return ErrBufferFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Channel exposes the receive side for the runner.
func (b *TaskBus) Channel() <-chan domain.TaskFire {
	return b.ch
}

func (b *TaskBus) updateSize() {
	if b.metrics != nil {
		b.metrics.BufferSizeUpdate(len(b.ch))
	}
}

func (b *TaskBus) recordEmitError() {
	if b.metrics != nil {
		b.metrics.EmitError()
	}
}
