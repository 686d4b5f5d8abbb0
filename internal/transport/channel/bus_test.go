package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
)

func newTestFire() domain.TaskFire {
	return domain.TaskFire{
		TaskID:      uuid.New(),
		Kind:        domain.TaskKindOneShot,
		Handler:     "event.start",
		Arg:         uuid.NewString(),
		ScheduledAt: time.Now().UTC(),
		FiredAt:     time.Now().UTC(),
	}
}

func TestTaskBus_EmitAndReceive(t *testing.T) {
	bus := NewTaskBus(10)
	fire := newTestFire()

	if err := bus.Emit(context.Background(), fire); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case got := <-bus.Channel():
		if got.TaskID != fire.TaskID {
			t.Errorf("TaskID = %v, want %v", got.TaskID, fire.TaskID)
		}
		if got.Handler != fire.Handler || got.Arg != fire.Arg {
			t.Errorf("got %+v, want handler/arg preserved", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for fire on channel")
	}
}

func TestTaskBus_BufferFull(t *testing.T) {
	bus := NewTaskBus(1, WithEmitTimeout(50*time.Millisecond))
	ctx := context.Background()

	if err := bus.Emit(ctx, newTestFire()); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	err := bus.Emit(ctx, newTestFire())
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("second Emit = %v, want ErrBufferFull", err)
	}
}

func TestTaskBus_BufferFullNoTimeout(t *testing.T) {
	bus := NewTaskBus(1)
	ctx := context.Background()

	if err := bus.Emit(ctx, newTestFire()); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	// Without an emit timeout a full buffer fails immediately.
	start := time.Now()
	err := bus.Emit(ctx, newTestFire())
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Emit = %v, want ErrBufferFull", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Emit without timeout should fail immediately")
	}
}

func TestTaskBus_EmitCancelled(t *testing.T) {
	bus := NewTaskBus(1, WithEmitTimeout(5*time.Second))

	if err := bus.Emit(context.Background(), newTestFire()); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Emit(ctx, newTestFire())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Emit on cancelled context = %v, want context.Canceled", err)
	}
}

type recordingMetrics struct {
	mu         sync.Mutex
	sizes      []int
	capacity   int
	emitErrors int
}

func (m *recordingMetrics) BufferSizeUpdate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes = append(m.sizes, size)
}

func (m *recordingMetrics) BufferCapacitySet(capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = capacity
}

func (m *recordingMetrics) EmitError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErrors++
}

func TestTaskBus_Metrics(t *testing.T) {
	sink := &recordingMetrics{}
	bus := NewTaskBus(2, WithMetrics(sink))
	ctx := context.Background()

	if sink.capacity != 2 {
		t.Errorf("capacity = %d, want 2", sink.capacity)
	}

	bus.Emit(ctx, newTestFire())
	bus.Emit(ctx, newTestFire())
	bus.Emit(ctx, newTestFire()) // full

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.sizes) != 2 {
		t.Errorf("size updates = %d, want 2", len(sink.sizes))
	}
	if sink.emitErrors != 1 {
		t.Errorf("emit errors = %d, want 1", sink.emitErrors)
	}
}
