package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
)

func fireFor(handler, arg string) domain.TaskFire {
	return domain.TaskFire{
		TaskID:      uuid.New(),
		Kind:        domain.TaskKindOneShot,
		Handler:     handler,
		Arg:         arg,
		ScheduledAt: time.Now().UTC(),
		FiredAt:     time.Now().UTC(),
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	noop := func(ctx context.Context, arg string) error { return nil }

	if err := r.Register("event.start", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("event.start", noop); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if err := r.Register("", noop); err == nil {
		t.Fatal("empty name should fail")
	}
	if err := r.Register("x", nil); err == nil {
		t.Fatal("nil handler should fail")
	}
}

func TestRun_InvokesHandlerWithArg(t *testing.T) {
	r := New()

	var mu sync.Mutex
	var got []string
	r.Register("event.start", func(ctx context.Context, arg string) error {
		mu.Lock()
		got = append(got, arg)
		mu.Unlock()
		return nil
	})

	ch := make(chan domain.TaskFire, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	ch <- fireFor("event.start", "ev-1")
	ch <- fireFor("event.start", "ev-2")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("handlers invoked = %d, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "ev-1" || got[1] != "ev-2" {
		t.Errorf("args = %v, want [ev-1 ev-2]", got)
	}
}

func TestRun_UnknownHandlerIsNoop(t *testing.T) {
	r := New()
	ch := make(chan domain.TaskFire, 1)
	ch <- fireFor("no.such.handler", "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done // must not panic
}

func TestRun_HandlerErrorDoesNotStopLoop(t *testing.T) {
	r := New()

	var mu sync.Mutex
	var calls int
	r.Register("generator.run", func(ctx context.Context, arg string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("boom")
	})

	ch := make(chan domain.TaskFire, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	ch <- fireFor("generator.run", "gen-1")
	ch <- fireFor("generator.run", "gen-2")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRun_DrainsBufferedFiresOnShutdown(t *testing.T) {
	r := New()

	var mu sync.Mutex
	var calls int
	r.Register("pool.run", func(ctx context.Context, arg string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	ch := make(chan domain.TaskFire, 8)
	for i := 0; i < 5; i++ {
		ch <- fireFor("pool.run", "pool-1")
	}

	// Context cancelled before Run starts: everything is handled in drain.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 5 {
		t.Errorf("drained calls = %d, want 5", calls)
	}
}
