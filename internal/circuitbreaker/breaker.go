package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type destState struct {
	state    state
	failures int
	openedAt time.Time
}

// Breaker tracks consecutive delivery failures per destination and
// rejects sends while a destination is cooling down. After the cooldown
// a single probe is allowed; its outcome decides whether the circuit
// closes again or re-opens.
type Breaker struct {
	mu        sync.Mutex
	dests     map[string]*destState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		dests:     make(map[string]*destState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a send to dest may proceed. It returns ErrOpen
// while the circuit is open and during an in-flight half-open probe.
func (b *Breaker) Allow(dest string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.dests[dest]
	if !ok {
		return nil
	}

	switch s.state {
	case stateOpen:
		if b.clock().Sub(s.openedAt) >= b.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrOpen
	case stateHalfOpen:
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) RecordSuccess(dest string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.dests[dest]
	if !ok {
		return
	}
	s.state = stateClosed
	s.failures = 0
}

func (b *Breaker) RecordFailure(dest string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.dests[dest]
	if !ok {
		s = &destState{}
		b.dests[dest] = s
	}

	s.failures++
	if s.failures >= b.threshold || s.state == stateHalfOpen {
		s.state = stateOpen
		s.openedAt = b.clock()
		s.failures = b.threshold
	}
}
