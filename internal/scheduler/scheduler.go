// Package scheduler maintains the task-ref table: one-shot tasks that
// fire once at an absolute time and recurring tasks driven by a crontab
// plan. Registration is synchronous; firing is asynchronous through an
// event emitter consumed by the runner.
//
// The table lives in memory. After a restart it is rebuilt from
// persisted records by the reconciler, so stale refs held by records are
// revoked (a silent no-op) and fresh tasks registered.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/djlord-it/eventcron/internal/crontab"
	"github.com/djlord-it/eventcron/internal/domain"
)

// ErrTaskNotFound is returned by UpdateRecurring when the ref does not
// exist in the table (typically a ref persisted before a restart).
// Callers recover by scheduling a fresh task.
var ErrTaskNotFound = errors.New("scheduler: task not found")

// EventEmitter delivers due-task fires to the runner.
type EventEmitter interface {
	Emit(ctx context.Context, fire domain.TaskFire) error
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, fired int)
	TaskScheduled(kind string)
	TaskRevoked(kind string)
	TasksRegisteredUpdate(count int)
}

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration
}

type entry struct {
	id      uuid.UUID
	kind    domain.TaskKind
	handler string
	arg     string

	runAt time.Time // one-shot: absolute fire time

	plan    crontab.Schedule // recurring: current crontab plan
	sched   cron.Schedule    // recurring: compiled plan
	enabled bool
	next    time.Time // recurring: next due time
}

// TaskInfo is a read-only snapshot of a table entry.
type TaskInfo struct {
	ID      uuid.UUID       `json:"id"`
	Kind    domain.TaskKind `json:"kind"`
	Handler string          `json:"handler"`
	Arg     string          `json:"arg"`
	Enabled bool            `json:"enabled"`
	NextRun time.Time       `json:"next_run"`
}

// Scheduler owns the task-ref table and the tick loop that fires due tasks.
type Scheduler struct {
	config  Config
	emitter EventEmitter
	parser  cron.Parser
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time

	mu    sync.Mutex
	tasks map[uuid.UUID]*entry
}

// New creates a Scheduler. Run must be called for tasks to fire.
func New(config Config, emitter EventEmitter) *Scheduler {
	return &Scheduler{
		config:  config,
		emitter: emitter,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		clock:   time.Now,
		tasks:   make(map[uuid.UUID]*entry),
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// ScheduleOnce registers a task that fires no earlier than at. A past at
// makes the task due on the next tick.
func (s *Scheduler) ScheduleOnce(at time.Time, handler, arg string) (uuid.UUID, error) {
	if handler == "" {
		return uuid.Nil, errors.New("scheduler: empty handler name")
	}

	id := uuid.New()
	s.mu.Lock()
	s.tasks[id] = &entry{
		id:      id,
		kind:    domain.TaskKindOneShot,
		handler: handler,
		arg:     arg,
		runAt:   at.UTC(),
	}
	count := len(s.tasks)
	s.mu.Unlock()

	s.recordScheduled(domain.TaskKindOneShot, count)
	return id, nil
}

// ScheduleRecurring registers a recurring task gated by enabled. The plan
// is compiled here, so field values the codec accepted syntactically can
// still be rejected.
func (s *Scheduler) ScheduleRecurring(plan crontab.Schedule, handler, arg string, enabled bool) (uuid.UUID, error) {
	if handler == "" {
		return uuid.Nil, errors.New("scheduler: empty handler name")
	}

	sched, err := s.compile(plan)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	now := s.clock().UTC()

	s.mu.Lock()
	s.tasks[id] = &entry{
		id:      id,
		kind:    domain.TaskKindRecurring,
		handler: handler,
		arg:     arg,
		plan:    plan,
		sched:   sched,
		enabled: enabled,
		next:    sched.Next(now),
	}
	count := len(s.tasks)
	s.mu.Unlock()

	s.recordScheduled(domain.TaskKindRecurring, count)
	return id, nil
}

// UpdateRecurring atomically replaces the plan and enabled flag of an
// existing recurring task. A one-shot ref is a no-op; an unknown ref
// returns ErrTaskNotFound.
func (s *Scheduler) UpdateRecurring(ref uuid.UUID, plan crontab.Schedule, enabled bool) error {
	sched, err := s.compile(plan)
	if err != nil {
		return err
	}

	now := s.clock().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[ref]
	if !ok {
		return ErrTaskNotFound
	}
	if e.kind != domain.TaskKindRecurring {
		return nil
	}

	e.plan = plan
	e.sched = sched
	e.enabled = enabled
	e.next = sched.Next(now)
	return nil
}

// Revoke cancels a not-yet-fired task. Unknown and already-fired refs
// are silent no-ops, since firing may race with revocation.
func (s *Scheduler) Revoke(ref uuid.UUID) {
	s.drop(ref)
}

// Remove permanently deletes a recurring task's registration. Like
// Revoke, it never fails.
func (s *Scheduler) Remove(ref uuid.UUID) {
	s.drop(ref)
}

func (s *Scheduler) drop(ref uuid.UUID) {
	s.mu.Lock()
	e, ok := s.tasks[ref]
	if ok {
		delete(s.tasks, ref)
	}
	count := len(s.tasks)
	s.mu.Unlock()

	if ok && s.metrics != nil {
		s.metrics.TaskRevoked(string(e.kind))
		s.metrics.TasksRegisteredUpdate(count)
	}
}

// Exists reports whether the ref is live in the table.
func (s *Scheduler) Exists(ref uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[ref]
	return ok
}

// Snapshot returns the current table entries, ordered by next fire time.
func (s *Scheduler) Snapshot() []TaskInfo {
	s.mu.Lock()
	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, e := range s.tasks {
		info := TaskInfo{
			ID:      e.id,
			Kind:    e.kind,
			Handler: e.handler,
			Arg:     e.arg,
			Enabled: true,
			NextRun: e.runAt,
		}
		if e.kind == domain.TaskKindRecurring {
			info.Enabled = e.enabled
			info.NextRun = e.next
		}
		infos = append(infos, info)
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].NextRun.Before(infos[j].NextRun) })
	return infos
}

// Run starts the tick loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s", s.config.TickInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

// processTick emits every due task once and updates the table: one-shots
// are removed after a successful emit, recurring entries advance to the
// next occurrence. A failed emit (bus full, shutdown) leaves the entry
// due so the next tick retries it.
func (s *Scheduler) processTick(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.TickStarted()
	}
	started := s.clock()
	now := started.UTC()

	due := s.collectDue(now)
	fired := 0

	for _, fire := range due {
		if err := s.emitter.Emit(ctx, fire); err != nil {
			log.Printf("scheduler: emit task=%s handler=%s: %v", fire.TaskID, fire.Handler, err)
			continue
		}
		s.advance(fire.TaskID, now)
		fired++
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().Sub(started), fired)
		s.mu.Lock()
		count := len(s.tasks)
		s.mu.Unlock()
		s.metrics.TasksRegisteredUpdate(count)
	}
}

func (s *Scheduler) collectDue(now time.Time) []domain.TaskFire {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.TaskFire
	for _, e := range s.tasks {
		switch e.kind {
		case domain.TaskKindOneShot:
			if !e.runAt.After(now) {
				due = append(due, domain.TaskFire{
					TaskID:      e.id,
					Kind:        e.kind,
					Handler:     e.handler,
					Arg:         e.arg,
					ScheduledAt: e.runAt,
					FiredAt:     now,
				})
			}
		case domain.TaskKindRecurring:
			if e.enabled && !e.next.IsZero() && !e.next.After(now) {
				due = append(due, domain.TaskFire{
					TaskID:      e.id,
					Kind:        e.kind,
					Handler:     e.handler,
					Arg:         e.arg,
					ScheduledAt: e.next,
					FiredAt:     now,
				})
			}
		}
	}
	return due
}

// advance applies the post-emit mutation for a fired task. The entry may
// have been revoked or updated concurrently; a missing entry is fine.
func (s *Scheduler) advance(ref uuid.UUID, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[ref]
	if !ok {
		return
	}
	switch e.kind {
	case domain.TaskKindOneShot:
		delete(s.tasks, ref)
	case domain.TaskKindRecurring:
		e.next = e.sched.Next(now)
	}
}

func (s *Scheduler) compile(plan crontab.Schedule) (cron.Schedule, error) {
	sched, err := s.parser.Parse(crontab.Format(plan))
	if err != nil {
		return nil, fmt.Errorf("scheduler: compile plan: %w", err)
	}
	return sched, nil
}

func (s *Scheduler) recordScheduled(kind domain.TaskKind, count int) {
	if s.metrics == nil {
		return
	}
	s.metrics.TaskScheduled(string(kind))
	s.metrics.TasksRegisteredUpdate(count)
}
