// Package generator maintains the recurring tasks behind event
// generators and generator pools. Each generator owns exactly one
// recurring task that produces a new event on its crontab plan; each
// pool owns one that re-selects which member generators are active.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/crontab"
	"github.com/djlord-it/eventcron/internal/domain"
	"github.com/djlord-it/eventcron/internal/scheduler"
)

// Handler names registered with the runner.
const (
	HandlerGeneratorRun = "generator.run"
	HandlerPoolRun      = "pool.run"
)

// Store defines the repository surface for generators and pools.
type Store interface {
	GetGenerator(ctx context.Context, id uuid.UUID) (domain.Generator, error)
	InsertGenerator(ctx context.Context, g domain.Generator) error
	UpdateGenerator(ctx context.Context, g domain.Generator) error
	DeleteGenerator(ctx context.Context, id uuid.UUID) error
	SetGeneratorTaskID(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error
	ListGenerators(ctx context.Context) ([]domain.Generator, error)
	// ListPoolGenerators returns a pool's members, optionally only the
	// enabled ones.
	ListPoolGenerators(ctx context.Context, poolID uuid.UUID, enabledOnly bool) ([]domain.Generator, error)

	GetPool(ctx context.Context, id uuid.UUID) (domain.Pool, error)
	InsertPool(ctx context.Context, p domain.Pool) error
	UpdatePool(ctx context.Context, p domain.Pool) error
	DeletePool(ctx context.Context, id uuid.UUID) error
	SetPoolTaskID(ctx context.Context, id uuid.UUID, taskID *uuid.UUID) error
	ListPools(ctx context.Context) ([]domain.Pool, error)
}

// TaskScheduler is the slice of the scheduler contract used here.
type TaskScheduler interface {
	ScheduleRecurring(plan crontab.Schedule, handler, arg string, enabled bool) (uuid.UUID, error)
	UpdateRecurring(ref uuid.UUID, plan crontab.Schedule, enabled bool) error
	Remove(ref uuid.UUID)
	Exists(ref uuid.UUID) bool
}

// EventCreator persists a generated event and schedules its lifecycle
// triggers, strictly in that order. Satisfied by lifecycle.Manager.
type EventCreator interface {
	Create(ctx context.Context, ev domain.Event) (domain.Event, error)
}

// AnalyticsSink records generator runs. Implementations handle their own
// errors; recording never affects run correctness.
type AnalyticsSink interface {
	Record(ctx context.Context, kind string, id uuid.UUID, at time.Time)
}

// Manager keeps each generator's recurring task in sync with its record.
type Manager struct {
	store     Store
	tasks     TaskScheduler
	events    EventCreator
	analytics AnalyticsSink // optional, nil = disabled
	clock     func() time.Time
}

// NewManager creates a generator Manager.
func NewManager(store Store, tasks TaskScheduler, events EventCreator) *Manager {
	return &Manager{
		store:  store,
		tasks:  tasks,
		events: events,
		clock:  time.Now,
	}
}

// WithAnalytics attaches an analytics sink to the manager.
func (m *Manager) WithAnalytics(sink AnalyticsSink) *Manager {
	m.analytics = sink
	return m
}

// Create persists a new generator and registers its recurring task.
// The plan is validated before anything is persisted.
func (m *Manager) Create(ctx context.Context, g domain.Generator) (domain.Generator, error) {
	plan, err := crontab.Parse(g.Plan)
	if err != nil {
		return domain.Generator{}, err
	}

	now := m.clock().UTC()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	g.TaskID = nil

	if err := m.store.InsertGenerator(ctx, g); err != nil {
		return domain.Generator{}, fmt.Errorf("insert generator: %w", err)
	}

	active, err := m.derivedActive(ctx, g)
	if err != nil {
		return domain.Generator{}, err
	}

	ref, err := m.tasks.ScheduleRecurring(plan, HandlerGeneratorRun, g.ID.String(), active)
	if err != nil {
		return domain.Generator{}, fmt.Errorf("schedule generator task: %w", err)
	}
	if err := m.store.SetGeneratorTaskID(ctx, g.ID, &ref); err != nil {
		m.tasks.Remove(ref)
		return domain.Generator{}, fmt.Errorf("persist task ref: %w", err)
	}
	g.TaskID = &ref
	return g, nil
}

// Update persists the new fields and resyncs the recurring task's plan
// and enabled flag. A ref lost to a restart gets a fresh registration.
func (m *Manager) Update(ctx context.Context, g domain.Generator) (domain.Generator, error) {
	plan, err := crontab.Parse(g.Plan)
	if err != nil {
		return domain.Generator{}, err
	}

	current, err := m.store.GetGenerator(ctx, g.ID)
	if err != nil {
		return domain.Generator{}, fmt.Errorf("get generator: %w", err)
	}

	g.CreatedAt = current.CreatedAt
	g.UpdatedAt = m.clock().UTC()
	g.TaskID = current.TaskID
	g.LastRunAt = current.LastRunAt
	g.TotalRunCount = current.TotalRunCount

	if err := m.store.UpdateGenerator(ctx, g); err != nil {
		return domain.Generator{}, fmt.Errorf("update generator: %w", err)
	}

	active, err := m.derivedActive(ctx, g)
	if err != nil {
		return domain.Generator{}, err
	}

	if err := m.resyncTask(ctx, g.ID, g.TaskID, plan, active, HandlerGeneratorRun, m.store.SetGeneratorTaskID); err != nil {
		return domain.Generator{}, err
	}
	refreshed, err := m.store.GetGenerator(ctx, g.ID)
	if err != nil {
		return domain.Generator{}, fmt.Errorf("get generator: %w", err)
	}
	return refreshed, nil
}

// Delete removes the recurring task registration and the record.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	g, err := m.store.GetGenerator(ctx, id)
	if err != nil {
		return fmt.Errorf("get generator: %w", err)
	}
	if g.TaskID != nil {
		m.tasks.Remove(*g.TaskID)
	}
	if err := m.store.DeleteGenerator(ctx, id); err != nil {
		return fmt.Errorf("delete generator: %w", err)
	}
	return nil
}

// Resync re-registers recurring tasks for generators whose persisted ref
// is no longer live, and refreshes plan/enabled for those that are.
// Returns the number of generators touched.
func (m *Manager) Resync(ctx context.Context) (int, error) {
	gens, err := m.store.ListGenerators(ctx)
	if err != nil {
		return 0, fmt.Errorf("list generators: %w", err)
	}

	resynced := 0
	for _, g := range gens {
		plan, err := crontab.Parse(g.Plan)
		if err != nil {
			log.Printf("generator: resync %s: bad plan %q: %v", g.ID, g.Plan, err)
			continue
		}
		active, err := m.derivedActive(ctx, g)
		if err != nil {
			log.Printf("generator: resync %s: %v", g.ID, err)
			continue
		}
		if g.TaskID != nil && m.tasks.Exists(*g.TaskID) {
			if err := m.tasks.UpdateRecurring(*g.TaskID, plan, active); err != nil {
				log.Printf("generator: resync %s: %v", g.ID, err)
			}
			continue
		}
		if err := m.resyncTask(ctx, g.ID, nil, plan, active, HandlerGeneratorRun, m.store.SetGeneratorTaskID); err != nil {
			log.Printf("generator: resync %s: %v", g.ID, err)
			continue
		}
		resynced++
	}
	return resynced, nil
}

// resyncTask updates an existing recurring task or registers a fresh one
// when the ref is stale, persisting the new ref.
func (m *Manager) resyncTask(
	ctx context.Context,
	id uuid.UUID,
	ref *uuid.UUID,
	plan crontab.Schedule,
	enabled bool,
	handler string,
	persist func(context.Context, uuid.UUID, *uuid.UUID) error,
) error {
	if ref != nil {
		err := m.tasks.UpdateRecurring(*ref, plan, enabled)
		if err == nil {
			return nil
		}
		if !errors.Is(err, scheduler.ErrTaskNotFound) {
			return fmt.Errorf("update recurring task: %w", err)
		}
	}

	fresh, err := m.tasks.ScheduleRecurring(plan, handler, id.String(), enabled)
	if err != nil {
		return fmt.Errorf("schedule recurring task: %w", err)
	}
	if err := persist(ctx, id, &fresh); err != nil {
		m.tasks.Remove(fresh)
		return fmt.Errorf("persist task ref: %w", err)
	}
	return nil
}

// derivedActive computes the enabled flag for the generator's task:
// enabled && (pooled ? pool.IsActive : IsActive). A missing pool
// propagates, since this is an explicit manager call.
func (m *Manager) derivedActive(ctx context.Context, g domain.Generator) (bool, error) {
	if g.PoolID == nil {
		return g.ActiveIn(nil), nil
	}
	pool, err := m.store.GetPool(ctx, *g.PoolID)
	if err != nil {
		return false, fmt.Errorf("get pool: %w", err)
	}
	return g.ActiveIn(&pool), nil
}

// HandleRun fires on the generator's crontab plan. It reloads the
// record, re-checks runnability, stamps the run, and creates a new event
// from the template fields. A missing record is a normal no-op.
func (m *Manager) HandleRun(ctx context.Context, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Errorf("parse generator id %q: %w", arg, err)
	}

	g, err := m.store.GetGenerator(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get generator: %w", err)
	}

	runnable, err := m.runnable(ctx, g)
	if err != nil {
		return err
	}
	if !runnable {
		log.Printf("generator: %s not runnable, skipping", g.ID)
		return nil
	}

	now := m.clock().UTC()
	g.LastRunAt = &now
	g.TotalRunCount++
	g.UpdatedAt = now
	if err := m.store.UpdateGenerator(ctx, g); err != nil {
		return fmt.Errorf("stamp generator run: %w", err)
	}

	// Event names are unique; derive one from the generator name and a
	// fresh id so repeated runs never collide.
	genID := g.ID
	eventID := uuid.New()
	ev := domain.Event{
		ID:          eventID,
		Name:        fmt.Sprintf("%s/%s", g.Name, eventID),
		CategoryID:  g.CategoryID,
		GeneratorID: &genID,
		StartAt:     g.StartAt,
		FinishAt:    g.FinishAt,
		Payload:     g.Payload,
		IsActive:    true,
	}
	created, err := m.events.Create(ctx, ev)
	if err != nil {
		return fmt.Errorf("create generated event: %w", err)
	}

	if m.analytics != nil {
		m.analytics.Record(ctx, "generator_run", g.ID, now)
	}
	log.Printf("generator: %s produced event=%s run_count=%d", g.ID, created.ID, g.TotalRunCount)
	return nil
}

// runnable gates actual event production. On top of the derived active
// flag, a pooled generator must also have been selected by its pool
// (IsActive set), otherwise every member would produce events regardless
// of the pool's selection.
func (m *Manager) runnable(ctx context.Context, g domain.Generator) (bool, error) {
	if !g.Enabled || !g.IsActive {
		return false, nil
	}
	if g.PoolID == nil {
		return true, nil
	}
	pool, err := m.store.GetPool(ctx, *g.PoolID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pool: %w", err)
	}
	return pool.IsActive, nil
}
