package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/crontab"
	"github.com/djlord-it/eventcron/internal/domain"
	"github.com/djlord-it/eventcron/internal/scheduler"
)

// PoolManager keeps each pool's recurring selection task in sync with
// its record and runs the member-selection cycle.
type PoolManager struct {
	store     Store
	tasks     TaskScheduler
	analytics AnalyticsSink // optional, nil = disabled
	rng       *rand.Rand
	clock     func() time.Time
}

// NewPoolManager creates a PoolManager. rng drives the ANY scheme's
// uniform pick; inject a seeded source in tests.
func NewPoolManager(store Store, tasks TaskScheduler, rng *rand.Rand) *PoolManager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PoolManager{
		store: store,
		tasks: tasks,
		rng:   rng,
		clock: time.Now,
	}
}

// WithAnalytics attaches an analytics sink to the manager.
func (m *PoolManager) WithAnalytics(sink AnalyticsSink) *PoolManager {
	m.analytics = sink
	return m
}

// Create persists a new pool and registers its recurring selection task.
func (m *PoolManager) Create(ctx context.Context, p domain.Pool) (domain.Pool, error) {
	plan, err := crontab.Parse(p.Plan)
	if err != nil {
		return domain.Pool{}, err
	}

	now := m.clock().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	p.TaskID = nil

	if err := m.store.InsertPool(ctx, p); err != nil {
		return domain.Pool{}, fmt.Errorf("insert pool: %w", err)
	}

	ref, err := m.tasks.ScheduleRecurring(plan, HandlerPoolRun, p.ID.String(), p.IsActive)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("schedule pool task: %w", err)
	}
	if err := m.store.SetPoolTaskID(ctx, p.ID, &ref); err != nil {
		m.tasks.Remove(ref)
		return domain.Pool{}, fmt.Errorf("persist task ref: %w", err)
	}
	p.TaskID = &ref
	return p, nil
}

// Update persists the new fields and resyncs the selection task. Member
// generators' tasks follow the pool's active flag, so they are resynced
// too when it changes.
func (m *PoolManager) Update(ctx context.Context, p domain.Pool) (domain.Pool, error) {
	plan, err := crontab.Parse(p.Plan)
	if err != nil {
		return domain.Pool{}, err
	}

	current, err := m.store.GetPool(ctx, p.ID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("get pool: %w", err)
	}

	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = m.clock().UTC()
	p.TaskID = current.TaskID
	p.LastRunAt = current.LastRunAt
	p.TotalRunCount = current.TotalRunCount

	if err := m.store.UpdatePool(ctx, p); err != nil {
		return domain.Pool{}, fmt.Errorf("update pool: %w", err)
	}

	if err := m.resyncPoolTask(ctx, p, plan); err != nil {
		return domain.Pool{}, err
	}

	if current.IsActive != p.IsActive {
		if err := m.resyncMembers(ctx, p); err != nil {
			return domain.Pool{}, err
		}
	}

	refreshed, err := m.store.GetPool(ctx, p.ID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("get pool: %w", err)
	}
	return refreshed, nil
}

// Delete removes the selection task and the record. Member generators
// keep their own tasks; with the pool gone they fall back to their own
// active flag on the next resync.
func (m *PoolManager) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := m.store.GetPool(ctx, id)
	if err != nil {
		return fmt.Errorf("get pool: %w", err)
	}
	if p.TaskID != nil {
		m.tasks.Remove(*p.TaskID)
	}
	if err := m.store.DeletePool(ctx, id); err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	return nil
}

// Resync re-registers selection tasks whose persisted refs are stale.
// Returns the number of pools touched.
func (m *PoolManager) Resync(ctx context.Context) (int, error) {
	pools, err := m.store.ListPools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pools: %w", err)
	}

	resynced := 0
	for _, p := range pools {
		plan, err := crontab.Parse(p.Plan)
		if err != nil {
			log.Printf("pool: resync %s: bad plan %q: %v", p.ID, p.Plan, err)
			continue
		}
		if p.TaskID != nil && m.tasks.Exists(*p.TaskID) {
			if err := m.tasks.UpdateRecurring(*p.TaskID, plan, p.IsActive); err != nil {
				log.Printf("pool: resync %s: %v", p.ID, err)
			}
			continue
		}
		p.TaskID = nil
		if err := m.resyncPoolTask(ctx, p, plan); err != nil {
			log.Printf("pool: resync %s: %v", p.ID, err)
			continue
		}
		resynced++
	}
	return resynced, nil
}

func (m *PoolManager) resyncPoolTask(ctx context.Context, p domain.Pool, plan crontab.Schedule) error {
	if p.TaskID != nil {
		err := m.tasks.UpdateRecurring(*p.TaskID, plan, p.IsActive)
		if err == nil {
			return nil
		}
		if !errors.Is(err, scheduler.ErrTaskNotFound) {
			return fmt.Errorf("update pool task: %w", err)
		}
	}

	ref, err := m.tasks.ScheduleRecurring(plan, HandlerPoolRun, p.ID.String(), p.IsActive)
	if err != nil {
		return fmt.Errorf("schedule pool task: %w", err)
	}
	if err := m.store.SetPoolTaskID(ctx, p.ID, &ref); err != nil {
		m.tasks.Remove(ref)
		return fmt.Errorf("persist task ref: %w", err)
	}
	return nil
}

// resyncMembers re-derives the task enabled flag for every member after
// the pool's active flag changed.
func (m *PoolManager) resyncMembers(ctx context.Context, p domain.Pool) error {
	members, err := m.store.ListPoolGenerators(ctx, p.ID, false)
	if err != nil {
		return fmt.Errorf("list pool generators: %w", err)
	}
	for _, g := range members {
		if g.TaskID == nil {
			continue
		}
		plan, err := crontab.Parse(g.Plan)
		if err != nil {
			log.Printf("pool: member %s has bad plan %q: %v", g.ID, g.Plan, err)
			continue
		}
		if err := m.tasks.UpdateRecurring(*g.TaskID, plan, g.ActiveIn(&p)); err != nil {
			log.Printf("pool: resync member %s: %v", g.ID, err)
		}
	}
	return nil
}

// HandleRun fires on the pool's crontab plan. It reloads the record,
// stamps the run, and re-selects which enabled members are active:
// ANY picks one uniformly, ALL picks everyone, anything else picks
// nobody. Members are cleared first so nothing stays active from a
// prior cycle, then the selected subset is set.
func (m *PoolManager) HandleRun(ctx context.Context, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Errorf("parse pool id %q: %w", arg, err)
	}

	p, err := m.store.GetPool(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get pool: %w", err)
	}
	if !p.IsActive {
		log.Printf("pool: %s inactive, skipping selection", p.ID)
		return nil
	}

	now := m.clock().UTC()
	p.LastRunAt = &now
	p.TotalRunCount++
	p.UpdatedAt = now
	if err := m.store.UpdatePool(ctx, p); err != nil {
		return fmt.Errorf("stamp pool run: %w", err)
	}

	enabled, err := m.store.ListPoolGenerators(ctx, p.ID, true)
	if err != nil {
		return fmt.Errorf("list enabled generators: %w", err)
	}
	if len(enabled) == 0 {
		log.Printf("pool: %s has no enabled generators, nothing to select", p.ID)
		return nil
	}

	var selected []domain.Generator
	switch p.RunScheme {
	case domain.RunSchemeAny:
		selected = []domain.Generator{enabled[m.rng.Intn(len(enabled))]}
	case domain.RunSchemeAll:
		selected = enabled
	default:
		log.Printf("pool: %s unknown run scheme %q, selecting nothing", p.ID, p.RunScheme)
	}

	for _, g := range enabled {
		g.IsActive = false
		g.UpdatedAt = now
		if err := m.store.UpdateGenerator(ctx, g); err != nil {
			return fmt.Errorf("clear generator %s: %w", g.ID, err)
		}
	}
	for _, g := range selected {
		g.IsActive = true
		g.UpdatedAt = now
		if err := m.store.UpdateGenerator(ctx, g); err != nil {
			return fmt.Errorf("select generator %s: %w", g.ID, err)
		}
	}

	if m.analytics != nil {
		m.analytics.Record(ctx, "pool_run", p.ID, now)
	}
	log.Printf("pool: %s scheme=%s selected=%d/%d run_count=%d",
		p.ID, p.RunScheme, len(selected), len(enabled), p.TotalRunCount)
	return nil
}
