// Package lifecycle keeps an event's scheduled start/finish tasks
// consistent with its persisted fields. Mutations persist first and
// register tasks strictly after the row is durable; updates revoke both
// existing refs before rescheduling so a single live task per trigger is
// preserved.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eventcron/internal/domain"
)

// Handler names registered with the runner. These are the stable task
// identities that survive process restarts.
const (
	HandlerEventStart  = "event.start"
	HandlerEventFinish = "event.finish"
)

// Store defines the repository surface the lifecycle manager needs.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	InsertEvent(ctx context.Context, ev domain.Event) error
	UpdateEvent(ctx context.Context, ev domain.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	// SetEventTaskIDs persists the live task refs for an event. nil clears.
	SetEventTaskIDs(ctx context.Context, id uuid.UUID, start, finish *uuid.UUID) error
	ListUpcomingEvents(ctx context.Context, after time.Time) ([]domain.Event, error)

	GetParticipation(ctx context.Context, eventID uuid.UUID, userID string) (domain.Participation, error)
	InsertParticipation(ctx context.Context, p domain.Participation) error
	UpdateParticipation(ctx context.Context, p domain.Participation) error
	ListJoinedParticipations(ctx context.Context, eventID uuid.UUID) ([]domain.Participation, error)
}

// TaskScheduler is the slice of the scheduler contract used here.
type TaskScheduler interface {
	ScheduleOnce(at time.Time, handler, arg string) (uuid.UUID, error)
	Revoke(ref uuid.UUID)
	Exists(ref uuid.UUID) bool
}

// Notifier delivers notifications to users. Fire-and-forget from this
// core's perspective: failures are logged here, retry is the notifier's
// own business.
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) error
}

// AnalyticsSink records fired lifecycle triggers. Implementations handle
// their own errors; recording never affects trigger correctness.
type AnalyticsSink interface {
	Record(ctx context.Context, kind string, id uuid.UUID, at time.Time)
}

// participationView is the notification payload for a status change.
type participationView struct {
	Event     domain.Summary `json:"event"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// Manager drives event trigger scheduling and participation changes.
type Manager struct {
	store     Store
	tasks     TaskScheduler
	notifier  Notifier
	analytics AnalyticsSink // optional, nil = disabled
	clock     func() time.Time
}

// New creates a lifecycle Manager.
func New(store Store, tasks TaskScheduler, notifier Notifier) *Manager {
	return &Manager{
		store:    store,
		tasks:    tasks,
		notifier: notifier,
		clock:    time.Now,
	}
}

// WithAnalytics attaches an analytics sink to the manager.
func (m *Manager) WithAnalytics(sink AnalyticsSink) *Manager {
	m.analytics = sink
	return m
}

// Create persists a new event and then schedules its triggers. Task refs
// supplied by the caller are ignored; the manager owns them.
func (m *Manager) Create(ctx context.Context, ev domain.Event) (domain.Event, error) {
	now := m.clock().UTC()

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = now
	ev.UpdatedAt = now
	ev.StartTaskID = nil
	ev.FinishTaskID = nil

	if err := m.store.InsertEvent(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := m.scheduleTriggers(ctx, &ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Update revokes both existing refs unconditionally (they reflect stale
// times), persists the new fields, and re-derives the triggers.
func (m *Manager) Update(ctx context.Context, ev domain.Event) (domain.Event, error) {
	current, err := m.store.GetEvent(ctx, ev.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}

	m.revokeRefs(current)

	ev.CreatedAt = current.CreatedAt
	ev.UpdatedAt = m.clock().UTC()
	ev.StartTaskID = nil
	ev.FinishTaskID = nil

	if err := m.store.UpdateEvent(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}

	if err := m.scheduleTriggers(ctx, &ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Delete revokes both refs and removes the record. No rescheduling.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	ev, err := m.store.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	m.revokeRefs(ev)

	if err := m.store.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Resync re-derives triggers for persisted events whose refs are not
// live in the scheduler table, e.g. after a restart wiped the in-memory
// table. Returns the number of events resynced.
func (m *Manager) Resync(ctx context.Context) (int, error) {
	now := m.clock().UTC()

	events, err := m.store.ListUpcomingEvents(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list upcoming events: %w", err)
	}

	resynced := 0
	for _, ev := range events {
		if m.triggersConsistent(ev, now) {
			continue
		}
		m.revokeRefs(ev)
		if err := m.scheduleTriggers(ctx, &ev); err != nil {
			log.Printf("lifecycle: resync event=%s: %v", ev.ID, err)
			continue
		}
		resynced++
	}
	return resynced, nil
}

// triggersConsistent reports whether the live task set matches what the
// event's fields require at the given instant.
func (m *Manager) triggersConsistent(ev domain.Event, now time.Time) bool {
	needStart := ev.IsActive && ev.StartAt.After(now)
	needFinish := ev.IsActive && ev.FinishAt.After(now)
	hasStart := ev.StartTaskID != nil && m.tasks.Exists(*ev.StartTaskID)
	hasFinish := ev.FinishTaskID != nil && m.tasks.Exists(*ev.FinishTaskID)
	return needStart == hasStart && needFinish == hasFinish
}

// scheduleTriggers registers the start/finish tasks required by the
// event's current fields and persists the refs. Past times get no task;
// missed triggers are not fired retroactively. If persisting the refs
// fails the fresh tasks are revoked, keeping registration and
// persistence one unit.
func (m *Manager) scheduleTriggers(ctx context.Context, ev *domain.Event) error {
	now := m.clock().UTC()

	var start, finish *uuid.UUID
	if ev.IsActive {
		if ev.StartAt.After(now) {
			ref, err := m.tasks.ScheduleOnce(ev.StartAt, HandlerEventStart, ev.ID.String())
			if err != nil {
				return fmt.Errorf("schedule start: %w", err)
			}
			start = &ref
		}
		if ev.FinishAt.After(now) {
			ref, err := m.tasks.ScheduleOnce(ev.FinishAt, HandlerEventFinish, ev.ID.String())
			if err != nil {
				m.revokeRefs(domain.Event{StartTaskID: start})
				return fmt.Errorf("schedule finish: %w", err)
			}
			finish = &ref
		}
	}

	if err := m.store.SetEventTaskIDs(ctx, ev.ID, start, finish); err != nil {
		m.revokeRefs(domain.Event{StartTaskID: start, FinishTaskID: finish})
		return fmt.Errorf("persist task refs: %w", err)
	}

	ev.StartTaskID = start
	ev.FinishTaskID = finish
	return nil
}

func (m *Manager) revokeRefs(ev domain.Event) {
	if ev.StartTaskID != nil {
		m.tasks.Revoke(*ev.StartTaskID)
	}
	if ev.FinishTaskID != nil {
		m.tasks.Revoke(*ev.FinishTaskID)
	}
}

// HandleStart fires when an event's start time arrives. A missing record
// is a normal outcome of deletion after scheduling. The active flag is
// never mutated here.
func (m *Manager) HandleStart(ctx context.Context, arg string) error {
	return m.handleTrigger(ctx, arg, domain.NotificationStarted)
}

// HandleFinish fires when an event's finish time arrives.
func (m *Manager) HandleFinish(ctx context.Context, arg string) error {
	return m.handleTrigger(ctx, arg, domain.NotificationFinished)
}

func (m *Manager) handleTrigger(ctx context.Context, arg string, typ domain.NotificationType) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Errorf("parse event id %q: %w", arg, err)
	}

	ev, err := m.store.GetEvent(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	// The fired ref is spent; clear it.
	start, finish := ev.StartTaskID, ev.FinishTaskID
	if typ == domain.NotificationStarted {
		start = nil
	} else {
		finish = nil
	}
	if err := m.store.SetEventTaskIDs(ctx, ev.ID, start, finish); err != nil {
		log.Printf("lifecycle: clear fired ref event=%s: %v", ev.ID, err)
	}

	if !ev.IsActive {
		log.Printf("lifecycle: event=%s no longer active, skipping %s", ev.ID, typ)
		return nil
	}

	if m.analytics != nil {
		m.analytics.Record(ctx, string(typ), ev.ID, m.clock().UTC())
	}

	return m.notifyParticipants(ctx, ev, typ)
}

func (m *Manager) notifyParticipants(ctx context.Context, ev domain.Event, typ domain.NotificationType) error {
	participations, err := m.store.ListJoinedParticipations(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("list participations: %w", err)
	}

	summary := ev.Summarize()
	failed := 0
	for _, p := range participations {
		n := domain.Notification{Type: typ, Data: summary}
		if err := m.notifier.Notify(ctx, p.UserID, n); err != nil {
			log.Printf("lifecycle: notify user=%s event=%s: %v", p.UserID, ev.ID, err)
			failed++
		}
	}
	if failed > 0 {
		log.Printf("lifecycle: event=%s %s notified=%d failed=%d",
			ev.ID, typ, len(participations)-failed, failed)
	}
	return nil
}

// Join records a user's participation in an event and notifies the user
// of the status change. Rejoining after leaving flips the row back.
func (m *Manager) Join(ctx context.Context, eventID uuid.UUID, userID string) error {
	ev, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	now := m.clock().UTC()

	p, err := m.store.GetParticipation(ctx, eventID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p = domain.Participation{
			ID:        uuid.New(),
			UserID:    userID,
			EventID:   eventID,
			Status:    domain.ParticipationJoined,
			Payload:   map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.InsertParticipation(ctx, p); err != nil {
			return fmt.Errorf("insert participation: %w", err)
		}
	case err != nil:
		return fmt.Errorf("get participation: %w", err)
	case p.Status == domain.ParticipationJoined:
		return nil
	default:
		p.Status = domain.ParticipationJoined
		p.UpdatedAt = now
		if err := m.store.UpdateParticipation(ctx, p); err != nil {
			return fmt.Errorf("update participation: %w", err)
		}
	}

	m.notifyStatusChanged(ctx, ev, p)
	return nil
}

// Leave marks the user's participation as leaved. A user who never
// joined is logged and left alone.
func (m *Manager) Leave(ctx context.Context, eventID uuid.UUID, userID string) error {
	ev, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	p, err := m.store.GetParticipation(ctx, eventID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("lifecycle: user=%s is not joined to event=%s, cannot leave", userID, eventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get participation: %w", err)
	}
	if p.Status != domain.ParticipationJoined {
		return nil
	}

	p.Status = domain.ParticipationLeaved
	p.UpdatedAt = m.clock().UTC()
	if err := m.store.UpdateParticipation(ctx, p); err != nil {
		return fmt.Errorf("update participation: %w", err)
	}

	m.notifyStatusChanged(ctx, ev, p)
	return nil
}

func (m *Manager) notifyStatusChanged(ctx context.Context, ev domain.Event, p domain.Participation) {
	n := domain.Notification{
		Type: domain.NotificationParticipationStatus,
		Data: participationView{
			Event:     ev.Summarize(),
			Status:    string(p.Status),
			Payload:   p.Payload,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	if err := m.notifier.Notify(ctx, p.UserID, n); err != nil {
		log.Printf("lifecycle: notify user=%s event=%s: %v", p.UserID, ev.ID, err)
	}
}
