package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a time-bounded happening with optional scheduled start and
// finish triggers. StartTaskID and FinishTaskID hold the refs of the
// currently live one-shot tasks, or nil when none is scheduled.
type Event struct {
	ID          uuid.UUID
	Name        string
	CategoryID  uuid.UUID
	GeneratorID *uuid.UUID

	StartAt  time.Time
	FinishAt time.Time
	Payload  map[string]any
	IsActive bool

	StartTaskID  *uuid.UUID
	FinishTaskID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the event is live at the given instant:
// the active flag is set and now falls within [StartAt, FinishAt).
func (e Event) Active(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartAt) && now.Before(e.FinishAt)
}

// Started reports whether the event's start time has passed.
func (e Event) Started(now time.Time) bool {
	return !now.Before(e.StartAt)
}

// Finished reports whether the event's finish time has passed.
func (e Event) Finished(now time.Time) bool {
	return e.FinishAt.Before(now)
}

// StartIn returns the remaining time until StartAt, or 0 if it has passed.
func (e Event) StartIn(now time.Time) time.Duration {
	if d := e.StartAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// FinishIn returns the remaining time until FinishAt, or 0 if it has passed.
func (e Event) FinishIn(now time.Time) time.Duration {
	if d := e.FinishAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Summary is the event representation carried in notification payloads.
type Summary struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	StartAt  string         `json:"start_at"`
	FinishAt string         `json:"finish_at"`
	Payload  map[string]any `json:"payload"`
	Category string         `json:"category_id"`
}

// Summarize builds the notification summary for the event.
func (e Event) Summarize() Summary {
	return Summary{
		ID:       e.ID.String(),
		Name:     e.Name,
		StartAt:  e.StartAt.UTC().Format(time.RFC3339),
		FinishAt: e.FinishAt.UTC().Format(time.RFC3339),
		Payload:  e.Payload,
		Category: e.CategoryID.String(),
	}
}
