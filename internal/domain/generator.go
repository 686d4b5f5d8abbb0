package domain

import (
	"time"

	"github.com/google/uuid"
)

// Generator periodically produces a new Event from its template fields.
// TaskID holds the ref of its recurring task, or nil if none is registered.
type Generator struct {
	ID     uuid.UUID
	Name   string
	PoolID *uuid.UUID

	IsActive bool
	Enabled  bool

	LastRunAt     *time.Time
	TotalRunCount int
	Plan          string // 5-field crontab expression

	// Template fields copied onto generated events.
	CategoryID uuid.UUID
	StartAt    time.Time
	FinishAt   time.Time
	Payload    map[string]any

	TaskID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveIn reports the derived active state used to gate the generator's
// recurring task. A pooled generator follows its pool's active flag; a
// standalone one follows its own.
func (g Generator) ActiveIn(pool *Pool) bool {
	if !g.Enabled {
		return false
	}
	if g.PoolID != nil {
		return pool != nil && pool.IsActive
	}
	return g.IsActive
}
