package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunScheme selects how a pool activates its member generators each cycle.
type RunScheme string

const (
	// RunSchemeAny activates exactly one enabled member, chosen uniformly.
	RunSchemeAny RunScheme = "any"
	// RunSchemeAll activates every enabled member.
	RunSchemeAll RunScheme = "all"
)

// Valid reports whether the scheme is one of the known values.
func (s RunScheme) Valid() bool {
	return s == RunSchemeAny || s == RunSchemeAll
}

// Pool is a group of generators with a selection policy. Each cycle the
// pool's recurring task re-selects which members are active.
type Pool struct {
	ID          uuid.UUID
	Name        string
	Description string

	IsActive  bool
	RunScheme RunScheme

	LastRunAt     *time.Time
	TotalRunCount int
	Plan          string // 5-field crontab expression

	TaskID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}
