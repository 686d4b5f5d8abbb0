package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind distinguishes the two trigger shapes the scheduler manages.
type TaskKind string

const (
	TaskKindOneShot   TaskKind = "oneshot"
	TaskKindRecurring TaskKind = "recurring"
)

// TaskFire is emitted by the scheduler when a task comes due. The runner
// resolves Handler against its registry and invokes it with Arg; handlers
// reload the referenced record rather than trusting any captured state.
type TaskFire struct {
	TaskID  uuid.UUID
	Kind    TaskKind
	Handler string
	Arg     string

	ScheduledAt time.Time // intended fire time (UTC)
	FiredAt     time.Time // actual emission time
}
