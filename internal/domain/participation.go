package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParticipationStatus is the user's membership state for an event.
type ParticipationStatus string

const (
	ParticipationJoined ParticipationStatus = "joined"
	ParticipationLeaved ParticipationStatus = "leaved"
)

// Participation links a user to an event. (user_id, event_id) is unique.
type Participation struct {
	ID      uuid.UUID
	UserID  string
	EventID uuid.UUID
	Status  ParticipationStatus
	Payload map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}
