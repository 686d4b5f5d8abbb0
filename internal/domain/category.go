package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category groups events and generators and carries shared metadata.
type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	Payload     map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}
