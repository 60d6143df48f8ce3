package sizes

import (
	"time"

	"github.com/google/uuid"
)

// Size is a bag size specification (e.g. -16, 3x6, 6x16).
type Size struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertRequest is the payload for creating or updating a size.
type UpsertRequest struct {
	Label string `json:"label" validate:"required,max=20"`
}
