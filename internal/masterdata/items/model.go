package items

import (
	"time"

	"github.com/google/uuid"
)

// Item represents a bagged product (e.g. BX75 - Bauxite 75).
type Item struct {
	ID                uuid.UUID `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	StandardBagWeight float64   `json:"standard_bag_weight"` // MT per bag
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateRequest is the payload for creating an item.
type CreateRequest struct {
	Code              string  `json:"code" validate:"required,max=20"`
	Name              string  `json:"name" validate:"required,max=100"`
	StandardBagWeight float64 `json:"standard_bag_weight" validate:"required,gt=0"`
}

// UpdateRequest is the payload for updating an item. The code is the
// immutable identity and cannot be changed; the bag weight may change but
// does not reprice shipped history.
type UpdateRequest struct {
	Name              string  `json:"name" validate:"required,max=100"`
	StandardBagWeight float64 `json:"standard_bag_weight" validate:"required,gt=0"`
}
