package customers

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents a receiving customer.
type Customer struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Zip          string    `json:"zip"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	Notes        string    `json:"notes"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertRequest is the payload for creating or updating a customer.
type UpsertRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"max=20"`
	Address      string `json:"address" validate:"max=200"`
	City         string `json:"city" validate:"max=50"`
	State        string `json:"state" validate:"max=2"`
	Zip          string `json:"zip" validate:"max=10"`
	ContactName  string `json:"contact_name" validate:"max=100"`
	ContactPhone string `json:"contact_phone" validate:"max=20"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
}
