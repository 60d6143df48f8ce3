package suppliers

import (
	"time"

	"github.com/google/uuid"
)

// Supplier represents a material supplier. NextBOLNo is owned by the BOL
// sequence issuer; nothing in this package increments it.
type Supplier struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BOLPrefix    string    `json:"bol_prefix"`
	NextBOLNo    int64     `json:"next_bol_no"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	Notes        string    `json:"notes"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateRequest is the payload for creating a supplier.
type CreateRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	BOLPrefix    string `json:"bol_prefix" validate:"required,max=10,alphanum"`
	NextBOLNo    int64  `json:"next_bol_no" validate:"omitempty,gte=1"`
	ContactName  string `json:"contact_name" validate:"max=100"`
	ContactPhone string `json:"contact_phone" validate:"max=20"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
}

// UpdateRequest is the payload for updating a supplier. The BOL counter is
// deliberately absent: it only moves through the sequence issuer.
type UpdateRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	BOLPrefix    string `json:"bol_prefix" validate:"required,max=10,alphanum"`
	ContactName  string `json:"contact_name" validate:"max=100"`
	ContactPhone string `json:"contact_phone" validate:"max=20"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Notes        string `json:"notes"`
}
