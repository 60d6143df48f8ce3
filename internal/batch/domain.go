// Package batch is the ledger for bagged-material batches. It is the only
// code allowed to change a batch's current_quantity or status; everything
// else (BOL lines included) goes through it.
package batch

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bagline-erp/bagline/internal/shared"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusOnHold   Status = "ON_HOLD"
	StatusDepleted Status = "DEPLETED"
	StatusShipped  Status = "SHIPPED"
)

type Batch struct {
	ID               uuid.UUID `json:"id"`
	Barcode          string    `json:"barcode"`
	ItemID           uuid.UUID `json:"item_id"`
	ItemCode         string    `json:"item_code"`
	SizeID           uuid.UUID `json:"size_id"`
	SizeLabel        string    `json:"size_label"`
	SupplierID       uuid.UUID `json:"supplier_id"`
	SupplierName     string    `json:"supplier_name"`
	LotNumber        string    `json:"lot_number"`
	Barge            string    `json:"barge"`
	StartingQuantity int64     `json:"starting_quantity"`
	CurrentQuantity  int64     `json:"current_quantity"`
	ReceiptDate      time.Time `json:"receipt_date"`
	Status           Status    `json:"status"`
	Notes            string    `json:"notes"`
	IsActive         bool      `json:"is_active"`
	// TotalWeightMT is current_quantity × the item's standard bag weight,
	// recomputed on read.
	TotalWeightMT float64   `json:"total_weight_mt"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Barcode builds the deterministic barcode for a batch from its receipt
// identifiers: barge, lot, supplier BOL prefix, item code, size label,
// concatenated in that order.
func Barcode(barge, lot, bolPrefix, itemCode, sizeLabel string) string {
	return barge + lot + bolPrefix + itemCode + sizeLabel
}

// Allocate deducts bags. It never clamps: asking for more than is
// available fails outright and leaves the batch untouched.
func (b *Batch) Allocate(qty int64) error {
	if qty < 1 {
		return shared.Validation("allocation quantity must be at least 1, got %d", qty)
	}
	if b.Status == StatusOnHold {
		return shared.Hold("batch %s is on hold", b.Barcode)
	}
	if qty > b.CurrentQuantity {
		return &shared.InsufficientQuantityError{Requested: qty, Available: b.CurrentQuantity}
	}
	b.CurrentQuantity -= qty
	if b.CurrentQuantity == 0 {
		b.Status = StatusDepleted
	}
	return nil
}

// Restore returns bags to the batch, reviving a depleted batch. The
// starting quantity is a hard ceiling.
func (b *Batch) Restore(qty int64) error {
	if qty < 1 {
		return shared.Validation("restore quantity must be at least 1, got %d", qty)
	}
	if b.Status == StatusShipped {
		return shared.Invariant("batch %s has shipped; cannot restore", b.Barcode)
	}
	if b.CurrentQuantity+qty > b.StartingQuantity {
		return shared.Invariant("restore of %d would exceed starting quantity %d (current %d)",
			qty, b.StartingQuantity, b.CurrentQuantity)
	}
	b.CurrentQuantity += qty
	if b.Status == StatusDepleted {
		b.Status = StatusActive
	}
	return nil
}

func (b *Batch) SetHold() error {
	if b.Status != StatusActive {
		return shared.Invariant("batch %s is %s; only active batches can be held", b.Barcode, b.Status)
	}
	b.Status = StatusOnHold
	return nil
}

func (b *Batch) ClearHold() error {
	if b.Status != StatusOnHold {
		return shared.Invariant("batch %s is %s, not on hold", b.Barcode, b.Status)
	}
	b.Status = StatusActive
	return nil
}

// MarkShipped closes out a depleted batch once its last BOL has gone out.
func (b *Batch) MarkShipped() error {
	if b.Status != StatusDepleted {
		return shared.Invariant("batch %s is %s; only depleted batches can be marked shipped", b.Barcode, b.Status)
	}
	b.Status = StatusShipped
	return nil
}

type CreateRequest struct {
	ItemID           uuid.UUID `json:"item_id" validate:"required"`
	SizeID           uuid.UUID `json:"size_id" validate:"required"`
	SupplierID       uuid.UUID `json:"supplier_id" validate:"required"`
	LotNumber        string    `json:"lot_number" validate:"required,max=50"`
	Barge            string    `json:"barge" validate:"required,max=50"`
	StartingQuantity int64     `json:"starting_quantity" validate:"required"`
	ReceiptDate      string    `json:"receipt_date" validate:"omitempty,datetime=2006-01-02"`
	Barcode          string    `json:"barcode" validate:"max=100"`
	Notes            string    `json:"notes"`
}

// normalize trims and uppercases the identifier fields so barcodes come
// out consistent regardless of how the receipt was keyed in.
func (r *CreateRequest) normalize() {
	r.LotNumber = strings.ToUpper(strings.TrimSpace(r.LotNumber))
	r.Barge = strings.ToUpper(strings.TrimSpace(r.Barge))
	r.Barcode = strings.ToUpper(strings.TrimSpace(r.Barcode))
}

type QuantityRequest struct {
	Quantity int64 `json:"quantity" validate:"required"`
}
