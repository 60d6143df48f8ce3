// Package bol manages Bills of Lading: shipment documents whose line items
// allocate quantities out of batches. All quantity movement goes through
// the batch ledger inside the same transaction as the line change, and
// BOL totals are always recomputed from the lines, never tracked
// incrementally.
package bol

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type BOL struct {
	ID            uuid.UUID  `json:"id"`
	BOLNumber     string     `json:"bol_number"`
	SupplierID    uuid.UUID  `json:"supplier_id"`
	SupplierName  string     `json:"supplier_name"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	CustomerName  string     `json:"customer_name"`
	LocationID    *uuid.UUID `json:"location_id,omitempty"`
	LocationName  string     `json:"location_name,omitempty"`
	TruckID       *uuid.UUID `json:"truck_id,omitempty"`
	TruckNumber   string     `json:"truck_number,omitempty"`
	ShipDate      time.Time  `json:"ship_date"`
	TotalBags     int64      `json:"total_bags"`
	TotalWeightMT float64    `json:"total_weight_mt"`
	Notes         string     `json:"notes"`
	Items         []LineItem `json:"items,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type LineItem struct {
	ID              uuid.UUID `json:"id"`
	BOLID           uuid.UUID `json:"bol_id"`
	BatchID         uuid.UUID `json:"batch_id"`
	Barcode         string    `json:"barcode"`
	ItemCode        string    `json:"item_code"`
	QuantityShipped int64     `json:"quantity_shipped"`
	WeightMT        float64   `json:"weight_mt"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateRequest struct {
	SupplierID uuid.UUID  `json:"supplier_id" validate:"required"`
	CustomerID uuid.UUID  `json:"customer_id" validate:"required"`
	LocationID *uuid.UUID `json:"location_id"`
	TruckID    *uuid.UUID `json:"truck_id"`
	ShipDate   string     `json:"ship_date" validate:"omitempty,datetime=2006-01-02"`
	Notes      string     `json:"notes"`
}

type AddLineRequest struct {
	BatchID  uuid.UUID `json:"batch_id" validate:"required"`
	Quantity int64     `json:"quantity" validate:"required"`
}

type EditLineRequest struct {
	Quantity int64 `json:"quantity" validate:"required"`
}

// round2 keeps metric-ton totals at two decimal places, matching what the
// recompute SQL produces.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
