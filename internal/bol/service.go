package bol

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bagline-erp/bagline/internal/batch"
	"github.com/bagline-erp/bagline/internal/observability"
	"github.com/bagline-erp/bagline/internal/shared"
)

// Ledger is the slice of the batch ledger the allocator needs: quantity
// movement inside the allocator's own transaction.
type Ledger interface {
	AllocateTx(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, qty int64) (batch.Batch, error)
	RestoreTx(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, qty int64) (batch.Batch, error)
}

// NumberIssuer reserves the next BOL number for a supplier inside tx.
type NumberIssuer func(ctx context.Context, tx pgx.Tx, supplierID uuid.UUID) (string, error)

type Service struct {
	logger  *slog.Logger
	repo    Repository
	ledger  Ledger
	issue   NumberIssuer
	metrics *observability.Metrics
}

func NewService(logger *slog.Logger, repo Repository, ledger Ledger, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, ledger: ledger, issue: NextNumber, metrics: metrics}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]BOL, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (BOL, error) {
	return s.repo.Get(ctx, id)
}

// Create opens an empty BOL. The number comes from the supplier's counter
// in the same transaction as the insert, so a failed insert never burns a
// number.
func (s *Service) Create(ctx context.Context, req CreateRequest) (BOL, error) {
	shipDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.ShipDate != "" {
		d, err := time.Parse("2006-01-02", req.ShipDate)
		if err != nil {
			return BOL{}, shared.Validation("invalid ship date %q", req.ShipDate)
		}
		shipDate = d
	}

	var out BOL
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		number, err := s.issue(ctx, tx, req.SupplierID)
		if err != nil {
			return err
		}
		b, err := s.repo.CreateTx(ctx, tx, BOL{
			BOLNumber:  number,
			SupplierID: req.SupplierID,
			CustomerID: req.CustomerID,
			LocationID: req.LocationID,
			TruckID:    req.TruckID,
			ShipDate:   shipDate,
			Notes:      req.Notes,
		})
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return BOL{}, err
	}
	s.metrics.ObserveBOLIssued()
	s.logger.Info("bol created",
		slog.String("bol_id", out.ID.String()),
		slog.String("bol_number", out.BOLNumber))
	return out, nil
}

// AddLine allocates from the batch and inserts the line atomically; if the
// ledger refuses (hold, insufficient quantity) no line is written.
func (s *Service) AddLine(ctx context.Context, bolID, batchID uuid.UUID, qty int64) (BOL, error) {
	if qty < 1 {
		return BOL{}, shared.Validation("line quantity must be at least 1, got %d", qty)
	}
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		b, err := s.repo.GetForUpdateTx(ctx, tx, bolID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.AllocateTx(ctx, tx, batchID, qty); err != nil {
			return err
		}
		if _, err := s.repo.InsertLineTx(ctx, tx, LineItem{
			BOLID:           b.ID,
			BatchID:         batchID,
			QuantityShipped: qty,
		}); err != nil {
			return err
		}
		_, _, err = s.repo.RecomputeTotalsTx(ctx, tx, bolID)
		return err
	})
	if err != nil {
		return BOL{}, err
	}
	s.metrics.ObserveAllocation(qty)
	return s.repo.Get(ctx, bolID)
}

// RemoveLine deletes the line and restores its quantity to the batch.
func (s *Service) RemoveLine(ctx context.Context, lineID uuid.UUID) (BOL, error) {
	var bolID uuid.UUID
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		line, err := s.repo.GetLineTx(ctx, tx, lineID)
		if err != nil {
			return err
		}
		bolID = line.BOLID
		if _, err := s.repo.GetForUpdateTx(ctx, tx, line.BOLID); err != nil {
			return err
		}
		if _, err := s.ledger.RestoreTx(ctx, tx, line.BatchID, line.QuantityShipped); err != nil {
			return err
		}
		if err := s.repo.DeleteLineTx(ctx, tx, lineID); err != nil {
			return err
		}
		_, _, err = s.repo.RecomputeTotalsTx(ctx, tx, line.BOLID)
		return err
	})
	if err != nil {
		return BOL{}, err
	}
	return s.repo.Get(ctx, bolID)
}

// EditLineQuantity moves only the delta through the ledger: an increase
// allocates, a decrease restores. On any ledger failure the line keeps its
// old quantity.
func (s *Service) EditLineQuantity(ctx context.Context, lineID uuid.UUID, newQty int64) (BOL, error) {
	if newQty < 1 {
		return BOL{}, shared.Validation("line quantity must be at least 1, got %d", newQty)
	}
	var bolID uuid.UUID
	var delta int64
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		line, err := s.repo.GetLineTx(ctx, tx, lineID)
		if err != nil {
			return err
		}
		bolID = line.BOLID
		if _, err := s.repo.GetForUpdateTx(ctx, tx, line.BOLID); err != nil {
			return err
		}
		delta = newQty - line.QuantityShipped
		switch {
		case delta > 0:
			if _, err := s.ledger.AllocateTx(ctx, tx, line.BatchID, delta); err != nil {
				return err
			}
		case delta < 0:
			if _, err := s.ledger.RestoreTx(ctx, tx, line.BatchID, -delta); err != nil {
				return err
			}
		default:
			return nil
		}
		if err := s.repo.UpdateLineQuantityTx(ctx, tx, lineID, newQty); err != nil {
			return err
		}
		_, _, err = s.repo.RecomputeTotalsTx(ctx, tx, line.BOLID)
		return err
	})
	if err != nil {
		return BOL{}, err
	}
	if delta != 0 {
		s.metrics.ObserveAllocation(delta)
	}
	return s.repo.Get(ctx, bolID)
}

// Delete removes a BOL, restoring every line's quantity first. Lines go
// with the document via the cascade.
func (s *Service) Delete(ctx context.Context, bolID uuid.UUID) error {
	return s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.repo.GetForUpdateTx(ctx, tx, bolID); err != nil {
			return err
		}
		lines, err := s.repo.LinesTx(ctx, tx, bolID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := s.ledger.RestoreTx(ctx, tx, line.BatchID, line.QuantityShipped); err != nil {
				return err
			}
		}
		return s.repo.DeleteTx(ctx, tx, bolID)
	})
}
