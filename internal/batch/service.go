package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bagline-erp/bagline/internal/observability"
	"github.com/bagline-erp/bagline/internal/shared"
)

// Notifier announces ledger events to the background job queue. A nil
// notifier disables notifications.
type Notifier interface {
	BatchDepleted(ctx context.Context, batchID uuid.UUID, barcode string) error
}

type Service struct {
	logger   *slog.Logger
	repo     Repository
	metrics  *observability.Metrics
	notifier Notifier
}

func NewService(logger *slog.Logger, repo Repository, metrics *observability.Metrics, notifier Notifier) *Service {
	return &Service{logger: logger, repo: repo, metrics: metrics, notifier: notifier}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Batch, int, error) {
	filters.ListFilters = filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Batch, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (Batch, error) {
	return s.repo.GetByBarcode(ctx, barcode)
}

// Create opens a new batch at full quantity. When no barcode is supplied
// one is derived from the receipt identifiers; a collision is a conflict,
// not a duplicate-key error, so the caller knows retrying with an explicit
// barcode is an option.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Batch, error) {
	req.normalize()
	if req.StartingQuantity < 1 {
		return Batch{}, shared.Validation("starting quantity must be at least 1, got %d", req.StartingQuantity)
	}
	if req.LotNumber == "" || req.Barge == "" {
		return Batch{}, shared.Validation("lot number and barge are required")
	}

	receiptDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.ReceiptDate != "" {
		d, err := time.Parse("2006-01-02", req.ReceiptDate)
		if err != nil {
			return Batch{}, shared.Validation("invalid receipt date %q", req.ReceiptDate)
		}
		receiptDate = d
	}

	barcode := req.Barcode
	if barcode == "" {
		parts, err := s.repo.BarcodeParts(ctx, req.ItemID, req.SizeID, req.SupplierID)
		if err != nil {
			return Batch{}, err
		}
		barcode = Barcode(req.Barge, req.LotNumber, parts.BOLPrefix, parts.ItemCode, parts.SizeLabel)
	}

	b, err := s.repo.Create(ctx, Batch{
		Barcode:          barcode,
		ItemID:           req.ItemID,
		SizeID:           req.SizeID,
		SupplierID:       req.SupplierID,
		LotNumber:        req.LotNumber,
		Barge:            req.Barge,
		StartingQuantity: req.StartingQuantity,
		CurrentQuantity:  req.StartingQuantity,
		ReceiptDate:      receiptDate,
		Status:           StatusActive,
		Notes:            req.Notes,
	})
	if err != nil {
		return Batch{}, err
	}
	s.logger.Info("batch created",
		slog.String("batch_id", b.ID.String()),
		slog.String("barcode", b.Barcode),
		slog.Int64("starting_quantity", b.StartingQuantity))
	return b, nil
}

// Allocate deducts qty bags under a row lock.
func (s *Service) Allocate(ctx context.Context, id uuid.UUID, qty int64) (Batch, error) {
	b, err := s.repo.Mutate(ctx, id, func(b *Batch) error {
		return b.Allocate(qty)
	})
	if err != nil {
		return Batch{}, err
	}
	s.afterAllocate(ctx, b, qty)
	return b, nil
}

// Restore returns qty bags under a row lock.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, qty int64) (Batch, error) {
	b, err := s.repo.Mutate(ctx, id, func(b *Batch) error {
		return b.Restore(qty)
	})
	if err != nil {
		return Batch{}, err
	}
	s.metrics.ObserveAllocation(-qty)
	return b, nil
}

func (s *Service) SetHold(ctx context.Context, id uuid.UUID) (Batch, error) {
	return s.repo.Mutate(ctx, id, func(b *Batch) error { return b.SetHold() })
}

func (s *Service) ClearHold(ctx context.Context, id uuid.UUID) (Batch, error) {
	return s.repo.Mutate(ctx, id, func(b *Batch) error { return b.ClearHold() })
}

func (s *Service) MarkShipped(ctx context.Context, id uuid.UUID) (Batch, error) {
	b, err := s.repo.Mutate(ctx, id, func(b *Batch) error { return b.MarkShipped() })
	if err != nil {
		return Batch{}, err
	}
	s.logger.Info("batch shipped", slog.String("batch_id", b.ID.String()), slog.String("barcode", b.Barcode))
	return b, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	return s.repo.Purge(ctx, id)
}

// afterAllocate records metrics and, on depletion, hands the batch to the
// job queue. Enqueue failures are logged, never surfaced: the allocation
// itself has already committed.
func (s *Service) afterAllocate(ctx context.Context, b Batch, qty int64) {
	s.metrics.ObserveAllocation(qty)
	if b.Status != StatusDepleted || s.notifier == nil {
		return
	}
	if err := s.notifier.BatchDepleted(ctx, b.ID, b.Barcode); err != nil {
		s.logger.Warn("enqueue depleted notification",
			slog.String("batch_id", b.ID.String()), slog.Any("error", err))
	}
}
