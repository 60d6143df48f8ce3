package suppliers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bagline-erp/bagline/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Supplier, error) {
	sup := Supplier{
		Name:         strings.TrimSpace(req.Name),
		BOLPrefix:    strings.ToUpper(strings.TrimSpace(req.BOLPrefix)),
		NextBOLNo:    req.NextBOLNo,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	}
	if err := s.validate(sup); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, sup)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Supplier, error) {
	sup := Supplier{
		Name:         strings.TrimSpace(req.Name),
		BOLPrefix:    strings.ToUpper(strings.TrimSpace(req.BOLPrefix)),
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	}
	if err := s.validate(sup); err != nil {
		return Supplier{}, err
	}
	if err := s.repo.Update(ctx, id, sup); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

// Purge hard-deletes a supplier. It fails while batches or BOLs reference it.
func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	return s.repo.Purge(ctx, id)
}

func (s *Service) validate(sup Supplier) error {
	if sup.Name == "" {
		return shared.Validation("supplier name is required")
	}
	if sup.BOLPrefix == "" {
		return shared.Validation("BOL prefix is required")
	}
	return nil
}
