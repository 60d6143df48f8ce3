package customers

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Customer, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpsertRequest) (Customer, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Customer{}, err
	}
	if err := s.repo.Update(ctx, id, c); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
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

func fromRequest(req UpsertRequest) (Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Customer{}, shared.Validation("customer name is required")
	}
	return Customer{
		Name:         name,
		Code:         strings.TrimSpace(req.Code),
		Address:      req.Address,
		City:         req.City,
		State:        strings.ToUpper(req.State),
		Zip:          req.Zip,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	}, nil
}
