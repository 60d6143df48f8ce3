package items

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Item, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return Item{}, shared.Validation("item code is required")
	}
	if req.StandardBagWeight <= 0 {
		return Item{}, shared.Validation("standard bag weight must be positive")
	}
	return s.repo.Create(ctx, Item{Code: code, Name: strings.TrimSpace(req.Name), StandardBagWeight: req.StandardBagWeight})
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Item, error) {
	if req.StandardBagWeight <= 0 {
		return Item{}, shared.Validation("standard bag weight must be positive")
	}
	if err := s.repo.Update(ctx, id, Item{Name: strings.TrimSpace(req.Name), StandardBagWeight: req.StandardBagWeight}); err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

// Purge hard-deletes an item. It fails while any batch references the item.
func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	return s.repo.Purge(ctx, id)
}
