package sizes

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

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Size, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Size, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Size, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return Size{}, shared.Validation("size label is required")
	}
	return s.repo.Create(ctx, label)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpsertRequest) (Size, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return Size{}, shared.Validation("size label is required")
	}
	if err := s.repo.Update(ctx, id, label); err != nil {
		return Size{}, err
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
