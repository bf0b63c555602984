package categories

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

// Service manages product categories.
type Service struct {
	repo Repository
}

// NewService constructs a category service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	if id == uuid.Nil {
		return Category{}, errInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	normalize(&category)
	if err := validate(category); err != nil {
		return Category{}, err
	}
	category.ID = uuid.New()
	return s.repo.Create(ctx, category)
}

// Update replaces the name and description of a category.
func (s *Service) Update(ctx context.Context, id uuid.UUID, category Category) (Category, error) {
	if id == uuid.Nil {
		return Category{}, errInvalidID
	}
	normalize(&category)
	if err := validate(category); err != nil {
		return Category{}, err
	}
	category.ID = id
	return s.repo.Update(ctx, category)
}

// Delete removes a category no product references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errInvalidID
	}
	return s.repo.Delete(ctx, id)
}
