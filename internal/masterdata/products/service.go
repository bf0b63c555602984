package products

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

// Service applies catalog rules on top of the repository.
type Service struct {
	repo   Repository
	cache  shared.Invalidator
	logger *slog.Logger
	newID  func() uuid.UUID
}

// Option customises a Service.
type Option func(*Service)

// WithInvalidator bumps the read-model cache after every committed write.
// SKU and reorder level feed the low-stock report and the dashboard.
func WithInvalidator(cache shared.Invalidator, logger *slog.Logger) Option {
	return func(s *Service) {
		s.cache = cache
		s.logger = logger
	}
}

// NewService constructs a product service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, newID: uuid.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a page of products and the total match count.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	if id == uuid.Nil {
		return Product{}, &shared.FieldError{Field: "id", Message: "must not be empty"}
	}
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	normalize(&product)
	if err := validate(product); err != nil {
		return Product{}, err
	}
	product.ID = s.newID()
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "product")
	return created, nil
}

// Update applies changes to an existing product. The SKU cannot change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, changes Changes) (Product, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	changes.apply(&current)
	normalize(&current)
	if err := validate(current); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Product{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "product")
	return updated, nil
}

// Delete removes a product that nothing references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return &shared.FieldError{Field: "id", Message: "must not be empty"}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "product")
	return nil
}
