package warehouses

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

// Service manages warehouses.
type Service struct {
	repo   Repository
	cache  shared.Invalidator
	logger *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithInvalidator bumps the read-model cache after every committed write.
func WithInvalidator(cache shared.Invalidator, logger *slog.Logger) Option {
	return func(s *Service) {
		s.cache = cache
		s.logger = logger
	}
}

// NewService constructs a warehouse service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Warehouse, error) {
	if id == uuid.Nil {
		return Warehouse{}, errInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	normalize(&warehouse)
	if err := validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	warehouse.ID = uuid.New()
	created, err := s.repo.Create(ctx, warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "warehouse")
	return created, nil
}

// Update replaces the mutable fields of a warehouse.
func (s *Service) Update(ctx context.Context, id uuid.UUID, warehouse Warehouse) (Warehouse, error) {
	if id == uuid.Nil {
		return Warehouse{}, errInvalidID
	}
	normalize(&warehouse)
	if err := validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	warehouse.ID = id
	updated, err := s.repo.Update(ctx, warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "warehouse")
	return updated, nil
}

// Delete removes a warehouse no document, balance or ledger row points at.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	shared.Invalidate(ctx, s.cache, s.logger, "warehouse")
	return nil
}
