package products

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	items      map[uuid.UUID]Product
	referenced map[uuid.UUID]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[uuid.UUID]Product{}, referenced: map[uuid.UUID]bool{}}
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Product
	for _, p := range m.items {
		if filters.Search != "" {
			needle := strings.ToLower(filters.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
				continue
			}
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filters.SortDir == shared.SortDesc {
			return matched[i].SKU > matched[j].SKU
		}
		return matched[i].SKU < matched[j].SKU
	})
	total := len(matched)
	start := min(filters.Offset, total)
	end := min(start+filters.Limit, total)
	return append([]Product{}, matched[start:end]...), total, nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.SKU == product.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	product.CreatedAt = time.Now().UTC()
	product.UpdatedAt = product.CreatedAt
	m.items[product.ID] = product
	return product, nil
}

func (m *memoryRepo) Update(ctx context.Context, product Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[product.ID]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	product.SKU = existing.SKU
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	m.items[product.ID] = product
	return product, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	if m.referenced[id] {
		return shared.ErrInUse
	}
	delete(m.items, id)
	return nil
}
