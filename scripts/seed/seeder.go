package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/masterdata/categories"
	"github.com/odyssey-erp/stockledger/internal/masterdata/products"
	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
	"github.com/odyssey-erp/stockledger/internal/masterdata/warehouses"
)

type categoryCatalog interface {
	Create(ctx context.Context, category categories.Category) (categories.Category, error)
	List(ctx context.Context, filters shared.ListFilters) ([]categories.Category, int, error)
}

type productCatalog interface {
	Create(ctx context.Context, product products.Product) (products.Product, error)
	List(ctx context.Context, filters shared.ListFilters) ([]products.Product, int, error)
}

type warehouseCatalog interface {
	Create(ctx context.Context, warehouse warehouses.Warehouse) (warehouses.Warehouse, error)
	List(ctx context.Context, filters shared.ListFilters) ([]warehouses.Warehouse, int, error)
}

type stockPoster interface {
	CreateDraft(ctx context.Context, input inventory.CreateDraftInput) (inventory.SourceDocument, error)
	Validate(ctx context.Context, id uuid.UUID, actorID string) (inventory.ValidationResult, error)
}

// Seeder loads a fixture through the application services so every rule that
// guards API writes also guards seeded data.
type Seeder struct {
	Categories categoryCatalog
	Products   productCatalog
	Warehouses warehouseCatalog
	Stock      stockPoster
	Actor      string
	Logger     *slog.Logger
}

// Summary counts what a run created.
type Summary struct {
	Categories int
	Warehouses int
	Products   int
	Receipts   int
}

// Run seeds categories, warehouses, products and, unless skipStock, one
// validated receipt per warehouse carrying its opening stock. Existing names,
// codes and SKUs are reused.
func (s *Seeder) Run(ctx context.Context, f Fixture, skipStock bool) (Summary, error) {
	var sum Summary
	if len(f.Categories) > 0 && s.Categories == nil {
		return sum, errors.New("fixture has categories but no category catalog is configured")
	}
	categoryIDs := make(map[string]uuid.UUID, len(f.Categories))
	for _, c := range f.Categories {
		created, err := s.Categories.Create(ctx, categories.Category{Name: c.Name, Description: c.Description})
		switch {
		case err == nil:
			sum.Categories++
		case errors.Is(err, shared.ErrDuplicate):
			created, err = s.findCategory(ctx, c.Name)
			if err != nil {
				return sum, err
			}
		default:
			return sum, fmt.Errorf("category %s: %w", c.Name, err)
		}
		categoryIDs[created.Name] = created.ID
	}

	warehouseIDs := make(map[string]uuid.UUID, len(f.Warehouses))
	for _, w := range f.Warehouses {
		created, err := s.Warehouses.Create(ctx, warehouses.Warehouse{Code: w.Code, Name: w.Name, Address: w.Address})
		switch {
		case err == nil:
			sum.Warehouses++
		case errors.Is(err, shared.ErrDuplicate):
			created, err = s.findWarehouse(ctx, w.Code)
			if err != nil {
				return sum, err
			}
		default:
			return sum, fmt.Errorf("warehouse %s: %w", w.Code, err)
		}
		warehouseIDs[created.Code] = created.ID
	}

	productIDs := make(map[string]uuid.UUID, len(f.Products))
	for _, p := range f.Products {
		product := products.Product{
			SKU:           p.SKU,
			Name:          p.Name,
			Description:   p.Description,
			UnitOfMeasure: p.UnitOfMeasure,
			ReorderLevel:  p.ReorderLevel,
		}
		if name := strings.TrimSpace(p.Category); name != "" {
			id := categoryIDs[name]
			product.CategoryID = &id
		}
		created, err := s.Products.Create(ctx, product)
		switch {
		case err == nil:
			sum.Products++
		case errors.Is(err, shared.ErrDuplicate):
			created, err = s.findProduct(ctx, p.SKU)
			if err != nil {
				return sum, err
			}
		default:
			return sum, fmt.Errorf("product %s: %w", p.SKU, err)
		}
		productIDs[created.SKU] = created.ID
	}

	if skipStock {
		return sum, nil
	}

	byWarehouse := map[string][]StockFixture{}
	for _, line := range f.OpeningStock {
		code := normalizeCode(line.Warehouse)
		byWarehouse[code] = append(byWarehouse[code], line)
	}
	codes := make([]string, 0, len(byWarehouse))
	for code := range byWarehouse {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		lines := byWarehouse[code]
		input := inventory.CreateDraftInput{
			Kind:    inventory.KindReceipt,
			Header:  inventory.Header{WarehouseID: warehouseIDs[code], PartnerName: lines[0].Supplier, Notes: "opening stock"},
			ActorID: s.Actor,
		}
		for _, line := range lines {
			input.Lines = append(input.Lines, inventory.LineInput{
				ProductID: productIDs[normalizeCode(line.SKU)],
				Quantity:  line.Quantity,
			})
		}
		doc, err := s.Stock.CreateDraft(ctx, input)
		if err != nil {
			return sum, fmt.Errorf("opening receipt for %s: %w", code, err)
		}
		if _, err := s.Stock.Validate(ctx, doc.ID, s.Actor); err != nil {
			return sum, fmt.Errorf("validate %s: %w", doc.ReferenceNumber, err)
		}
		sum.Receipts++
		s.logger().Info("opening stock posted",
			slog.String("warehouse", code),
			slog.String("reference", doc.ReferenceNumber),
			slog.Int("lines", len(input.Lines)))
	}
	return sum, nil
}

func (s *Seeder) findCategory(ctx context.Context, name string) (categories.Category, error) {
	name = strings.TrimSpace(name)
	items, _, err := s.Categories.List(ctx, shared.ListFilters{Search: name, Limit: shared.MaxSearchResults})
	if err != nil {
		return categories.Category{}, err
	}
	for _, c := range items {
		if c.Name == name {
			return c, nil
		}
	}
	return categories.Category{}, fmt.Errorf("category %s: %w", name, shared.ErrNotFound)
}

func (s *Seeder) findWarehouse(ctx context.Context, code string) (warehouses.Warehouse, error) {
	code = normalizeCode(code)
	items, _, err := s.Warehouses.List(ctx, shared.ListFilters{Search: code, Limit: shared.MaxSearchResults})
	if err != nil {
		return warehouses.Warehouse{}, err
	}
	for _, w := range items {
		if w.Code == code {
			return w, nil
		}
	}
	return warehouses.Warehouse{}, fmt.Errorf("warehouse %s: %w", code, shared.ErrNotFound)
}

func (s *Seeder) findProduct(ctx context.Context, sku string) (products.Product, error) {
	sku = normalizeCode(sku)
	items, _, err := s.Products.List(ctx, shared.ListFilters{Search: sku, Limit: shared.MaxSearchResults})
	if err != nil {
		return products.Product{}, err
	}
	for _, p := range items {
		if p.SKU == sku {
			return p, nil
		}
	}
	return products.Product{}, fmt.Errorf("product %s: %w", sku, shared.ErrNotFound)
}

func (s *Seeder) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
