package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/masterdata/categories"
	"github.com/odyssey-erp/stockledger/internal/masterdata/products"
	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
	"github.com/odyssey-erp/stockledger/internal/masterdata/warehouses"
)

func TestDemoFixtureLoads(t *testing.T) {
	fh, err := os.Open("fixtures/demo.yaml")
	require.NoError(t, err)
	defer fh.Close()

	f, err := LoadFixture(fh)
	require.NoError(t, err)
	assert.Len(t, f.Categories, 2)
	assert.Len(t, f.Warehouses, 2)
	assert.Len(t, f.Products, 3)
	assert.Len(t, f.OpeningStock, 3)
}

func TestLoadFixtureRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"unknown key":       "warehouses: []\nbins: []\n",
		"duplicate code":    "warehouses:\n  - {code: MAIN}\n  - {code: main}\n",
		"missing sku":       "products:\n  - {name: Widget}\n",
		"unknown category":  "categories:\n  - {name: Tools}\nproducts:\n  - {sku: A, category: Toys}\n",
		"duplicate name":    "categories:\n  - {name: Tools}\n  - {name: ' Tools '}\n",
		"unknown warehouse": "products:\n  - {sku: A}\nopening_stock:\n  - {warehouse: X, sku: A, quantity: 1}\n",
		"unknown sku":       "warehouses:\n  - {code: W}\nopening_stock:\n  - {warehouse: W, sku: B, quantity: 1}\n",
		"zero quantity":     "warehouses:\n  - {code: W}\nproducts:\n  - {sku: A}\nopening_stock:\n  - {warehouse: W, sku: A, quantity: 0}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFixture(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

type fakeCategories struct{ items []categories.Category }

func (f *fakeCategories) Create(ctx context.Context, c categories.Category) (categories.Category, error) {
	for _, existing := range f.items {
		if existing.Name == c.Name {
			return categories.Category{}, shared.ErrDuplicate
		}
	}
	c.ID = uuid.New()
	f.items = append(f.items, c)
	return c, nil
}

func (f *fakeCategories) List(ctx context.Context, filters shared.ListFilters) ([]categories.Category, int, error) {
	return f.items, len(f.items), nil
}

type fakeProducts struct{ items []products.Product }

func (f *fakeProducts) Create(ctx context.Context, p products.Product) (products.Product, error) {
	p.SKU = normalizeCode(p.SKU)
	for _, existing := range f.items {
		if existing.SKU == p.SKU {
			return products.Product{}, shared.ErrDuplicate
		}
	}
	p.ID = uuid.New()
	f.items = append(f.items, p)
	return p, nil
}

func (f *fakeProducts) List(ctx context.Context, filters shared.ListFilters) ([]products.Product, int, error) {
	return f.items, len(f.items), nil
}

type fakeWarehouses struct{ items []warehouses.Warehouse }

func (f *fakeWarehouses) Create(ctx context.Context, w warehouses.Warehouse) (warehouses.Warehouse, error) {
	w.Code = normalizeCode(w.Code)
	for _, existing := range f.items {
		if existing.Code == w.Code {
			return warehouses.Warehouse{}, shared.ErrDuplicate
		}
	}
	w.ID = uuid.New()
	f.items = append(f.items, w)
	return w, nil
}

func (f *fakeWarehouses) List(ctx context.Context, filters shared.ListFilters) ([]warehouses.Warehouse, int, error) {
	return f.items, len(f.items), nil
}

type fakeStock struct {
	drafts    []inventory.CreateDraftInput
	validated []uuid.UUID
}

func (f *fakeStock) CreateDraft(ctx context.Context, input inventory.CreateDraftInput) (inventory.SourceDocument, error) {
	f.drafts = append(f.drafts, input)
	return inventory.SourceDocument{ID: uuid.New(), Kind: input.Kind, ReferenceNumber: "REC-000001"}, nil
}

func (f *fakeStock) Validate(ctx context.Context, id uuid.UUID, actorID string) (inventory.ValidationResult, error) {
	f.validated = append(f.validated, id)
	return inventory.ValidationResult{}, nil
}

func TestSeederPostsOneReceiptPerWarehouse(t *testing.T) {
	fh, err := os.Open("fixtures/demo.yaml")
	require.NoError(t, err)
	defer fh.Close()
	fixture, err := LoadFixture(fh)
	require.NoError(t, err)

	stock := &fakeStock{}
	cats := &fakeCategories{}
	prods := &fakeProducts{}
	seeder := &Seeder{Categories: cats, Products: prods, Warehouses: &fakeWarehouses{}, Stock: stock, Actor: "seed"}
	sum, err := seeder.Run(context.Background(), fixture, false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Categories: 2, Warehouses: 2, Products: 3, Receipts: 2}, sum)
	require.NotNil(t, prods.items[0].CategoryID)
	assert.Equal(t, cats.items[0].ID, *prods.items[0].CategoryID)
	assert.Nil(t, prods.items[1].CategoryID)
	require.Len(t, stock.drafts, 2)
	assert.Len(t, stock.validated, 2)

	// EAST sorts before MAIN.
	assert.Equal(t, inventory.KindReceipt, stock.drafts[0].Kind)
	assert.Equal(t, "Gizmo Supply", stock.drafts[0].Header.PartnerName)
	assert.Len(t, stock.drafts[1].Lines, 2)
	assert.Equal(t, int64(120), stock.drafts[1].Lines[0].Quantity)
}

func TestSeederReusesExistingCatalog(t *testing.T) {
	fixture := Fixture{
		Categories: []CategoryFixture{{Name: "Hardware"}},
		Warehouses: []WarehouseFixture{{Code: "MAIN", Name: "Main"}},
		Products:   []ProductFixture{{SKU: "WID-1", Name: "Widget", Category: "Hardware"}},
	}
	cats := &fakeCategories{}
	prods := &fakeProducts{}
	whs := &fakeWarehouses{}
	seeder := &Seeder{Categories: cats, Products: prods, Warehouses: whs, Stock: &fakeStock{}, Actor: "seed"}

	first, err := seeder.Run(context.Background(), fixture, true)
	require.NoError(t, err)
	assert.Equal(t, Summary{Categories: 1, Warehouses: 1, Products: 1}, first)

	second, err := seeder.Run(context.Background(), fixture, true)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, second)
	assert.Len(t, prods.items, 1)
	assert.Len(t, whs.items, 1)
	assert.Len(t, cats.items, 1)

	_, err = (&Seeder{Products: prods, Warehouses: whs, Stock: &fakeStock{}}).Run(context.Background(), fixture, true)
	require.Error(t, err)
}
