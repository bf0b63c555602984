package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML seed document.
type Fixture struct {
	Categories   []CategoryFixture  `yaml:"categories"`
	Warehouses   []WarehouseFixture `yaml:"warehouses"`
	Products     []ProductFixture   `yaml:"products"`
	OpeningStock []StockFixture     `yaml:"opening_stock"`
}

type CategoryFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type WarehouseFixture struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type ProductFixture struct {
	SKU           string `yaml:"sku"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Category      string `yaml:"category"`
	UnitOfMeasure string `yaml:"unit_of_measure"`
	ReorderLevel  int64  `yaml:"reorder_level"`
}

// StockFixture posts Quantity units of SKU into Warehouse as part of the
// warehouse's opening receipt.
type StockFixture struct {
	Warehouse string `yaml:"warehouse"`
	SKU       string `yaml:"sku"`
	Quantity  int64  `yaml:"quantity"`
	Supplier  string `yaml:"supplier"`
}

// LoadFixture decodes and cross-checks a fixture. Unknown keys are rejected.
func LoadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, errors.New("fixture is empty")
		}
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, f.check()
}

func (f Fixture) check() error {
	categories := make(map[string]bool, len(f.Categories))
	for i, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if categories[name] {
			return fmt.Errorf("categories[%d]: duplicate name %s", i, name)
		}
		categories[name] = true
	}
	warehouses := make(map[string]bool, len(f.Warehouses))
	for i, w := range f.Warehouses {
		code := strings.ToUpper(strings.TrimSpace(w.Code))
		if code == "" {
			return fmt.Errorf("warehouses[%d]: code is required", i)
		}
		if warehouses[code] {
			return fmt.Errorf("warehouses[%d]: duplicate code %s", i, code)
		}
		warehouses[code] = true
	}
	products := make(map[string]bool, len(f.Products))
	for i, p := range f.Products {
		sku := strings.ToUpper(strings.TrimSpace(p.SKU))
		if sku == "" {
			return fmt.Errorf("products[%d]: sku is required", i)
		}
		if products[sku] {
			return fmt.Errorf("products[%d]: duplicate sku %s", i, sku)
		}
		products[sku] = true
		if p.Category != "" && !categories[strings.TrimSpace(p.Category)] {
			return fmt.Errorf("products[%d]: unknown category %q", i, p.Category)
		}
	}
	for i, s := range f.OpeningStock {
		if !warehouses[strings.ToUpper(strings.TrimSpace(s.Warehouse))] {
			return fmt.Errorf("opening_stock[%d]: unknown warehouse %q", i, s.Warehouse)
		}
		if !products[strings.ToUpper(strings.TrimSpace(s.SKU))] {
			return fmt.Errorf("opening_stock[%d]: unknown sku %q", i, s.SKU)
		}
		if s.Quantity <= 0 {
			return fmt.Errorf("opening_stock[%d]: quantity must be positive", i)
		}
	}
	return nil
}
