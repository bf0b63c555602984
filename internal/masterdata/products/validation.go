package products

import (
	"strings"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

const defaultUnit = "unit"

func normalize(p *Product) {
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.UnitOfMeasure = strings.TrimSpace(p.UnitOfMeasure)
	if p.UnitOfMeasure == "" {
		p.UnitOfMeasure = defaultUnit
	}
}

func validate(p Product) error {
	if p.SKU == "" {
		return shared.Required("sku")
	}
	if p.Name == "" {
		return shared.Required("name")
	}
	if p.ReorderLevel < 0 {
		return &shared.FieldError{Field: "reorder_level", Message: "must be zero or greater"}
	}
	return nil
}
