package products

import (
	"time"

	"github.com/google/uuid"
)

// Product is a stockable catalog item. SKU is immutable once created.
type Product struct {
	ID            uuid.UUID  `json:"id"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	UnitOfMeasure string     `json:"unit_of_measure"`
	ReorderLevel  int64      `json:"reorder_level"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Changes carries a partial update. Nil fields are left untouched.
type Changes struct {
	Name          *string
	Description   *string
	CategoryID    *uuid.UUID
	ClearCategory bool
	UnitOfMeasure *string
	ReorderLevel  *int64
}

func (c Changes) apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.ClearCategory {
		p.CategoryID = nil
	} else if c.CategoryID != nil {
		id := *c.CategoryID
		p.CategoryID = &id
	}
	if c.UnitOfMeasure != nil {
		p.UnitOfMeasure = *c.UnitOfMeasure
	}
	if c.ReorderLevel != nil {
		p.ReorderLevel = *c.ReorderLevel
	}
}
