package products

import "github.com/google/uuid"

type createRequest struct {
	SKU           string     `json:"sku" validate:"required,max=64"`
	Name          string     `json:"name" validate:"required,max=200"`
	Description   string     `json:"description" validate:"max=2000"`
	CategoryID    *uuid.UUID `json:"category_id"`
	UnitOfMeasure string     `json:"unit_of_measure" validate:"max=32"`
	ReorderLevel  int64      `json:"reorder_level" validate:"gte=0"`
}

func (r createRequest) product() Product {
	return Product{
		SKU:           r.SKU,
		Name:          r.Name,
		Description:   r.Description,
		CategoryID:    r.CategoryID,
		UnitOfMeasure: r.UnitOfMeasure,
		ReorderLevel:  r.ReorderLevel,
	}
}

type patchRequest struct {
	Name          *string    `json:"name" validate:"omitempty,max=200"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	CategoryID    *uuid.UUID `json:"category_id"`
	ClearCategory bool       `json:"clear_category"`
	UnitOfMeasure *string    `json:"unit_of_measure" validate:"omitempty,max=32"`
	ReorderLevel  *int64     `json:"reorder_level" validate:"omitempty,gte=0"`
}

func (r patchRequest) changes() Changes {
	return Changes{
		Name:          r.Name,
		Description:   r.Description,
		CategoryID:    r.CategoryID,
		ClearCategory: r.ClearCategory,
		UnitOfMeasure: r.UnitOfMeasure,
		ReorderLevel:  r.ReorderLevel,
	}
}
