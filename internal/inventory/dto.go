package inventory

import "github.com/google/uuid"

type lineRequest struct {
	ProductID       uuid.UUID `json:"product_id" validate:"required"`
	Quantity        int64     `json:"quantity" validate:"gte=0"`
	CountedQuantity int64     `json:"counted_quantity" validate:"gte=0"`
}

func (r lineRequest) input() LineInput {
	return LineInput{ProductID: r.ProductID, Quantity: r.Quantity, CountedQuantity: r.CountedQuantity}
}

type createDocumentRequest struct {
	Kind            string        `json:"kind" validate:"required,oneof=receipt delivery transfer adjustment"`
	WarehouseID     uuid.UUID     `json:"warehouse_id"`
	FromWarehouseID uuid.UUID     `json:"from_warehouse_id"`
	ToWarehouseID   uuid.UUID     `json:"to_warehouse_id"`
	PartnerName     string        `json:"partner_name" validate:"max=200"`
	Reason          string        `json:"reason" validate:"max=200"`
	Notes           string        `json:"notes" validate:"max=2000"`
	Lines           []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type patchDocumentRequest struct {
	PartnerName *string `json:"partner_name" validate:"omitempty,max=200"`
	Reason      *string `json:"reason" validate:"omitempty,max=200"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=waiting ready cancelled done"`
}

type listResponse[T any] struct {
	Items      []T `json:"items"`
	Pagination any `json:"pagination"`
}

type balanceResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int64     `json:"quantity"`
}
