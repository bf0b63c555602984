package warehouses

type warehouseRequest struct {
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

func (r warehouseRequest) warehouse() Warehouse {
	return Warehouse{Code: r.Code, Name: r.Name, Address: r.Address}
}
