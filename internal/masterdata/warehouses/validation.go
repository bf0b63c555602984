package warehouses

import (
	"strings"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

var errInvalidID = &shared.FieldError{Field: "id", Message: "must not be empty"}

func normalize(w *Warehouse) {
	w.Code = strings.ToUpper(strings.TrimSpace(w.Code))
	w.Name = strings.TrimSpace(w.Name)
	w.Address = strings.TrimSpace(w.Address)
}

func validate(w Warehouse) error {
	if w.Code == "" {
		return shared.Required("code")
	}
	if strings.ContainsAny(w.Code, " \t") {
		return &shared.FieldError{Field: "code", Message: "must not contain whitespace"}
	}
	if w.Name == "" {
		return shared.Required("name")
	}
	return nil
}
