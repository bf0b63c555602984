package categories

import (
	"strings"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

var errInvalidID = &shared.FieldError{Field: "id", Message: "must not be empty"}

func normalize(c *Category) {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
}

func validate(c Category) error {
	if c.Name == "" {
		return shared.Required("name")
	}
	return nil
}
