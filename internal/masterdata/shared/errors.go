package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// Catalog errors share the HTTP sentinels so handlers can answer with
// httpx.RespondError directly.
var (
	ErrNotFound   = httpx.ErrNotFound
	ErrDuplicate  = httpx.ErrDuplicate
	ErrInUse      = httpx.ErrInUse
	ErrValidation = httpx.ErrValidation
)

// FieldError reports a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Required builds the error for a missing field.
func Required(field string) error {
	return &FieldError{Field: field, Message: "is required"}
}

// MapPgError translates driver errors into catalog sentinels. entity names
// the resource in the returned message.
func MapPgError(entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s %w", entity, ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%s %w", entity, ErrInUse)
	}
	return err
}
