package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound indicates a missing document or line.
var ErrNotFound = errors.New("inventory: not found")

// ValidationError reports malformed input. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "inventory: invalid input: " + e.Reason
	}
	return fmt.Sprintf("inventory: invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation the document status forbids.
type InvalidStateError struct {
	DocumentID uuid.UUID
	Status     Status
	Op         string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("inventory: cannot %s document %s in status %s", e.Op, e.DocumentID, e.Status)
}

// InsufficientStockError reports an outgoing movement larger than the balance
// it draws from.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %s in warehouse %s: requested %d, available %d",
		e.ProductID, e.WarehouseID, e.Requested, e.Available)
}

// Shortfall is the quantity missing to satisfy the request.
func (e *InsufficientStockError) Shortfall() int64 {
	return e.Requested - e.Available
}

// ConflictError wraps a serialization failure or deadlock. The unit of work
// was rolled back and may be retried.
type ConflictError struct {
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("inventory: concurrent update conflict after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("inventory: concurrent update conflict: %v", e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func isConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
