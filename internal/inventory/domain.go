package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the source document variants.
type Kind string

const (
	// KindReceipt brings stock into a warehouse from a supplier.
	KindReceipt Kind = "receipt"
	// KindDelivery ships stock out of a warehouse to a customer.
	KindDelivery Kind = "delivery"
	// KindTransfer moves stock between two warehouses.
	KindTransfer Kind = "transfer"
	// KindAdjustment reconciles a physical count with the recorded balance.
	KindAdjustment Kind = "adjustment"
)

// Kinds lists every document kind in a stable order.
var Kinds = []Kind{KindReceipt, KindDelivery, KindTransfer, KindAdjustment}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindReceipt, KindDelivery, KindTransfer, KindAdjustment:
		return true
	}
	return false
}

// ParseKind converts raw input into a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !k.IsValid() {
		return "", &ValidationError{Field: "kind", Reason: "unknown document kind " + raw}
	}
	return k, nil
}

// OperationType labels a ledger row.
type OperationType string

const (
	OpReceipt     OperationType = "receipt"
	OpDelivery    OperationType = "delivery"
	OpTransferOut OperationType = "transfer_out"
	OpTransferIn  OperationType = "transfer_in"
	OpAdjustment  OperationType = "adjustment"
)

// IsValid reports whether o is a known operation type.
func (o OperationType) IsValid() bool {
	switch o {
	case OpReceipt, OpDelivery, OpTransferOut, OpTransferIn, OpAdjustment:
		return true
	}
	return false
}

// SourceDocument is a receipt, delivery, transfer or adjustment. Which
// warehouse fields are set depends on Kind: transfers use From/To, every
// other kind uses WarehouseID.
type SourceDocument struct {
	ID              uuid.UUID      `json:"id"`
	Kind            Kind           `json:"kind"`
	ReferenceNumber string         `json:"reference_number"`
	Status          Status         `json:"status"`
	WarehouseID     uuid.UUID      `json:"warehouse_id,omitempty"`
	FromWarehouseID uuid.UUID      `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   uuid.UUID      `json:"to_warehouse_id,omitempty"`
	PartnerName     string         `json:"partner_name,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ValidatedBy     string         `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time     `json:"validated_at,omitempty"`
	Lines           []DocumentLine `json:"lines,omitempty"`
}

// DocumentLine is a single product row of a document. Quantity is used by
// receipts, deliveries and transfers; adjustments use the counted and
// theoretical quantities instead.
type DocumentLine struct {
	ID                  uuid.UUID `json:"id"`
	DocumentID          uuid.UUID `json:"document_id"`
	Position            int       `json:"position"`
	ProductID           uuid.UUID `json:"product_id"`
	Quantity            int64     `json:"quantity,omitempty"`
	CountedQuantity     int64     `json:"counted_quantity,omitempty"`
	TheoreticalQuantity int64     `json:"theoretical_quantity,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Difference is counted minus theoretical.
func (l DocumentLine) Difference() int64 {
	return l.CountedQuantity - l.TheoreticalQuantity
}

// Header carries the kind specific document attributes.
type Header struct {
	WarehouseID     uuid.UUID
	FromWarehouseID uuid.UUID
	ToWarehouseID   uuid.UUID
	PartnerName     string
	Reason          string
	Notes           string
}

// HeaderPatch updates the editable attributes of a draft. Nil fields are left
// untouched.
type HeaderPatch struct {
	PartnerName *string
	Reason      *string
	Notes       *string
}

// LineInput describes a line to add or replace.
type LineInput struct {
	ProductID       uuid.UUID
	Quantity        int64
	CountedQuantity int64
}

// CreateDraftInput groups the parameters of CreateDraft.
type CreateDraftInput struct {
	Kind           Kind
	Header         Header
	Lines          []LineInput
	ActorID        string
	IdempotencyKey string
}

// LedgerEntry is one immutable stock movement row.
type LedgerEntry struct {
	ID              int64         `json:"id"`
	ProductID       uuid.UUID     `json:"product_id"`
	WarehouseID     uuid.UUID     `json:"warehouse_id"`
	OperationType   OperationType `json:"operation_type"`
	QuantityChange  int64         `json:"quantity_change"`
	BalanceAfter    int64         `json:"balance_after"`
	ReferenceNumber string        `json:"reference_number"`
	DocumentID      uuid.UUID     `json:"document_id"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Balance is the on hand quantity of a product in a warehouse.
type Balance struct {
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidationResult is returned by a successful Validate.
type ValidationResult struct {
	Document SourceDocument `json:"document"`
	Entries  []LedgerEntry  `json:"ledger_entries"`
	Balances []Balance      `json:"balances"`
}

// DocumentFilter narrows ListDocuments.
type DocumentFilter struct {
	Kind     Kind
	Statuses []Status
	Limit    int
	Offset   int
}

// LedgerFilter narrows ledger history queries.
type LedgerFilter struct {
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	ReferenceNumber string
	Limit           int
	Offset          int
}

// LedgerHistoryEntry is a ledger row joined with display fields.
type LedgerHistoryEntry struct {
	LedgerEntry
	ProductSKU    string `json:"product_sku"`
	ProductName   string `json:"product_name"`
	WarehouseCode string `json:"warehouse_code"`
	WarehouseName string `json:"warehouse_name"`
}

// LowStockItem is a product/warehouse pair at or below its reorder level.
type LowStockItem struct {
	ProductID     uuid.UUID `json:"product_id"`
	ProductSKU    string    `json:"product_sku"`
	ProductName   string    `json:"product_name"`
	WarehouseID   uuid.UUID `json:"warehouse_id"`
	WarehouseCode string    `json:"warehouse_code"`
	WarehouseName string    `json:"warehouse_name"`
	Quantity      int64     `json:"quantity"`
	ReorderLevel  int64     `json:"reorder_level"`
}

// Dashboard aggregates the headline counters.
type Dashboard struct {
	TotalProducts int          `json:"total_products"`
	LowStockCount int          `json:"low_stock_count"`
	Pending       map[Kind]int `json:"pending"`
}

// Discrepancy reports a balance that disagrees with its ledger.
type Discrepancy struct {
	ProductID        uuid.UUID `json:"product_id"`
	WarehouseID      uuid.UUID `json:"warehouse_id"`
	Balance          int64     `json:"balance"`
	LedgerSum        int64     `json:"ledger_sum"`
	LastBalanceAfter int64     `json:"last_balance_after"`
	LedgerRows       int       `json:"ledger_rows"`
}
