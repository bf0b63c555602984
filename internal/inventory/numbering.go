package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Numberer hands out reference numbers.
type Numberer interface {
	Next(ctx context.Context, kind Kind) (string, error)
}

var referencePrefixes = map[Kind]string{
	KindReceipt:    "REC",
	KindDelivery:   "DEL",
	KindTransfer:   "TRF",
	KindAdjustment: "ADJ",
}

// FormatReference renders the n-th reference number of kind, e.g. REC-000042.
func FormatReference(kind Kind, n int64) string {
	return fmt.Sprintf("%s-%06d", referencePrefixes[kind], n)
}

// SequenceNumberer allocates numbers from the document_sequences table. Each
// call is a single auto-committed upsert so concurrent callers serialize on
// the kind's row and never observe the same value. Numbers handed to drafts
// that later fail to persist are not reused.
type SequenceNumberer struct {
	pool *pgxpool.Pool
}

// NewSequenceNumberer constructs SequenceNumberer.
func NewSequenceNumberer(pool *pgxpool.Pool) *SequenceNumberer {
	return &SequenceNumberer{pool: pool}
}

// Next returns the next reference number for kind.
func (n *SequenceNumberer) Next(ctx context.Context, kind Kind) (string, error) {
	if n == nil || n.pool == nil {
		return "", errors.New("inventory numberer not initialised")
	}
	if !kind.IsValid() {
		return "", &ValidationError{Field: "kind", Reason: "unknown document kind " + string(kind)}
	}
	var value int64
	err := n.pool.QueryRow(ctx, `INSERT INTO document_sequences (kind, last_value) VALUES ($1, 1)
ON CONFLICT (kind) DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`, string(kind)).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("inventory: next reference: %w", err)
	}
	return FormatReference(kind, value), nil
}
