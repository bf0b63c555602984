package inventory

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// Pair identifies a balance row.
type Pair struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
}

func (p Pair) less(o Pair) bool {
	if c := compareUUID(p.ProductID, o.ProductID); c != 0 {
		return c < 0
	}
	return compareUUID(p.WarehouseID, o.WarehouseID) < 0
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Effect is a signed balance change produced by one document line.
type Effect struct {
	Pair
	Operation OperationType
	Change    int64
}

type effectFunc func(doc SourceDocument, line DocumentLine) []Effect

var effectTable = map[Kind]effectFunc{
	KindReceipt: func(doc SourceDocument, line DocumentLine) []Effect {
		return []Effect{{Pair: Pair{line.ProductID, doc.WarehouseID}, Operation: OpReceipt, Change: line.Quantity}}
	},
	KindDelivery: func(doc SourceDocument, line DocumentLine) []Effect {
		return []Effect{{Pair: Pair{line.ProductID, doc.WarehouseID}, Operation: OpDelivery, Change: -line.Quantity}}
	},
	KindTransfer: func(doc SourceDocument, line DocumentLine) []Effect {
		return []Effect{
			{Pair: Pair{line.ProductID, doc.FromWarehouseID}, Operation: OpTransferOut, Change: -line.Quantity},
			{Pair: Pair{line.ProductID, doc.ToWarehouseID}, Operation: OpTransferIn, Change: line.Quantity},
		}
	},
	KindAdjustment: func(doc SourceDocument, line DocumentLine) []Effect {
		delta := line.Difference()
		if delta == 0 {
			return nil
		}
		return []Effect{{Pair: Pair{line.ProductID, doc.WarehouseID}, Operation: OpAdjustment, Change: delta}}
	},
}

// ComputeEffects returns the balance changes of doc in line order. It does not
// look at current balances.
func ComputeEffects(doc SourceDocument) ([]Effect, error) {
	fn, ok := effectTable[doc.Kind]
	if !ok {
		return nil, &ValidationError{Field: "kind", Reason: "unknown document kind " + string(doc.Kind)}
	}
	effects := make([]Effect, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		effects = append(effects, fn(doc, line)...)
	}
	return effects, nil
}

// touchedPairs returns the distinct pairs of effects sorted so that every
// transaction acquires row locks in the same order.
func touchedPairs(effects []Effect) []Pair {
	seen := make(map[Pair]struct{}, len(effects))
	pairs := make([]Pair, 0, len(effects))
	for _, e := range effects {
		if _, ok := seen[e.Pair]; ok {
			continue
		}
		seen[e.Pair] = struct{}{}
		pairs = append(pairs, e.Pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].less(pairs[j]) })
	return pairs
}

// applyEffects walks effects against the locked balances and returns the
// ledger rows and resulting balances. The first outgoing effect that would
// drive a balance below zero aborts with InsufficientStockError; an incoming
// one that would overflow aborts with ValidationError.
func applyEffects(doc SourceDocument, effects []Effect, locked map[Pair]int64, actorID string) ([]LedgerEntry, map[Pair]int64, error) {
	running := make(map[Pair]int64, len(locked))
	for pair, qty := range locked {
		running[pair] = qty
	}
	entries := make([]LedgerEntry, 0, len(effects))
	for _, e := range effects {
		current := running[e.Pair]
		if e.Change > 0 && current > math.MaxInt64-e.Change {
			return nil, nil, &ValidationError{Field: "quantity", Reason: "resulting balance exceeds the supported maximum"}
		}
		next := current + e.Change
		if e.Change < 0 && next < 0 {
			return nil, nil, &InsufficientStockError{
				ProductID:   e.ProductID,
				WarehouseID: e.WarehouseID,
				Requested:   -e.Change,
				Available:   current,
			}
		}
		running[e.Pair] = next
		entries = append(entries, LedgerEntry{
			ProductID:       e.ProductID,
			WarehouseID:     e.WarehouseID,
			OperationType:   e.Operation,
			QuantityChange:  e.Change,
			BalanceAfter:    next,
			ReferenceNumber: doc.ReferenceNumber,
			DocumentID:      doc.ID,
			CreatedBy:       actorID,
		})
	}
	return entries, running, nil
}
