package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type memoryProduct struct {
	SKU          string
	Name         string
	ReorderLevel int64
}

type memoryWarehouse struct {
	Code string
	Name string
}

// memoryRepo keeps committed state behind mu and models row locks with one
// mutex per document and per balance pair. Writes made inside WithTx are
// staged and only applied when fn succeeds.
type memoryRepo struct {
	mu         sync.Mutex
	docs       map[uuid.UUID]SourceDocument
	balances   map[Pair]int64
	ledger     []LedgerEntry
	products   map[uuid.UUID]memoryProduct
	warehouses map[uuid.UUID]memoryWarehouse
	locks      map[string]*sync.Mutex
	nextID     atomic.Int64
	txCount    atomic.Int64

	// beforeCommit runs after fn succeeded and before staged writes apply.
	beforeCommit func(attempt int64) error
}

type memoryTx struct {
	repo *memoryRepo
	held map[string]*sync.Mutex
	keys []string
	ops  []func(*memoryRepo)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:       make(map[uuid.UUID]SourceDocument),
		balances:   make(map[Pair]int64),
		products:   make(map[uuid.UUID]memoryProduct),
		warehouses: make(map[uuid.UUID]memoryWarehouse),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (r *memoryRepo) addProduct(sku string, reorder int64) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id] = memoryProduct{SKU: sku, Name: "Product " + sku, ReorderLevel: reorder}
	return id
}

func (r *memoryRepo) addWarehouse(code string) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warehouses[id] = memoryWarehouse{Code: code, Name: "Warehouse " + code}
	return id
}

func (r *memoryRepo) ledgerLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledger)
}

func (r *memoryRepo) ledgerFor(pair Pair) []LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LedgerEntry
	for _, e := range r.ledger {
		if e.ProductID == pair.ProductID && e.WarehouseID == pair.WarehouseID {
			out = append(out, e)
		}
	}
	return out
}

func (r *memoryRepo) snapshot() ([]Balance, []LedgerEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	balances := make([]Balance, 0, len(r.balances))
	for p, q := range r.balances {
		balances = append(balances, Balance{ProductID: p.ProductID, WarehouseID: p.WarehouseID, Quantity: q})
	}
	ledger := make([]LedgerEntry, len(r.ledger))
	copy(ledger, r.ledger)
	return balances, ledger
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	attempt := r.txCount.Add(1)
	tx := &memoryTx{repo: r, held: make(map[string]*sync.Mutex)}
	defer tx.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if r.beforeCommit != nil {
		if err := r.beforeCommit(attempt); err != nil {
			return err
		}
	}
	r.mu.Lock()
	for _, op := range tx.ops {
		op(r)
	}
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) GetDocument(ctx context.Context, id uuid.UUID) (SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return SourceDocument{}, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (r *memoryRepo) ListDocuments(ctx context.Context, filter DocumentFilter) ([]SourceDocument, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []SourceDocument
	for _, doc := range r.docs {
		if filter.Kind != "" && doc.Kind != filter.Kind {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, doc.Status) {
			continue
		}
		header := copyDocument(doc)
		header.Lines = nil
		all = append(all, header)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ReferenceNumber > all[j].ReferenceNumber
	})
	total := len(all)
	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 50
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, pair Pair) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[pair], nil
}

func (r *memoryRepo) LedgerHistory(ctx context.Context, filter LedgerFilter) ([]LedgerHistoryEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LedgerHistoryEntry
	for i := len(r.ledger) - 1; i >= 0; i-- {
		e := r.ledger[i]
		if filter.ProductID != uuid.Nil && e.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != uuid.Nil && e.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ReferenceNumber != "" && e.ReferenceNumber != filter.ReferenceNumber {
			continue
		}
		p := r.products[e.ProductID]
		w := r.warehouses[e.WarehouseID]
		out = append(out, LedgerHistoryEntry{LedgerEntry: e, ProductSKU: p.SKU, ProductName: p.Name, WarehouseCode: w.Code, WarehouseName: w.Name})
	}
	total := len(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r *memoryRepo) LowStock(ctx context.Context) ([]LowStockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []LowStockItem{}
	for pair, qty := range r.balances {
		p := r.products[pair.ProductID]
		if qty > p.ReorderLevel {
			continue
		}
		w := r.warehouses[pair.WarehouseID]
		items = append(items, LowStockItem{
			ProductID: pair.ProductID, ProductSKU: p.SKU, ProductName: p.Name,
			WarehouseID: pair.WarehouseID, WarehouseCode: w.Code, WarehouseName: w.Name,
			Quantity: qty, ReorderLevel: p.ReorderLevel,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProductSKU != items[j].ProductSKU {
			return items[i].ProductSKU < items[j].ProductSKU
		}
		return items[i].WarehouseCode < items[j].WarehouseCode
	})
	return items, nil
}

func (r *memoryRepo) CountProducts(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), nil
}

func (r *memoryRepo) PendingCounts(ctx context.Context) (map[Kind]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[Kind]int{}
	for _, doc := range r.docs {
		if containsStatus(PendingStatuses, doc.Status) {
			counts[doc.Kind]++
		}
	}
	return counts, nil
}

func (r *memoryRepo) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	balances, ledger := r.snapshot()
	return findDiscrepancies(balances, ledger), nil
}

func (tx *memoryTx) lock(key string) {
	if _, ok := tx.held[key]; ok {
		return
	}
	tx.repo.mu.Lock()
	m, ok := tx.repo.locks[key]
	if !ok {
		m = &sync.Mutex{}
		tx.repo.locks[key] = m
	}
	tx.repo.mu.Unlock()
	m.Lock()
	tx.held[key] = m
	tx.keys = append(tx.keys, key)
}

func (tx *memoryTx) release() {
	for i := len(tx.keys) - 1; i >= 0; i-- {
		tx.held[tx.keys[i]].Unlock()
	}
}

func pairKey(p Pair) string {
	return fmt.Sprintf("bal:%s:%s", p.ProductID, p.WarehouseID)
}

func (tx *memoryTx) InsertDocument(ctx context.Context, doc SourceDocument) error {
	stored := copyDocument(doc)
	tx.ops = append(tx.ops, func(r *memoryRepo) { r.docs[stored.ID] = stored })
	return nil
}

func (tx *memoryTx) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (SourceDocument, error) {
	tx.lock("doc:" + id.String())
	return tx.repo.GetDocument(ctx, id)
}

func (tx *memoryTx) UpdateDocumentHeader(ctx context.Context, doc SourceDocument) error {
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		stored := r.docs[doc.ID]
		stored.PartnerName, stored.Reason, stored.Notes, stored.UpdatedAt = doc.PartnerName, doc.Reason, doc.Notes, doc.UpdatedAt
		r.docs[doc.ID] = stored
	})
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, validatedBy string, validatedAt *time.Time) (bool, error) {
	current, err := tx.repo.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status != from {
		return false, nil
	}
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		stored := r.docs[id]
		stored.Status = to
		if validatedBy != "" {
			stored.ValidatedBy = validatedBy
		}
		if validatedAt != nil {
			at := *validatedAt
			stored.ValidatedAt = &at
		}
		r.docs[id] = stored
	})
	return true, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line DocumentLine) error {
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		stored := r.docs[line.DocumentID]
		stored.Lines = append(stored.Lines, line)
		r.docs[line.DocumentID] = stored
	})
	return nil
}

func (tx *memoryTx) UpdateLine(ctx context.Context, line DocumentLine) error {
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		stored := r.docs[line.DocumentID]
		for i := range stored.Lines {
			if stored.Lines[i].ID == line.ID {
				stored.Lines[i] = line
			}
		}
		r.docs[line.DocumentID] = stored
	})
	return nil
}

func (tx *memoryTx) DeleteLine(ctx context.Context, documentID, lineID uuid.UUID) error {
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		stored := r.docs[documentID]
		kept := stored.Lines[:0]
		for _, l := range stored.Lines {
			if l.ID != lineID {
				kept = append(kept, l)
			}
		}
		stored.Lines = kept
		r.docs[documentID] = stored
	})
	return nil
}

func (tx *memoryTx) CurrentBalance(ctx context.Context, pair Pair) (int64, error) {
	return tx.repo.GetBalance(ctx, pair)
}

func (tx *memoryTx) LockBalances(ctx context.Context, pairs []Pair) (map[Pair]int64, error) {
	locked := make(map[Pair]int64, len(pairs))
	for _, p := range pairs {
		tx.lock(pairKey(p))
		qty, _ := tx.repo.GetBalance(ctx, p)
		locked[p] = qty
	}
	return locked, nil
}

func (tx *memoryTx) AppendLedger(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error) {
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		e.ID = tx.repo.nextID.Add(1)
		out[i] = e
	}
	tx.ops = append(tx.ops, func(r *memoryRepo) { r.ledger = append(r.ledger, out...) })
	return out, nil
}

func (tx *memoryTx) SetBalances(ctx context.Context, balances []Balance) error {
	for _, b := range balances {
		if _, ok := tx.held[pairKey(Pair{b.ProductID, b.WarehouseID})]; !ok {
			return fmt.Errorf("balance %s/%s written without lock", b.ProductID, b.WarehouseID)
		}
	}
	staged := append([]Balance(nil), balances...)
	tx.ops = append(tx.ops, func(r *memoryRepo) {
		for _, b := range staged {
			r.balances[Pair{b.ProductID, b.WarehouseID}] = b.Quantity
		}
	})
	return nil
}

func copyDocument(doc SourceDocument) SourceDocument {
	out := doc
	out.Lines = append([]DocumentLine(nil), doc.Lines...)
	if doc.ValidatedAt != nil {
		at := *doc.ValidatedAt
		out.ValidatedAt = &at
	}
	return out
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memoryNumberer struct {
	mu   sync.Mutex
	next map[Kind]int64
}

func newMemoryNumberer() *memoryNumberer {
	return &memoryNumberer{next: make(map[Kind]int64)}
}

func (n *memoryNumberer) Next(ctx context.Context, kind Kind) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next[kind]++
	return FormatReference(kind, n.next[kind]), nil
}

// findDiscrepancies mirrors the reconcile query over in-memory rows. Rows
// must be in append order. A pair with ledger rows but no balance, or a
// balance with no rows and a non zero quantity, is reported as well.
func findDiscrepancies(balances []Balance, entries []LedgerEntry) []Discrepancy {
	type agg struct {
		sum  int64
		last int64
		rows int
	}
	ledger := make(map[Pair]*agg)
	for _, e := range entries {
		p := Pair{ProductID: e.ProductID, WarehouseID: e.WarehouseID}
		a, ok := ledger[p]
		if !ok {
			a = &agg{}
			ledger[p] = a
		}
		a.sum += e.QuantityChange
		a.last = e.BalanceAfter
		a.rows++
	}
	held := make(map[Pair]int64, len(balances))
	for _, b := range balances {
		held[Pair{ProductID: b.ProductID, WarehouseID: b.WarehouseID}] = b.Quantity
	}

	seen := make(map[Pair]struct{}, len(held)+len(ledger))
	out := []Discrepancy{}
	check := func(p Pair) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		qty := held[p]
		a := ledger[p]
		if a == nil {
			a = &agg{}
		}
		if qty != a.sum || qty != a.last {
			out = append(out, Discrepancy{
				ProductID:        p.ProductID,
				WarehouseID:      p.WarehouseID,
				Balance:          qty,
				LedgerSum:        a.sum,
				LastBalanceAfter: a.last,
				LedgerRows:       a.rows,
			})
		}
	}
	for p := range held {
		check(p)
	}
	for p := range ledger {
		check(p)
	}
	sort.Slice(out, func(i, j int) bool {
		return Pair{out[i].ProductID, out[i].WarehouseID}.less(Pair{out[j].ProductID, out[j].WarehouseID})
	})
	return out
}
