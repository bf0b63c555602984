package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// RepositoryOption tunes Repository.
type RepositoryOption func(*Repository)

// WithLockTimeout bounds how long a transaction waits on a balance row lock.
// Zero keeps the server default.
func WithLockTimeout(d time.Duration) RepositoryOption {
	return func(r *Repository) { r.lockTimeout = d }
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, opts ...RepositoryOption) *Repository {
	r := &Repository{pool: pool}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TxRepository exposes transactional operations used by service. Balance
// writes are only reachable through it.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc SourceDocument) error
	GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (SourceDocument, error)
	UpdateDocumentHeader(ctx context.Context, doc SourceDocument) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, validatedBy string, validatedAt *time.Time) (bool, error)
	InsertLine(ctx context.Context, line DocumentLine) error
	UpdateLine(ctx context.Context, line DocumentLine) error
	DeleteLine(ctx context.Context, documentID, lineID uuid.UUID) error
	CurrentBalance(ctx context.Context, pair Pair) (int64, error)
	LockBalances(ctx context.Context, pairs []Pair) (map[Pair]int64, error)
	AppendLedger(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error)
	SetBalances(ctx context.Context, balances []Balance) error
}

type txRepository struct {
	tx pgx.Tx
}

const documentColumns = `id, kind, reference_number, status, warehouse_id, from_warehouse_id, to_warehouse_id,
partner_name, reason, notes, created_by, created_at, updated_at, validated_by, validated_at`

// WithTx executes the callback inside repeatable-read transaction. Aborts
// caused by concurrent writers or an expired lock wait surface as
// *ConflictError.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	err := db.WithTxOptions(ctx, r.pool, db.TxOptions{LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsRetryable(err) {
		return &ConflictError{Err: err}
	}
	return err
}

// GetDocument loads a document with its lines.
func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (SourceDocument, error) {
	if r == nil {
		return SourceDocument{}, errors.New("inventory repository not initialised")
	}
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM stock_documents WHERE id=$1`, id))
	if err != nil {
		return SourceDocument{}, err
	}
	lines, err := loadLines(ctx, r.pool, id)
	if err != nil {
		return SourceDocument{}, err
	}
	doc.Lines = lines
	return doc, nil
}

// ListDocuments returns document headers newest first together with the
// unpaginated total.
func (r *Repository) ListDocuments(ctx context.Context, filter DocumentFilter) ([]SourceDocument, int, error) {
	if r == nil {
		return nil, 0, errors.New("inventory repository not initialised")
	}
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + ` FROM stock_documents` + where + ` ORDER BY created_at DESC, reference_number DESC`
	limit, offset := shared.ClampPage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	docs := []SourceDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// GetBalance returns the committed balance, 0 when no row exists.
func (r *Repository) GetBalance(ctx context.Context, pair Pair) (int64, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	return currentBalance(ctx, r.pool, pair)
}

// LedgerHistory lists ledger rows newest first joined with product and
// warehouse display fields.
func (r *Repository) LedgerHistory(ctx context.Context, filter LedgerFilter) ([]LedgerHistoryEntry, int, error) {
	if r == nil {
		return nil, 0, errors.New("inventory repository not initialised")
	}
	where := ` WHERE 1=1`
	args := []any{}
	if filter.ProductID != uuid.Nil {
		args = append(args, filter.ProductID)
		where += ` AND l.product_id = $` + strconv.Itoa(len(args))
	}
	if filter.WarehouseID != uuid.Nil {
		args = append(args, filter.WarehouseID)
		where += ` AND l.warehouse_id = $` + strconv.Itoa(len(args))
	}
	if ref := strings.TrimSpace(filter.ReferenceNumber); ref != "" {
		args = append(args, ref)
		where += ` AND l.reference_number = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger l`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := shared.ClampPage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := `SELECT l.id, l.product_id, l.warehouse_id, l.operation_type, l.quantity_change, l.balance_after,
l.reference_number, l.document_id, l.created_by, l.created_at, p.sku, p.name, w.code, w.name
FROM stock_ledger l
JOIN products p ON p.id = l.product_id
JOIN warehouses w ON w.id = l.warehouse_id` + where + `
ORDER BY l.created_at DESC, l.id DESC
LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries := []LedgerHistoryEntry{}
	for rows.Next() {
		var e LedgerHistoryEntry
		var op string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.WarehouseID, &op, &e.QuantityChange, &e.BalanceAfter,
			&e.ReferenceNumber, &e.DocumentID, &e.CreatedBy, &e.CreatedAt,
			&e.ProductSKU, &e.ProductName, &e.WarehouseCode, &e.WarehouseName); err != nil {
			return nil, 0, err
		}
		e.OperationType = OperationType(op)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// LowStock lists balance rows at or below the product reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]LowStockItem, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, w.id, w.code, w.name, b.quantity, p.reorder_level
FROM stock_balances b
JOIN products p ON p.id = b.product_id
JOIN warehouses w ON w.id = b.warehouse_id
WHERE b.quantity <= p.reorder_level
ORDER BY p.sku, w.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.ProductSKU, &item.ProductName, &item.WarehouseID,
			&item.WarehouseCode, &item.WarehouseName, &item.Quantity, &item.ReorderLevel); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountProducts returns the catalog size.
func (r *Repository) CountProducts(ctx context.Context) (int, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

// PendingCounts counts draft and waiting documents per kind.
func (r *Repository) PendingCounts(ctx context.Context) (map[Kind]int, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	statuses := make([]string, len(PendingStatuses))
	for i, s := range PendingStatuses {
		statuses[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `SELECT kind, COUNT(*) FROM stock_documents WHERE status = ANY($1) GROUP BY kind`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Reconcile compares every balance with the sum and the latest balance_after
// of its ledger rows.
func (r *Repository) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `WITH sums AS (
    SELECT product_id, warehouse_id, SUM(quantity_change) AS total, COUNT(*) AS n
    FROM stock_ledger GROUP BY product_id, warehouse_id
), latest AS (
    SELECT DISTINCT ON (product_id, warehouse_id) product_id, warehouse_id, balance_after
    FROM stock_ledger ORDER BY product_id, warehouse_id, id DESC
)
SELECT COALESCE(b.product_id, s.product_id), COALESCE(b.warehouse_id, s.warehouse_id),
       COALESCE(b.quantity, 0), COALESCE(s.total, 0)::BIGINT, COALESCE(l.balance_after, 0), COALESCE(s.n, 0)
FROM stock_balances b
FULL OUTER JOIN sums s ON s.product_id = b.product_id AND s.warehouse_id = b.warehouse_id
LEFT JOIN latest l ON l.product_id = COALESCE(b.product_id, s.product_id) AND l.warehouse_id = COALESCE(b.warehouse_id, s.warehouse_id)
WHERE COALESCE(b.quantity, 0) <> COALESCE(s.total, 0)
   OR COALESCE(b.quantity, 0) <> COALESCE(l.balance_after, 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Discrepancy{}
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.ProductID, &d.WarehouseID, &d.Balance, &d.LedgerSum, &d.LastBalanceAfter, &d.LedgerRows); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertDocument(ctx context.Context, doc SourceDocument) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_documents (id, kind, reference_number, status, warehouse_id, from_warehouse_id, to_warehouse_id,
partner_name, reason, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		doc.ID, string(doc.Kind), doc.ReferenceNumber, string(doc.Status), nullUUID(doc.WarehouseID),
		nullUUID(doc.FromWarehouseID), nullUUID(doc.ToWarehouseID), doc.PartnerName, doc.Reason, doc.Notes,
		doc.CreatedBy, doc.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	for _, line := range doc.Lines {
		if err := r.InsertLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (SourceDocument, error) {
	doc, err := scanDocument(r.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM stock_documents WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return SourceDocument{}, err
	}
	lines, err := loadLines(ctx, r.tx, id)
	if err != nil {
		return SourceDocument{}, err
	}
	doc.Lines = lines
	return doc, nil
}

func (r *txRepository) UpdateDocumentHeader(ctx context.Context, doc SourceDocument) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_documents SET partner_name=$2, reason=$3, notes=$4, updated_at=NOW() WHERE id=$1`,
		doc.ID, doc.PartnerName, doc.Reason, doc.Notes)
	return err
}

func (r *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, validatedBy string, validatedAt *time.Time) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_documents
SET status=$3, validated_by=COALESCE($4, validated_by), validated_at=COALESCE($5, validated_at), updated_at=NOW()
WHERE id=$1 AND status=$2`, id, string(from), string(to), nullString(validatedBy), validatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) InsertLine(ctx context.Context, line DocumentLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_document_lines (id, document_id, position, product_id, quantity, counted_quantity, theoretical_quantity, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, line.ID, line.DocumentID, line.Position, line.ProductID, line.Quantity,
		line.CountedQuantity, line.TheoreticalQuantity, line.CreatedAt)
	return mapWriteError(err)
}

func (r *txRepository) UpdateLine(ctx context.Context, line DocumentLine) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_document_lines SET product_id=$3, quantity=$4, counted_quantity=$5, theoretical_quantity=$6
WHERE id=$1 AND document_id=$2`, line.ID, line.DocumentID, line.ProductID, line.Quantity, line.CountedQuantity, line.TheoreticalQuantity)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteLine(ctx context.Context, documentID, lineID uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM stock_document_lines WHERE id=$1 AND document_id=$2`, lineID, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) CurrentBalance(ctx context.Context, pair Pair) (int64, error) {
	return currentBalance(ctx, r.tx, pair)
}

// LockBalances materialises missing rows at zero and locks every pair in the
// given order.
func (r *txRepository) LockBalances(ctx context.Context, pairs []Pair) (map[Pair]int64, error) {
	locked := make(map[Pair]int64, len(pairs))
	for _, pair := range pairs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
VALUES ($1,$2,0,NOW()) ON CONFLICT (product_id, warehouse_id) DO NOTHING`, pair.ProductID, pair.WarehouseID); err != nil {
			return nil, mapWriteError(err)
		}
		var qty int64
		if err := r.tx.QueryRow(ctx, `SELECT quantity FROM stock_balances WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`,
			pair.ProductID, pair.WarehouseID).Scan(&qty); err != nil {
			return nil, err
		}
		locked[pair] = qty
	}
	return locked, nil
}

func (r *txRepository) AppendLedger(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO stock_ledger (product_id, warehouse_id, operation_type, quantity_change, balance_after, reference_number, document_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`, e.ProductID, e.WarehouseID, string(e.OperationType), e.QuantityChange,
			e.BalanceAfter, e.ReferenceNumber, e.DocumentID, e.CreatedBy, e.CreatedAt)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		if err := results.QueryRow().Scan(&e.ID); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("inventory: append ledger: %w", err)
		}
		out[i] = e
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *txRepository) SetBalances(ctx context.Context, balances []Balance) error {
	for _, b := range balances {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=EXCLUDED.updated_at`,
			b.ProductID, b.WarehouseID, b.Quantity, b.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func currentBalance(ctx context.Context, q rowQuerier, pair Pair) (int64, error) {
	var qty int64
	err := q.QueryRow(ctx, `SELECT quantity FROM stock_balances WHERE product_id=$1 AND warehouse_id=$2`,
		pair.ProductID, pair.WarehouseID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func loadLines(ctx context.Context, q rowQuerier, documentID uuid.UUID) ([]DocumentLine, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, position, product_id, quantity, counted_quantity, theoretical_quantity, created_at
FROM stock_document_lines WHERE document_id=$1 ORDER BY position`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []DocumentLine{}
	for rows.Next() {
		var l DocumentLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Position, &l.ProductID, &l.Quantity, &l.CountedQuantity,
			&l.TheoreticalQuantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanDocument(row pgx.Row) (SourceDocument, error) {
	var doc SourceDocument
	var kind, status string
	var warehouseID, fromID, toID *uuid.UUID
	var validatedBy *string
	err := row.Scan(&doc.ID, &kind, &doc.ReferenceNumber, &status, &warehouseID, &fromID, &toID,
		&doc.PartnerName, &doc.Reason, &doc.Notes, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt,
		&validatedBy, &doc.ValidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SourceDocument{}, ErrNotFound
		}
		return SourceDocument{}, err
	}
	doc.Kind = Kind(kind)
	doc.Status = Status(status)
	if warehouseID != nil {
		doc.WarehouseID = *warehouseID
	}
	if fromID != nil {
		doc.FromWarehouseID = *fromID
	}
	if toID != nil {
		doc.ToWarehouseID = *toID
	}
	if validatedBy != nil {
		doc.ValidatedBy = *validatedBy
	}
	return doc, nil
}

// mapWriteError turns foreign key violations into validation errors naming
// the offending column.
func mapWriteError(err error) error {
	if err == nil || !db.IsForeignKeyViolation(err) {
		return err
	}
	field := "reference"
	constraint := db.ConstraintName(err)
	switch {
	case strings.Contains(constraint, "product_id"):
		field = "product_id"
	case strings.Contains(constraint, "from_warehouse_id"):
		field = "from_warehouse_id"
	case strings.Contains(constraint, "to_warehouse_id"):
		field = "to_warehouse_id"
	case strings.Contains(constraint, "warehouse_id"):
		field = "warehouse_id"
	}
	return &ValidationError{Field: field, Reason: "references an unknown record"}
}

func nullUUID(value uuid.UUID) any {
	if value == uuid.Nil {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
