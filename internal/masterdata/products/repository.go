package products

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
)

// Repository persists products.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, sku, name, description, category_id, unit_of_measure, reorder_level, created_at, updated_at`

const categoryConstraint = "products_category_id_fkey"

var sortColumns = []string{"sku", "name", "reorder_level", "created_at"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitOfMeasure, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY ` + shared.SortOrder(filters.SortBy, filters.SortDir, sortColumns, "sku")
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return p, shared.MapPgError("product", err)
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO products (id, sku, name, description, category_id, unit_of_measure, reorder_level, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.db.Exec(ctx, query, product.ID, product.SKU, product.Name, product.Description,
		product.CategoryID, product.UnitOfMeasure, product.ReorderLevel, now)
	if err != nil {
		return Product{}, mapWriteError(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, product Product) (Product, error) {
	const query = `UPDATE products
SET name = $2, description = $3, category_id = $4, unit_of_measure = $5, reorder_level = $6, updated_at = NOW()
WHERE id = $1
RETURNING ` + productColumns
	p, err := scanProduct(r.db.QueryRow(ctx, query, product.ID, product.Name, product.Description,
		product.CategoryID, product.UnitOfMeasure, product.ReorderLevel))
	return p, mapWriteError(err)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError("product", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.MapPgError("product", pgx.ErrNoRows)
	}
	return nil
}

// mapWriteError reports a dangling category reference as a field error; on
// insert or update the products side of the foreign key is the one missing.
func mapWriteError(err error) error {
	if db.IsForeignKeyViolation(err) && db.ConstraintName(err) == categoryConstraint {
		return &shared.FieldError{Field: "category_id", Message: "does not exist"}
	}
	return shared.MapPgError("product", err)
}
