package warehouses

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
)

// Repository persists warehouses.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id uuid.UUID) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const warehouseColumns = `id, code, name, address, created_at, updated_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// List uses a dynamic query because filters are optional.
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM warehouses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + warehouseColumns + ` FROM warehouses` + where +
		` ORDER BY ` + shared.SortOrder(filters.SortBy, filters.SortDir, []string{"code", "name", "created_at"}, "code") +
		` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	warehouses := make([]Warehouse, 0)
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, 0, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Warehouse, error) {
	w, err := scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id))
	return w, shared.MapPgError("warehouse", err)
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO warehouses (id, code, name, address, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`,
		warehouse.ID, warehouse.Code, warehouse.Name, warehouse.Address, now)
	if err != nil {
		return Warehouse{}, shared.MapPgError("warehouse", err)
	}
	warehouse.CreatedAt = now
	warehouse.UpdatedAt = now
	return warehouse, nil
}

func (r *repository) Update(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	w, err := scanWarehouse(r.pool.QueryRow(ctx,
		`UPDATE warehouses SET code = $2, name = $3, address = $4, updated_at = NOW() WHERE id = $1 RETURNING `+warehouseColumns,
		warehouse.ID, warehouse.Code, warehouse.Name, warehouse.Address))
	return w, shared.MapPgError("warehouse", err)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		return shared.MapPgError("warehouse", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.MapPgError("warehouse", pgx.ErrNoRows)
	}
	return nil
}
