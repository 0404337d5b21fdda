package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/storage"
)

const productColumns = `id, nombre, descripcion, precio, stock, activo, created_at, updated_at`

var productSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"nombre":    "nombre",
	"precio":    "precio",
	"stock":     "stock",
}

// CreateProduct inserts a new product and fills in the generated fields
func (s *Store) CreateProduct(ctx context.Context, product *storage.Product) error {
	ctx, span := tracer.Start(ctx, "Store.CreateProduct")
	defer span.End()

	query := `
		INSERT INTO productos (nombre, descripcion, precio, stock, activo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		product.Nombre,
		product.Descripcion,
		product.Precio,
		product.Stock,
		product.Activo,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	return mapError("create product", err)
}

// GetProductByID fetches a single product
func (s *Store) GetProductByID(ctx context.Context, id int64) (*storage.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM productos WHERE id = $1`, productColumns)

	product, err := scanProductRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError("get product", err)
	}
	return product, nil
}

// ListProducts returns a page of products plus the unpaginated total
func (s *Store) ListProducts(ctx context.Context, opts httputil.PaginationOptions) ([]*storage.Product, int64, error) {
	ctx, span := tracer.Start(ctx, "Store.ListProducts")
	defer span.End()

	where, args := buildProductFilter(opts)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM productos`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count products", err)
	}

	column, ok := productSortColumns[opts.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(opts.Order, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM productos%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		productColumns, where, column, order, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("list products", err)
	}
	defer rows.Close()

	products := make([]*storage.Product, 0, opts.Limit)
	for rows.Next() {
		product, err := scanProductRow(rows)
		if err != nil {
			return nil, 0, mapError("list products", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list products", err)
	}

	return products, total, nil
}

// UpdateProduct persists all mutable product fields
func (s *Store) UpdateProduct(ctx context.Context, product *storage.Product) error {
	query := `
		UPDATE productos
		SET nombre = $2, descripcion = $3, precio = $4, stock = $5, activo = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		product.ID,
		product.Nombre,
		product.Descripcion,
		product.Precio,
		product.Stock,
		product.Activo,
	).Scan(&product.UpdatedAt)

	return mapError("update product", err)
}

// DeleteProduct removes a product permanently
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM productos WHERE id = $1`, id)
	if err != nil {
		return mapError("delete product", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError("delete product", err)
	}
	if affected == 0 {
		return mapError("delete product", sql.ErrNoRows)
	}
	return nil
}

// CountProducts returns the total product count
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM productos`).Scan(&total)
	if err != nil {
		return 0, mapError("count products", err)
	}
	return total, nil
}

func buildProductFilter(opts httputil.PaginationOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		clauses = append(clauses, fmt.Sprintf(
			"(nombre ILIKE $%d OR descripcion ILIKE $%d)", len(args)+1, len(args)+2))
		args = append(args, pattern, pattern)
	}
	if opts.Activo != nil {
		clauses = append(clauses, fmt.Sprintf("activo = $%d", len(args)+1))
		args = append(args, *opts.Activo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProductRow(row rowScanner) (*storage.Product, error) {
	product := &storage.Product{}
	err := row.Scan(
		&product.ID,
		&product.Nombre,
		&product.Descripcion,
		&product.Precio,
		&product.Stock,
		&product.Activo,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}
