package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/storage"
)

func productRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "nombre", "descripcion", "precio", "stock", "activo", "created_at", "updated_at",
	})
}

func TestCreateProduct(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	desc := "Teclado mecánico"
	mock.ExpectQuery(`INSERT INTO productos`).
		WithArgs("Teclado", &desc, 59.99, 100, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))

	product := &storage.Product{
		Nombre:      "Teclado",
		Descripcion: &desc,
		Precio:      59.99,
		Stock:       100,
		Activo:      true,
	}
	require.NoError(t, store.CreateProduct(context.Background(), product))
	assert.Equal(t, int64(1), product.ID)
}

func TestGetProductByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM productos WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(productRows(t))

	_, err := store.GetProductByID(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListProductsWithSearch(t *testing.T) {
	store, mock := newMockStore(t)

	opts := httputil.PaginationOptions{
		Page:   1,
		Limit:  10,
		SortBy: "precio",
		Order:  "asc",
		Search: "teclado",
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM productos WHERE \(nombre ILIKE \$1 OR descripcion ILIKE \$2\)`).
		WithArgs("%teclado%", "%teclado%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM productos WHERE (.+) ORDER BY precio ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("%teclado%", "%teclado%", 10, 0).
		WillReturnRows(productRows(t).
			AddRow(int64(1), "Teclado básico", nil, 19.99, 5, true, now, now).
			AddRow(int64(2), "Teclado mecánico", nil, 59.99, 3, true, now, now))

	products, total, err := store.ListProducts(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 2)
	assert.Equal(t, "Teclado básico", products[0].Nombre)
}

func TestUpdateProduct(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`UPDATE productos`).
		WithArgs(int64(2), "Teclado", nil, 49.99, 10, true).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	product := &storage.Product{
		ID:     2,
		Nombre: "Teclado",
		Precio: 49.99,
		Stock:  10,
		Activo: true,
	}
	require.NoError(t, store.UpdateProduct(context.Background(), product))
	assert.WithinDuration(t, now, product.UpdatedAt, time.Second)
}

func TestUpdateProductNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE productos`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := store.UpdateProduct(context.Background(), &storage.Product{ID: 99, Nombre: "X"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteProductNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM productos WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteProduct(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCountProducts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM productos`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(17)))

	total, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(17), total)
}
