package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appcuatri/backend/pkg/storage"
)

func (e *testEnv) seedProduct(t *testing.T, nombre string, precio float64, stock int) *storage.Product {
	t.Helper()
	p := &storage.Product{Nombre: nombre, Precio: precio, Stock: stock, Activo: true}
	require.NoError(t, e.products.CreateProduct(context.Background(), p))
	return p
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodPost, "/api/productos", token, map[string]interface{}{
		"nombre":      "Teclado",
		"descripcion": "Mecánico",
		"precio":      59.99,
		"stock":       10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p storage.Product
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &p))
	assert.Equal(t, "Teclado", p.Nombre)
	assert.Equal(t, 59.99, p.Precio)
	assert.True(t, p.Activo)
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing nombre", map[string]interface{}{"precio": 10.0}},
		{"missing precio", map[string]interface{}{"nombre": "X"}},
		{"negative precio", map[string]interface{}{"nombre": "X", "precio": -1.0}},
		{"negative stock", map[string]interface{}{"nombre": "X", "precio": 1.0, "stock": -5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/productos", token, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
		})
	}
}

func TestCreateProductZeroPriceAllowed(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodPost, "/api/productos", token, map[string]interface{}{
		"nombre": "Muestra gratis",
		"precio": 0.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestListProductsPaginated(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	for i := 0; i < 12; i++ {
		env.seedProduct(t, fmt.Sprintf("Producto %02d", i), float64(i), i)
	}

	rec := env.do(t, http.MethodGet, "/api/productos?page=2&limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envlp := decodeEnvelope(t, rec)
	require.NotNil(t, envlp.Meta)
	assert.Equal(t, int64(12), envlp.Meta.Total)

	var products []storage.Product
	require.NoError(t, json.Unmarshal(envlp.Data, &products))
	assert.Len(t, products, 2)
}

func TestProductStats(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	env.seedProduct(t, "Teclado", 59.99, 10)
	env.seedProduct(t, "Mouse", 19.99, 25)

	rec := env.do(t, http.MethodGet, "/api/productos/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats map[string]int64
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, int64(2), stats["total"])
}

func TestGetProductNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodGet, "/api/productos/404", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RECORD_NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestUpdateProduct(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	p := env.seedProduct(t, "Original", 10, 5)

	rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/productos/%d", p.ID), token, map[string]interface{}{
		"nombre": "Renombrado",
		"precio": 25.5,
		"stock":  0,
		"activo": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.products.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renombrado", stored.Nombre)
	assert.Equal(t, 25.5, stored.Precio)
	assert.Equal(t, 0, stored.Stock)
	assert.False(t, stored.Activo)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	p := env.seedProduct(t, "Borrable", 1, 1)

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/productos/%d", p.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/productos/%d", p.ID), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/productos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
