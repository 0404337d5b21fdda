package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/storage"
)

var productSortFields = []string{"createdAt", "updatedAt", "nombre", "precio", "stock"}

// ProductHandlers serves the product catalog endpoints
type ProductHandlers struct {
	products storage.ProductStore
	authMW   *middleware.AuthMiddleware
}

// NewProductHandlers creates the product handler group
func NewProductHandlers(products storage.ProductStore, authMW *middleware.AuthMiddleware) *ProductHandlers {
	return &ProductHandlers{products: products, authMW: authMW}
}

// RegisterRoutes mounts the product endpoints under /productos
func (h *ProductHandlers) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/productos").Subrouter()
	sub.Use(h.authMW.RequireAuth)

	sub.HandleFunc("", h.List).Methods("GET")
	sub.HandleFunc("/stats", h.Stats).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", h.Get).Methods("GET")
	sub.HandleFunc("", h.Create).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}", h.Update).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", h.Delete).Methods("DELETE")
}

// List handles GET /api/productos
func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := httputil.ParsePagination(r, productSortFields)

	products, total, err := h.products.ListProducts(r.Context(), opts)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	meta := httputil.CalculatePaginationMeta(opts.Page, opts.Limit, total)
	httputil.WritePaginated(w, products, meta, "")
}

// Stats handles GET /api/productos/stats
func (h *ProductHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	total, err := h.products.CountProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]int64{"total": total}, "")
}

// Get handles GET /api/productos/{id}
func (h *ProductHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	product, err := h.products.GetProductByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Producto no encontrado", apierr.CodeRecordNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, product, "")
}

// Create handles POST /api/productos
func (h *ProductHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	product := &storage.Product{
		Nombre:      req.Nombre,
		Descripcion: req.Descripcion,
		Precio:      *req.Precio,
		Activo:      true,
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Activo != nil {
		product.Activo = *req.Activo
	}

	if err := h.products.CreateProduct(r.Context(), product); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, product, "Producto creado exitosamente")
}

// Update handles PUT /api/productos/{id}
func (h *ProductHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	product, err := h.products.GetProductByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Producto no encontrado", apierr.CodeRecordNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	product.Nombre = req.Nombre
	product.Descripcion = req.Descripcion
	product.Precio = *req.Precio
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Activo != nil {
		product.Activo = *req.Activo
	}

	if err := h.products.UpdateProduct(r.Context(), product); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, product, "Producto actualizado exitosamente")
}

// Delete handles DELETE /api/productos/{id}
func (h *ProductHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Producto no encontrado", apierr.CodeRecordNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Producto eliminado exitosamente")
}
