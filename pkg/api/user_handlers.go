package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/storage"
)

var userSortFields = []string{"createdAt", "updatedAt", "email", "nombre", "apellido"}

// UserHandlers serves user administration endpoints
type UserHandlers struct {
	users  storage.UserStore
	hasher *auth.PasswordHasher
	authMW *middleware.AuthMiddleware
}

// NewUserHandlers creates the user handler group
func NewUserHandlers(users storage.UserStore, hasher *auth.PasswordHasher, authMW *middleware.AuthMiddleware) *UserHandlers {
	return &UserHandlers{users: users, hasher: hasher, authMW: authMW}
}

// RegisterRoutes mounts the user endpoints under /usuarios
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/usuarios").Subrouter()
	sub.Use(h.authMW.RequireAuth)

	sub.HandleFunc("", h.List).Methods("GET")
	sub.HandleFunc("/stats", h.Stats).Methods("GET")
	sub.HandleFunc("/search", h.Search).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", h.Get).Methods("GET")
	sub.HandleFunc("", h.Create).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}", h.Update).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}/toggle-activo", h.ToggleActive).Methods("PATCH")
	sub.HandleFunc("/{id:[0-9]+}", h.Delete).Methods("DELETE")
}

// List handles GET /api/usuarios with pagination, search and the
// activo filter.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := httputil.ParsePagination(r, userSortFields)

	users, total, err := h.users.ListUsers(r.Context(), opts)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	safe := make([]*auth.SafeUser, 0, len(users))
	for _, u := range users {
		safe = append(safe, u.Safe())
	}
	meta := httputil.CalculatePaginationMeta(opts.Page, opts.Limit, total)
	httputil.WritePaginated(w, safe, meta, "")
}

// Search handles GET /api/usuarios/search; it requires a q parameter
// and otherwise behaves like List.
func (h *UserHandlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteError(w, r, apierr.Validation("El parámetro q es requerido"))
		return
	}
	opts := httputil.ParsePagination(r, userSortFields)
	opts.Search = query

	users, total, err := h.users.ListUsers(r.Context(), opts)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	safe := make([]*auth.SafeUser, 0, len(users))
	for _, u := range users {
		safe = append(safe, u.Safe())
	}
	meta := httputil.CalculatePaginationMeta(opts.Page, opts.Limit, total)
	httputil.WritePaginated(w, safe, meta, "")
}

// Stats handles GET /api/usuarios/stats
func (h *UserHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.UserStats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, stats, "")
}

// Get handles GET /api/usuarios/{id}
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, user.Safe(), "")
}

// Create handles POST /api/usuarios. Admin-created accounts skip email
// verification.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !auth.ValidatePasswordStrength(req.Password) {
		httputil.WriteError(w, r, apierr.Validation("La contraseña debe tener al menos 6 caracteres").
			WithDetails(map[string]string{"password": "Mínimo 6 caracteres"}))
		return
	}

	hash, err := h.hasher.HashPassword(req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	activo := true
	if req.Activo != nil {
		activo = *req.Activo
	}
	user := &auth.User{
		Email:         req.Email,
		PasswordHash:  &hash,
		Nombre:        req.Nombre,
		Apellido:      req.Apellido,
		Activo:        activo,
		EmailVerified: true,
		AuthProvider:  auth.ProviderLocal,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httputil.WriteError(w, r, apierr.Conflict("El email ya está registrado", apierr.CodeEmailAlreadyExists))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, user.Safe(), "Usuario creado exitosamente")
}

// Update handles PUT /api/usuarios/{id}
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Nombre != nil {
		user.Nombre = *req.Nombre
	}
	if req.Apellido != nil {
		user.Apellido = *req.Apellido
	}
	if req.Activo != nil {
		user.Activo = *req.Activo
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httputil.WriteError(w, r, apierr.Conflict("El email ya está registrado", apierr.CodeEmailAlreadyExists))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, user.Safe(), "Usuario actualizado exitosamente")
}

// ToggleActive handles PATCH /api/usuarios/{id}/toggle-activo
func (h *UserHandlers) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	next := !user.Activo
	if err := h.users.SetUserActive(r.Context(), id, next); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	user.Activo = next

	message := "Usuario deshabilitado exitosamente"
	if next {
		message = "Usuario habilitado exitosamente"
	}
	httputil.WriteSuccess(w, http.StatusOK, user.Safe(), message)
}

// Delete handles DELETE /api/usuarios/{id}
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Usuario eliminado exitosamente")
}
