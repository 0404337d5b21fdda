package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/sso"
	"github.com/appcuatri/backend/pkg/storage"
)

// AuthHandlers serves registration, login and profile management
type AuthHandlers struct {
	users       storage.UserStore
	tokens      *auth.TokenService
	hasher      *auth.PasswordHasher
	verifier    sso.Verifier
	provisioner *sso.Provisioner
	metrics     *observability.Metrics
	limiter     *middleware.DistributedRateLimiter
	authMW      *middleware.AuthMiddleware
}

// NewAuthHandlers creates the auth handler group
func NewAuthHandlers(opts Options, authMW *middleware.AuthMiddleware) *AuthHandlers {
	return &AuthHandlers{
		users:       opts.Users,
		tokens:      opts.Tokens,
		hasher:      opts.Hasher,
		verifier:    opts.Verifier,
		provisioner: opts.Provisioner,
		metrics:     opts.Metrics,
		limiter:     opts.LoginLimiter,
		authMW:      authMW,
	}
}

// RegisterRoutes mounts the auth endpoints under /auth
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	public := router.PathPrefix("/auth").Subrouter()
	if h.limiter != nil {
		public.Use(h.limiter.Middleware("auth", h.metrics))
	}
	public.HandleFunc("/register", h.Register).Methods("POST")
	public.HandleFunc("/login", h.Login).Methods("POST")
	public.HandleFunc("/firebase-login", h.FirebaseLogin).Methods("POST")
	public.HandleFunc("/verify-email", h.VerifyEmail).Methods("POST")

	protected := router.PathPrefix("/auth").Subrouter()
	protected.Use(h.authMW.RequireAuth)
	protected.HandleFunc("/profile", h.Profile).Methods("GET")
	protected.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/validate", h.Validate).Methods("GET")
	protected.HandleFunc("/change-password", h.ChangePassword).Methods("PUT")
	protected.HandleFunc("/fcm-token", h.RegisterFCMToken).Methods("POST")
}

// Register handles POST /api/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.countRegistration("invalid")
		httputil.WriteError(w, r, err)
		return
	}
	if !auth.ValidatePasswordStrength(req.Password) {
		h.countRegistration("invalid")
		httputil.WriteError(w, r, apierr.Validation("La contraseña debe tener al menos 6 caracteres").
			WithDetails(map[string]string{"password": "Mínimo 6 caracteres"}))
		return
	}

	hash, err := h.hasher.HashPassword(req.Password)
	if err != nil {
		h.countRegistration("error")
		httputil.WriteError(w, r, err)
		return
	}
	verifyToken, err := h.tokens.GenerateVerificationToken()
	if err != nil {
		h.countRegistration("error")
		httputil.WriteError(w, r, err)
		return
	}

	user := &auth.User{
		Email:             req.Email,
		PasswordHash:      &hash,
		Nombre:            req.Nombre,
		Apellido:          req.Apellido,
		Activo:            true,
		VerificationToken: &verifyToken,
		AuthProvider:      auth.ProviderLocal,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			h.countRegistration("conflict")
			httputil.WriteError(w, r, apierr.Conflict("El email ya está registrado", apierr.CodeEmailAlreadyExists))
			return
		}
		h.countRegistration("error")
		httputil.WriteError(w, r, err)
		return
	}
	h.countRegistration("success")

	token, err := h.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	observability.FromContext(r.Context()).
		WithField("user_id", user.ID).
		Info("user registered")
	httputil.WriteSuccess(w, http.StatusCreated, AuthResponse{Token: token, User: user.Safe()}, "Usuario registrado exitosamente")
}

// Login handles POST /api/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.countLogin("local", "failure")
			httputil.WriteError(w, r, apierr.Unauthorized("Credenciales inválidas", apierr.CodeInvalidCredentials))
			return
		}
		h.countLogin("local", "error")
		httputil.WriteError(w, r, err)
		return
	}

	// Federated-only accounts have no hash; same answer as a bad
	// password so the probe learns nothing.
	if !user.HasPassword() {
		h.countLogin("local", "failure")
		httputil.WriteError(w, r, apierr.Unauthorized("Credenciales inválidas", apierr.CodeInvalidCredentials))
		return
	}
	ok, err := h.hasher.ComparePassword(req.Password, *user.PasswordHash)
	if err != nil {
		h.countLogin("local", "error")
		httputil.WriteError(w, r, err)
		return
	}
	if !ok {
		h.countLogin("local", "failure")
		httputil.WriteError(w, r, apierr.Unauthorized("Credenciales inválidas", apierr.CodeInvalidCredentials))
		return
	}
	if !user.Activo {
		h.countLogin("local", "disabled")
		httputil.WriteError(w, r, apierr.Forbidden("Cuenta deshabilitada", apierr.CodeUserDisabled))
		return
	}

	token, err := h.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		h.countLogin("local", "error")
		httputil.WriteError(w, r, err)
		return
	}
	h.countLogin("local", "success")
	httputil.WriteSuccess(w, http.StatusOK, AuthResponse{Token: token, User: user.Safe()}, "Inicio de sesión exitoso")
}

// FirebaseLogin handles POST /api/auth/firebase-login. It verifies the
// Firebase ID token, provisions or links the local account and issues a
// first-party session token.
func (h *AuthHandlers) FirebaseLogin(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil || h.provisioner == nil {
		httputil.WriteError(w, r, apierr.New("Autenticación federada no disponible", http.StatusServiceUnavailable, apierr.CodeInternal))
		return
	}

	var req FirebaseLoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	assertion, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		h.countLogin("firebase", "failure")
		httputil.WriteError(w, r, apierr.Unauthorized("Token de Firebase inválido", apierr.CodeInvalidToken))
		return
	}
	if assertion.Email == "" {
		h.countLogin("firebase", "failure")
		httputil.WriteError(w, r, apierr.New("La cuenta de Firebase no tiene email", http.StatusBadRequest, apierr.CodeEmailNotAvailable))
		return
	}

	user, created, err := h.provisioner.Reconcile(r.Context(), assertion)
	if err != nil {
		if errors.Is(err, sso.ErrInvalidIDToken) {
			h.countLogin("firebase", "failure")
			httputil.WriteError(w, r, apierr.Unauthorized("Token de Firebase inválido", apierr.CodeInvalidToken))
			return
		}
		h.countLogin("firebase", "error")
		httputil.WriteError(w, r, err)
		return
	}
	if !user.Activo {
		h.countLogin("firebase", "disabled")
		httputil.WriteError(w, r, apierr.Forbidden("Cuenta deshabilitada", apierr.CodeUserDisabled))
		return
	}

	token, err := h.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		h.countLogin("firebase", "error")
		httputil.WriteError(w, r, err)
		return
	}
	h.countLogin("firebase", "success")

	status := http.StatusOK
	message := "Inicio de sesión exitoso"
	if created {
		status = http.StatusCreated
		message = "Usuario registrado exitosamente"
	}
	httputil.WriteSuccess(w, status, AuthResponse{Token: token, User: user.Safe()}, message)
}

// Profile handles GET /api/auth/profile
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	httputil.WriteSuccess(w, http.StatusOK, user, "")
}

// Validate handles GET /api/auth/validate. Reaching the handler means
// the middleware already accepted the token.
func (h *AuthHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	httputil.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  user,
	}, "Token válido")
}

// UpdateProfile handles PUT /api/auth/profile. Changing the email
// resets verification and rotates the verification token.
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current := middleware.GetUser(r)

	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), current.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if req.Nombre != nil {
		user.Nombre = *req.Nombre
	}
	if req.Apellido != nil {
		user.Apellido = *req.Apellido
	}
	if req.PhotoURL != nil {
		user.PhotoURL = req.PhotoURL
	}
	if req.Email != nil && *req.Email != user.Email {
		verifyToken, err := h.tokens.GenerateVerificationToken()
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		user.Email = *req.Email
		user.EmailVerified = false
		user.VerificationToken = &verifyToken
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			httputil.WriteError(w, r, apierr.Conflict("El email ya está registrado", apierr.CodeEmailAlreadyExists))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, user.Safe(), "Perfil actualizado exitosamente")
}

// ChangePassword handles PUT /api/auth/change-password
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	current := middleware.GetUser(r)

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !auth.ValidatePasswordStrength(req.NewPassword) {
		httputil.WriteError(w, r, apierr.Validation("La nueva contraseña debe tener al menos 6 caracteres").
			WithDetails(map[string]string{"newPassword": "Mínimo 6 caracteres"}))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), current.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !user.HasPassword() {
		httputil.WriteError(w, r, apierr.Unauthorized("Contraseña actual incorrecta", apierr.CodeInvalidCurrentPass))
		return
	}
	ok, err := h.hasher.ComparePassword(req.CurrentPassword, *user.PasswordHash)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !ok {
		httputil.WriteError(w, r, apierr.Unauthorized("Contraseña actual incorrecta", apierr.CodeInvalidCurrentPass))
		return
	}

	hash, err := h.hasher.HashPassword(req.NewPassword)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Contraseña actualizada exitosamente")
}

// VerifyEmail handles POST /api/auth/verify-email. The token is single
// use; verification clears it.
func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, r, apierr.New("Token de verificación inválido", http.StatusBadRequest, apierr.CodeInvalidVerifyToken))
		return
	}

	user, err := h.users.GetUserByVerificationToken(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, r, apierr.New("Token de verificación inválido", http.StatusBadRequest, apierr.CodeInvalidVerifyToken))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.users.MarkEmailVerified(r.Context(), user.ID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Email verificado exitosamente")
}

// RegisterFCMToken handles POST /api/auth/fcm-token. Tokens are stored
// deduplicated per user.
func (h *AuthHandlers) RegisterFCMToken(w http.ResponseWriter, r *http.Request) {
	current := middleware.GetUser(r)

	var req FCMTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, r, apierr.New("Token FCM requerido", http.StatusBadRequest, apierr.CodeFCMTokenRequired))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), current.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	for _, existing := range user.FCMTokens {
		if existing == req.Token {
			httputil.WriteSuccess(w, http.StatusOK, nil, "Token FCM registrado")
			return
		}
	}
	tokens := append(user.FCMTokens, req.Token)
	if err := h.users.SetFCMTokens(r.Context(), user.ID, tokens); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Token FCM registrado")
}

func (h *AuthHandlers) countLogin(provider, status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(provider, status).Inc()
	}
}

func (h *AuthHandlers) countRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}
