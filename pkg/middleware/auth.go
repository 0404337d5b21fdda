// Package middleware provides session authentication, authorization
// and rate limiting for the HTTP API.
package middleware

import (
	"errors"
	"net/http"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/contextkeys"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/storage"
)

// AuthMiddleware verifies session tokens and loads the account behind
// them. The user attached to the context is always the sanitized
// projection.
type AuthMiddleware struct {
	tokens  *auth.TokenService
	users   storage.UserStore
	metrics *observability.Metrics
}

// NewAuthMiddleware creates an auth middleware
func NewAuthMiddleware(tokens *auth.TokenService, users storage.UserStore, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, metrics: metrics}
}

// RequireAuth rejects requests without a valid session for an active
// account
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.authenticate(r)
		if err != nil {
			m.countVerification("failure")
			httputil.WriteError(w, r, err)
			return
		}
		m.countVerification("success")

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the user when a valid session is present and
// silently continues otherwise
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			if user, err := m.authenticate(r); err == nil {
				ctx := contextkeys.WithUser(r.Context(), user)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEmailVerified rejects sessions whose account has not confirmed
// its email address. Must run after RequireAuth.
func RequireEmailVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			httputil.WriteError(w, r, apierr.Unauthorized("Usuario no autenticado", apierr.CodeUserNotAuthenticated))
			return
		}
		if !user.EmailVerified {
			httputil.WriteError(w, r, apierr.Forbidden("Debes verificar tu email para realizar esta acción", apierr.CodeEmailNotVerified))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnership only lets a session operate on its own resource,
// matching the session user against the path parameter. Must run after
// RequireAuth.
func RequireOwnership(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				httputil.WriteError(w, r, apierr.Unauthorized("Usuario no autenticado", apierr.CodeUserNotAuthenticated))
				return
			}

			id, err := httputil.ParsePathID(r, param)
			if err != nil {
				httputil.WriteError(w, r, apierr.Validation("ID inválido"))
				return
			}

			if user.ID != id {
				httputil.WriteError(w, r, apierr.Forbidden("No tienes permisos para acceder a este recurso", apierr.CodeInsufficientPerms))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the authenticated user attached by RequireAuth, or
// nil when the request is anonymous
func GetUser(r *http.Request) *auth.SafeUser {
	user, _ := r.Context().Value(contextkeys.UserKey).(*auth.SafeUser)
	return user
}

// authenticate extracts and verifies the bearer token, then loads and
// gates the account.
func (m *AuthMiddleware) authenticate(r *http.Request) (*auth.SafeUser, error) {
	raw, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingAuthHeader):
			return nil, apierr.Unauthorized("Token de autenticación requerido", apierr.CodeAuthTokenRequired)
		default:
			return nil, apierr.Unauthorized("Formato de autorización inválido", apierr.CodeInvalidAuthFormat)
		}
	}

	claims, err := m.tokens.VerifyToken(raw)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apierr.Unauthorized("El token ha expirado", apierr.CodeTokenExpired)
		}
		return nil, apierr.Unauthorized("Token inválido", apierr.CodeInvalidToken)
	}

	user, err := m.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apierr.NotFound("Usuario no encontrado", apierr.CodeUserNotFound)
		}
		return nil, apierr.Internal(err)
	}

	if !user.Activo {
		return nil, apierr.Forbidden("Usuario deshabilitado", apierr.CodeUserDisabled)
	}

	return user.Safe(), nil
}

func (m *AuthMiddleware) countVerification(status string) {
	if m.metrics != nil {
		m.metrics.TokenVerificationsTotal.WithLabelValues(status).Inc()
	}
}
