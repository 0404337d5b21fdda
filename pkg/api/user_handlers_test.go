package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appcuatri/backend/pkg/auth"
)

func (e *testEnv) seedManyUsers(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		user := &auth.User{
			Email:         fmt.Sprintf("user%02d@example.com", i),
			Nombre:        fmt.Sprintf("Nombre%02d", i),
			Apellido:      "Apellido",
			Activo:        i%2 == 0,
			EmailVerified: true,
			AuthProvider:  auth.ProviderLocal,
		}
		require.NoError(t, e.users.CreateUser(context.Background(), user))
	}
}

func TestListUsersPaginated(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	env.seedManyUsers(t, 15)

	rec := env.do(t, http.MethodGet, "/api/usuarios?page=2&limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	envlp := decodeEnvelope(t, rec)
	require.NotNil(t, envlp.Meta)
	assert.Equal(t, 2, envlp.Meta.Page)
	assert.Equal(t, int64(16), envlp.Meta.Total)
	assert.Equal(t, 2, envlp.Meta.TotalPages)

	var users []auth.SafeUser
	require.NoError(t, json.Unmarshal(envlp.Data, &users))
	assert.Len(t, users, 6)
}

func TestListUsersActivoFilter(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	env.seedManyUsers(t, 10)

	rec := env.do(t, http.MethodGet, "/api/usuarios?activo=false", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []auth.SafeUser
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &users))
	require.NotEmpty(t, users)
	for _, u := range users {
		assert.False(t, u.Activo)
	}
}

func TestSearchUsersRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodGet, "/api/usuarios/search", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUsersByName(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	env.seedManyUsers(t, 5)

	rec := env.do(t, http.MethodGet, "/api/usuarios/search?q=Nombre03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []auth.SafeUser
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "Nombre03", users[0].Nombre)
}

func TestUserStats(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	env.seedManyUsers(t, 4)

	rec := env.do(t, http.MethodGet, "/api/usuarios/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Total       int64 `json:"total"`
		Activos     int64 `json:"activos"`
		Inactivos   int64 `json:"inactivos"`
		Verificados int64 `json:"verificados"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.Activos)
	assert.Equal(t, int64(2), stats.Inactivos)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodGet, "/api/usuarios/9999", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestCreateUserSkipsEmailVerification(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")

	rec := env.do(t, http.MethodPost, "/api/usuarios", token, map[string]interface{}{
		"email":    "creado@example.com",
		"password": "secret123",
		"nombre":   "Creado",
		"apellido": "PorAdmin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := env.users.GetUserByEmail(context.Background(), "creado@example.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	target, _ := env.seedUser(t, "target@example.com", "secret123")

	rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/usuarios/%d", target.ID), token, map[string]interface{}{
		"nombre": "Editado",
		"activo": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.users.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Editado", stored.Nombre)
	assert.False(t, stored.Activo)
}

func TestToggleActive(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	target, _ := env.seedUser(t, "target@example.com", "secret123")

	rec := env.do(t, http.MethodPatch, fmt.Sprintf("/api/usuarios/%d/toggle-activo", target.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.users.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, stored.Activo)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/usuarios/%d/toggle-activo", target.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = env.users.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, stored.Activo)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "admin@example.com", "secret123")
	target, _ := env.seedUser(t, "target@example.com", "secret123")

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/usuarios/%d", target.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/usuarios/%d", target.ID), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/usuarios"},
		{http.MethodGet, "/api/usuarios/stats"},
		{http.MethodGet, "/api/usuarios/1"},
		{http.MethodPost, "/api/usuarios"},
		{http.MethodDelete, "/api/usuarios/1"},
	} {
		rec := env.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}
