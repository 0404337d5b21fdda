package auth

import "time"

// AuthProvider identifies how an account authenticates
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google.com"
)

// User represents a full user row, including credential fields.
// It must never be serialized to an API response directly; use Safe().
type User struct {
	ID                int64        `json:"id"`
	Email             string       `json:"email"`
	PasswordHash      *string      `json:"-"` // nil for federated-only accounts
	Nombre            string       `json:"nombre"`
	Apellido          string       `json:"apellido"`
	Activo            bool         `json:"activo"`
	EmailVerified     bool         `json:"emailVerified"`
	VerificationToken *string      `json:"-"` // single-use, cleared on verify
	FirebaseUID       *string      `json:"-"`
	AuthProvider      AuthProvider `json:"authProvider"`
	PhotoURL          *string      `json:"photoURL,omitempty"`
	FCMTokens         []string     `json:"-"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// SafeUser is the sanitized projection exposed to API consumers and
// attached to the request context by the auth middleware. It carries no
// credential material.
type SafeUser struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Nombre        string    `json:"nombre"`
	Apellido      string    `json:"apellido"`
	Activo        bool      `json:"activo"`
	EmailVerified bool      `json:"emailVerified"`
	PhotoURL      *string   `json:"photoURL,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Safe strips credential fields for responses and context propagation
func (u *User) Safe() *SafeUser {
	return &SafeUser{
		ID:            u.ID,
		Email:         u.Email,
		Nombre:        u.Nombre,
		Apellido:      u.Apellido,
		Activo:        u.Activo,
		EmailVerified: u.EmailVerified,
		PhotoURL:      u.PhotoURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// HasPassword reports whether the account can perform a local login
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLinked reports whether the account is linked to a federated identity
func (u *User) IsLinked() bool {
	return u.FirebaseUID != nil && *u.FirebaseUID != ""
}
