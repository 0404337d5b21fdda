package api

import (
	"regexp"
	"strings"

	"github.com/appcuatri/backend/pkg/apierr"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
}

// Validate normalizes and checks the payload
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Nombre = strings.TrimSpace(r.Nombre)
	r.Apellido = strings.TrimSpace(r.Apellido)

	details := map[string]string{}
	if !emailPattern.MatchString(r.Email) {
		details["email"] = "Email inválido"
	}
	if r.Nombre == "" {
		details["nombre"] = "El nombre es requerido"
	}
	if r.Apellido == "" {
		details["apellido"] = "El apellido es requerido"
	}
	if len(details) > 0 {
		return apierr.Validation("Datos de registro inválidos").WithDetails(details)
	}
	return nil
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return apierr.Validation("Email y contraseña son requeridos")
	}
	return nil
}

// FirebaseLoginRequest is the body of POST /api/auth/firebase-login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

func (r *FirebaseLoginRequest) Validate() error {
	r.IDToken = strings.TrimSpace(r.IDToken)
	if r.IDToken == "" {
		return apierr.Validation("idToken es requerido")
	}
	return nil
}

// UpdateProfileRequest is the body of PUT /api/auth/profile. Pointer
// fields distinguish absent from empty.
type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Nombre   *string `json:"nombre"`
	Apellido *string `json:"apellido"`
	PhotoURL *string `json:"photoURL"`
}

func (r *UpdateProfileRequest) Validate() error {
	details := map[string]string{}
	if r.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &normalized
		if !emailPattern.MatchString(normalized) {
			details["email"] = "Email inválido"
		}
	}
	if r.Nombre != nil && strings.TrimSpace(*r.Nombre) == "" {
		details["nombre"] = "El nombre no puede estar vacío"
	}
	if r.Apellido != nil && strings.TrimSpace(*r.Apellido) == "" {
		details["apellido"] = "El apellido no puede estar vacío"
	}
	if len(details) > 0 {
		return apierr.Validation("Datos de perfil inválidos").WithDetails(details)
	}
	return nil
}

// ChangePasswordRequest is the body of PUT /api/auth/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return apierr.Validation("La contraseña actual y la nueva son requeridas")
	}
	return nil
}

// VerifyEmailRequest is the body of POST /api/auth/verify-email
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// FCMTokenRequest is the body of POST /api/auth/fcm-token
type FCMTokenRequest struct {
	Token string `json:"token"`
}

// CreateUserRequest is the body of POST /api/usuarios
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Activo   *bool  `json:"activo"`
}

func (r *CreateUserRequest) Validate() error {
	reg := RegisterRequest{Email: r.Email, Password: r.Password, Nombre: r.Nombre, Apellido: r.Apellido}
	if err := reg.Validate(); err != nil {
		return err
	}
	r.Email, r.Nombre, r.Apellido = reg.Email, reg.Nombre, reg.Apellido
	return nil
}

// UpdateUserRequest is the body of PUT /api/usuarios/{id}
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Nombre   *string `json:"nombre"`
	Apellido *string `json:"apellido"`
	Activo   *bool   `json:"activo"`
}

func (r *UpdateUserRequest) Validate() error {
	profile := UpdateProfileRequest{Email: r.Email, Nombre: r.Nombre, Apellido: r.Apellido}
	if err := profile.Validate(); err != nil {
		return err
	}
	r.Email = profile.Email
	return nil
}

// ProductRequest is the body of POST /api/productos and PUT /api/productos/{id}
type ProductRequest struct {
	Nombre      string   `json:"nombre"`
	Descripcion *string  `json:"descripcion"`
	Precio      *float64 `json:"precio"`
	Stock       *int     `json:"stock"`
	Activo      *bool    `json:"activo"`
}

func (r *ProductRequest) Validate() error {
	r.Nombre = strings.TrimSpace(r.Nombre)

	details := map[string]string{}
	if r.Nombre == "" {
		details["nombre"] = "El nombre es requerido"
	}
	if r.Precio == nil {
		details["precio"] = "El precio es requerido"
	} else if *r.Precio < 0 {
		details["precio"] = "El precio no puede ser negativo"
	}
	if r.Stock != nil && *r.Stock < 0 {
		details["stock"] = "El stock no puede ser negativo"
	}
	if len(details) > 0 {
		return apierr.Validation("Datos de producto inválidos").WithDetails(details)
	}
	return nil
}

// SendNotificationRequest is the body of POST /api/notifications/send
type SendNotificationRequest struct {
	UserID int64             `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

func (r *SendNotificationRequest) Validate() error {
	details := map[string]string{}
	if r.UserID <= 0 {
		details["userId"] = "userId es requerido"
	}
	if strings.TrimSpace(r.Title) == "" {
		details["title"] = "El título es requerido"
	}
	if strings.TrimSpace(r.Body) == "" {
		details["body"] = "El cuerpo es requerido"
	}
	if len(details) > 0 {
		return apierr.Validation("Datos de notificación inválidos").WithDetails(details)
	}
	return nil
}

// AuthResponse pairs a session token with the sanitized user
type AuthResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}
