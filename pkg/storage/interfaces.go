package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
)

// Sentinel errors returned by all store implementations.
var (
	// ErrNotFound means the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a unique constraint was violated
	ErrConflict = errors.New("unique constraint violation")
)

// Product is a catalog item
type Product struct {
	ID          int64     `json:"id"`
	Nombre      string    `json:"nombre"`
	Descripcion *string   `json:"descripcion"`
	Precio      float64   `json:"precio"`
	Stock       int       `json:"stock"`
	Activo      bool      `json:"activo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserStats aggregates user counts for the dashboard
type UserStats struct {
	Total       int64 `json:"total"`
	Activos     int64 `json:"activos"`
	Inactivos   int64 `json:"inactivos"`
	Verificados int64 `json:"verificados"`
}

// UserStore persists user accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *auth.User) error
	GetUserByID(ctx context.Context, id int64) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*auth.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*auth.User, error)
	ListUsers(ctx context.Context, opts httputil.PaginationOptions) ([]*auth.User, int64, error)
	UpdateUser(ctx context.Context, user *auth.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id int64) error
	SetFCMTokens(ctx context.Context, id int64, tokens []string) error
	SetUserActive(ctx context.Context, id int64, active bool) error
	DeleteUser(ctx context.Context, id int64) error
	UserStats(ctx context.Context) (*UserStats, error)
}

// ProductStore persists catalog products
type ProductStore interface {
	CreateProduct(ctx context.Context, product *Product) error
	GetProductByID(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, opts httputil.PaginationOptions) ([]*Product, int64, error)
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, id int64) error
	CountProducts(ctx context.Context) (int64, error)
}

// StoredFile describes a persisted upload
type StoredFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"mimetype"`
}

// FileStore persists uploaded files
type FileStore interface {
	// Save writes the content under a unique name derived from filename
	// and returns its public descriptor.
	Save(ctx context.Context, filename string, contentType string, content io.Reader) (*StoredFile, error)

	// Delete removes a previously stored file by its stored filename.
	Delete(ctx context.Context, filename string) error
}
