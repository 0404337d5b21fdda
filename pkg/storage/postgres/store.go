// Package postgres implements the user and product stores on PostgreSQL.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/appcuatri/backend/pkg/storage"
)

var tracer = otel.Tracer("storage/postgres")

// Store implements storage.UserStore and storage.ProductStore
type Store struct {
	db *sql.DB
}

// NewStore wraps an open connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for health checks and metrics
func (s *Store) DB() *sql.DB {
	return s.db
}

// mapError converts driver errors to the storage sentinel errors.
// Postgres error 23505 is unique_violation.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	return fmt.Errorf("%s: %w", op, err)
}
