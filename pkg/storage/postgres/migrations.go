package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are idempotent so Migrate can run on every boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		nombre TEXT NOT NULL,
		apellido TEXT NOT NULL,
		activo BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		verification_token TEXT,
		firebase_uid TEXT UNIQUE,
		auth_provider TEXT NOT NULL DEFAULT 'local',
		photo_url TEXT,
		fcm_tokens JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usuarios_email ON usuarios (email)`,
	`CREATE INDEX IF NOT EXISTS idx_usuarios_firebase_uid ON usuarios (firebase_uid)`,
	`CREATE INDEX IF NOT EXISTS idx_usuarios_verification_token ON usuarios (verification_token)`,
	`CREATE INDEX IF NOT EXISTS idx_usuarios_activo ON usuarios (activo)`,

	`CREATE TABLE IF NOT EXISTS productos (
		id BIGSERIAL PRIMARY KEY,
		nombre TEXT NOT NULL,
		descripcion TEXT,
		precio NUMERIC(12,2) NOT NULL CHECK (precio >= 0),
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		activo BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_productos_nombre ON productos (nombre)`,
	`CREATE INDEX IF NOT EXISTS idx_productos_activo ON productos (activo)`,
}

// Migrate applies the schema
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
