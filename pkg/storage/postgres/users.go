package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/storage"
)

const userColumns = `id, email, password_hash, nombre, apellido, activo, email_verified,
	verification_token, firebase_uid, auth_provider, photo_url, fcm_tokens, created_at, updated_at`

// userSortColumns maps API sort field names to table columns
var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"email":     "email",
	"nombre":    "nombre",
	"apellido":  "apellido",
}

// CreateUser inserts a new account and fills in the generated fields
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	ctx, span := tracer.Start(ctx, "Store.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.email", user.Email))

	tokens, err := marshalTokens(user.FCMTokens)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO usuarios (email, password_hash, nombre, apellido, activo, email_verified,
			verification_token, firebase_uid, auth_provider, photo_url, fcm_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Nombre,
		user.Apellido,
		user.Activo,
		user.EmailVerified,
		user.VerificationToken,
		user.FirebaseUID,
		user.AuthProvider,
		user.PhotoURL,
		tokens,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	return mapError("create user", err)
}

// GetUserByID fetches a single account by primary key
func (s *Store) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE id = $1`, userColumns)
	return s.scanUser(s.db.QueryRowContext(ctx, query, id), "get user by id")
}

// GetUserByEmail fetches a single account by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE email = $1`, userColumns)
	return s.scanUser(s.db.QueryRowContext(ctx, query, email), "get user by email")
}

// GetUserByFirebaseUID fetches the account linked to a federated identity
func (s *Store) GetUserByFirebaseUID(ctx context.Context, uid string) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE firebase_uid = $1`, userColumns)
	return s.scanUser(s.db.QueryRowContext(ctx, query, uid), "get user by firebase uid")
}

// GetUserByVerificationToken fetches the account holding an email
// verification token
func (s *Store) GetUserByVerificationToken(ctx context.Context, token string) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE verification_token = $1`, userColumns)
	return s.scanUser(s.db.QueryRowContext(ctx, query, token), "get user by verification token")
}

// ListUsers returns a page of accounts plus the unpaginated total
func (s *Store) ListUsers(ctx context.Context, opts httputil.PaginationOptions) ([]*auth.User, int64, error) {
	ctx, span := tracer.Start(ctx, "Store.ListUsers")
	defer span.End()

	where, args := buildUserFilter(opts)

	var total int64
	countQuery := `SELECT COUNT(*) FROM usuarios` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count users", err)
	}

	column, ok := userSortColumns[opts.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(opts.Order, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM usuarios%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		userColumns, where, column, order, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("list users", err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0, opts.Limit)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, mapError("list users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list users", err)
	}

	span.SetAttributes(attribute.Int("result.count", len(users)))
	return users, total, nil
}

// UpdateUser persists the mutable profile and identity fields
func (s *Store) UpdateUser(ctx context.Context, user *auth.User) error {
	tokens, err := marshalTokens(user.FCMTokens)
	if err != nil {
		return err
	}

	query := `
		UPDATE usuarios
		SET email = $2, nombre = $3, apellido = $4, activo = $5, email_verified = $6,
			verification_token = $7, firebase_uid = $8, auth_provider = $9, photo_url = $10,
			fcm_tokens = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Nombre,
		user.Apellido,
		user.Activo,
		user.EmailVerified,
		user.VerificationToken,
		user.FirebaseUID,
		user.AuthProvider,
		user.PhotoURL,
		tokens,
	).Scan(&user.UpdatedAt)

	return mapError("update user", err)
}

// UpdatePassword replaces the stored credential hash
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.execOnUser(ctx, "update password",
		`UPDATE usuarios SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// MarkEmailVerified flags the account verified and clears the
// single-use token
func (s *Store) MarkEmailVerified(ctx context.Context, id int64) error {
	return s.execOnUser(ctx, "mark email verified",
		`UPDATE usuarios SET email_verified = TRUE, verification_token = NULL, updated_at = NOW() WHERE id = $1`, id)
}

// SetFCMTokens replaces the device token list
func (s *Store) SetFCMTokens(ctx context.Context, id int64, tokens []string) error {
	payload, err := marshalTokens(tokens)
	if err != nil {
		return err
	}
	return s.execOnUser(ctx, "set fcm tokens",
		`UPDATE usuarios SET fcm_tokens = $2, updated_at = NOW() WHERE id = $1`, id, payload)
}

// SetUserActive toggles the soft-delete flag
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	return s.execOnUser(ctx, "set user active",
		`UPDATE usuarios SET activo = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// DeleteUser removes the account permanently
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.execOnUser(ctx, "delete user", `DELETE FROM usuarios WHERE id = $1`, id)
}

// UserStats aggregates account counts
func (s *Store) UserStats(ctx context.Context) (*storage.UserStats, error) {
	ctx, span := tracer.Start(ctx, "Store.UserStats")
	defer span.End()

	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE activo),
			COUNT(*) FILTER (WHERE NOT activo),
			COUNT(*) FILTER (WHERE email_verified)
		FROM usuarios
	`

	stats := &storage.UserStats{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Activos, &stats.Inactivos, &stats.Verificados)
	if err != nil {
		return nil, mapError("user stats", err)
	}
	return stats, nil
}

// execOnUser runs a statement that must affect exactly one row
func (s *Store) execOnUser(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if affected == 0 {
		return mapError(op, sql.ErrNoRows)
	}
	return nil
}

// buildUserFilter assembles the WHERE clause for list queries
func buildUserFilter(opts httputil.PaginationOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		clauses = append(clauses, fmt.Sprintf(
			"(nombre ILIKE $%d OR apellido ILIKE $%d OR email ILIKE $%d)",
			len(args)+1, len(args)+2, len(args)+3))
		args = append(args, pattern, pattern, pattern)
	}
	if opts.Activo != nil {
		clauses = append(clauses, fmt.Sprintf("activo = $%d", len(args)+1))
		args = append(args, *opts.Activo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanUser(row rowScanner, op string) (*auth.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		return nil, mapError(op, err)
	}
	return user, nil
}

func scanUserRow(row rowScanner) (*auth.User, error) {
	user := &auth.User{}
	var tokens []byte

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Nombre,
		&user.Apellido,
		&user.Activo,
		&user.EmailVerified,
		&user.VerificationToken,
		&user.FirebaseUID,
		&user.AuthProvider,
		&user.PhotoURL,
		&tokens,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &user.FCMTokens); err != nil {
			return nil, fmt.Errorf("invalid fcm_tokens payload: %w", err)
		}
	}

	return user, nil
}

func marshalTokens(tokens []string) ([]byte, error) {
	if tokens == nil {
		tokens = []string{}
	}
	payload, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fcm tokens: %w", err)
	}
	return payload, nil
}
