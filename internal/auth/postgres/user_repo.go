// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/internal/store"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

const userColumns = `email, user_id, password_hash, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts user unless its email is already registered.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`,
		user.Email,
		user.ID.String(),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateEmail(user.Email, err)
		}
		return errutil.Internal("USER_CREATE_FAILED", "insert user", err)
	}
	if tag.RowsAffected() == 0 {
		return duplicateEmail(user.Email, errors.New("email already registered"))
	}
	return nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, errutil.Internal("USER_GET_BY_EMAIL_FAILED", "get user by email", err)
	}
	return user, nil
}

// ListByUserID returns every row carrying id.
func (r *UserRepository) ListByUserID(ctx context.Context, id ulid.ULID) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE user_id = $1 ORDER BY email
	`, id.String())
	if err != nil {
		return nil, errutil.Internal("USER_LIST_FAILED", "list users by id", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errutil.Internal("USER_LIST_FAILED", "scan user row", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.Internal("USER_LIST_FAILED", "iterate users", err)
	}
	return users, nil
}

// UpdatePassword stores the user's password hash and updated_at.
func (r *UserRepository) UpdatePassword(ctx context.Context, user *auth.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE email = $1
	`, user.Email, user.PasswordHash, user.UpdatedAt)
	if err != nil {
		return errutil.Internal("USER_UPDATE_PASSWORD_FAILED", "update password", err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user      auth.User
		idStr     string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&user.Email, &idStr, &user.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("user_id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func duplicateEmail(email string, cause error) error {
	return oops.Code("USER_DUPLICATE_EMAIL").
		With("email", email).
		Wrap(errutil.WithKind(errutil.ErrDuplicate, cause))
}

var _ auth.UserRepository = (*UserRepository)(nil)
