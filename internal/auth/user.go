// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// Password constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256
	MaxEmailLength    = 254
)

// User is a registered account. Email is the natural key; ID is generated
// once at signup and never changes.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID.
func NewUser(email, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").
			Wrap(errutil.WithKind(errutil.ErrValidation, oops.Errorf("password hash cannot be empty")))
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address (no display name).
func ValidateEmail(email string) error {
	if email == "" {
		return invalidEmail("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return invalidEmail("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidEmail("%q is not a valid email address", email)
	}
	return nil
}

// ValidatePassword checks password length rules.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Wrap(errutil.WithKind(errutil.ErrValidation,
				oops.Errorf("password must be at least %d characters", MinPasswordLength)))
	}
	if n > MaxPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("max", MaxPasswordLength).
			Wrap(errutil.WithKind(errutil.ErrValidation,
				oops.Errorf("password must be at most %d characters", MaxPasswordLength)))
	}
	return nil
}

func invalidEmail(format string, args ...any) error {
	return oops.Code("USER_INVALID_EMAIL").
		Wrap(errutil.WithKind(errutil.ErrValidation, oops.Errorf(format, args...)))
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create inserts user only if no user with the same email exists.
	// A taken email yields an ErrDuplicate-kinded error.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by (normalized) email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ListByUserID returns every record carrying id. The id is a secondary
	// attribute, so the store may return zero, one, or (after an anomaly)
	// several records.
	ListByUserID(ctx context.Context, id ulid.ULID) ([]*User, error)

	// UpdatePassword stores user.PasswordHash and user.UpdatedAt.
	UpdatePassword(ctx context.Context, user *User) error
}
