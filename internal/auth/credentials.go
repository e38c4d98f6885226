// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// dummyPasswordHash is verified against when the email is unknown so that
// login latency does not reveal which accounts exist. It never matches.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialStore owns user records and password verification.
type CredentialStore struct {
	users  UserRepository
	hashes *HashPool
	logger *slog.Logger
}

// NewCredentialStore creates a CredentialStore. A nil logger uses slog.Default().
func NewCredentialStore(users UserRepository, hashes *HashPool, logger *slog.Logger) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hashes == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("hash pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{users: users, hashes: hashes, logger: logger}, nil
}

// CreateUser registers a new account. The raw password is hashed before it
// reaches the repository and is not retained.
func (s *CredentialStore) CreateUser(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, errutil.ErrDuplicate) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").
				With("email", email).
				Wrap(err)
		}
		return nil, errutil.Internal("AUTH_SIGNUP_FAILED", "create user", err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", user.ID.String())
	return user, nil
}

// VerifyPassword reports whether candidate matches the user's stored hash.
// A mismatch is an expected outcome; a malformed stored hash is logged as an
// internal error. Both yield false.
func (s *CredentialStore) VerifyPassword(ctx context.Context, user *User, candidate string) bool {
	if user == nil {
		return false
	}
	ok, err := s.hashes.Verify(ctx, candidate, user.PasswordHash)
	if err != nil {
		errutil.LogError(s.logger, "password verification failed", err, "user_id", user.ID.String())
		return false
	}
	if !ok {
		s.logger.DebugContext(ctx, "password mismatch", "user_id", user.ID.String())
	}
	return ok
}

// Authenticate looks up email and verifies password. Unknown email and wrong
// password produce the same ErrAuth-kinded error.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errutil.Internal("AUTH_LOGIN_FAILED", "get user by email", err)
	}

	if user == nil {
		// Same hashing cost as a real account; the result is ignored.
		_, _ = s.hashes.Verify(ctx, password, dummyPasswordHash) //nolint:errcheck // timing only
		return nil, invalidCredentials()
	}

	if !s.VerifyPassword(ctx, user, password) {
		return nil, invalidCredentials()
	}

	if s.hashes.NeedsUpgrade(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash upgrades a stored hash to the current parameters. Failure is logged
// and does not affect the login.
func (s *CredentialStore) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		errutil.LogError(s.logger, "password rehash failed", err, "user_id", user.ID.String())
		return
	}
	upgraded := *user
	upgraded.PasswordHash = hash
	upgraded.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, &upgraded); err != nil {
		errutil.LogError(s.logger, "password rehash not stored", err, "user_id", user.ID.String())
		return
	}
	*user = upgraded
}

// ChangePassword replaces the password of userID after checking current.
// This is the only operation that mutates a stored password hash.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID ulid.ULID, current, next string) error {
	user, err := s.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(ctx, user, current) {
		return invalidCredentials()
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hashes.Hash(ctx, next)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").With("operation", "hash password").Wrap(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").With("user_id", userID.String()).Wrap(err)
		}
		return errutil.Internal("AUTH_PASSWORD_CHANGE_FAILED", "update password", err)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return nil
}

// FindByUserID returns the single user carrying userID. Because user_id is a
// non-primary attribute, the store can report several matches; that case
// fails closed with ErrNotFound and is logged as an internal anomaly.
func (s *CredentialStore) FindByUserID(ctx context.Context, userID ulid.ULID) (*User, error) {
	users, err := s.users.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errutil.Internal("USER_LOOKUP_FAILED", "list users by id", err)
	}

	switch len(users) {
	case 1:
		storeExists(ctx, userID, true)
		return users[0], nil
	case 0:
		storeExists(ctx, userID, false)
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(ErrNotFound)
	default:
		lookupAnomalies.Inc()
		errutil.LogError(s.logger, "ambiguous user lookup",
			oops.Code("USER_LOOKUP_AMBIGUOUS").
				With("user_id", userID.String()).
				With("matches", len(users)).
				Wrap(errutil.ErrInternal))
		storeExists(ctx, userID, false)
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", userID.String()).
			With("ambiguous", true).
			Wrap(ErrNotFound)
	}
}

// Exists reports whether exactly one user carries userID. Answers are
// memoized on ctx when it carries a request cache.
func (s *CredentialStore) Exists(ctx context.Context, userID ulid.ULID) (bool, error) {
	if exists, ok := cachedExists(ctx, userID); ok {
		return exists, nil
	}
	_, err := s.FindByUserID(ctx, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Wrap(errutil.WithKind(errutil.ErrAuth, errors.New("invalid email or password")))
}
