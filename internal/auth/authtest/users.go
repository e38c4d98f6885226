// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package authtest provides an in-memory auth.UserRepository for tests.
package authtest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// UserRepository keeps users in a map keyed by email. Like the PostgreSQL
// table, user ids are not unique, so tests can Seed anomalous duplicates.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]auth.User

	// Err, when set, is returned by every method.
	Err error

	listCalls int
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]auth.User)}
}

// Create stores a copy of user unless the email is taken.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, taken := r.users[user.Email]; taken {
		return oops.Code("USER_DUPLICATE_EMAIL").
			With("email", user.Email).
			Wrap(errutil.WithKind(errutil.ErrDuplicate, errors.New("email already registered")))
	}
	r.users[user.Email] = *user
	return nil
}

// Seed stores user unconditionally.
func (r *UserRepository) Seed(user auth.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Email] = user
}

// GetByEmail returns a copy of the user with email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// ListByUserID returns copies of every user carrying id, ordered by email.
func (r *UserRepository) ListByUserID(_ context.Context, id ulid.ULID) ([]*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*auth.User
	for _, u := range r.users {
		if u.ID == id {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// ListCalls reports how many times ListByUserID reached the repository.
func (r *UserRepository) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

// UpdatePassword replaces the stored hash for user.Email.
func (r *UserRepository) UpdatePassword(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	stored, ok := r.users[user.Email]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("user_id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	stored.PasswordHash = user.PasswordHash
	stored.UpdatedAt = user.UpdatedAt
	r.users[user.Email] = stored
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
