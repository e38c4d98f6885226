// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"errors"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errutil.ErrNotFound

// Token verification outcomes. Both are ErrAuth-kinded.
var (
	ErrTokenInvalid = errutil.WithKind(errutil.ErrAuth, errors.New("session token invalid"))
	ErrTokenExpired = errutil.WithKind(errutil.ErrAuth, errors.New("session token expired"))
)
