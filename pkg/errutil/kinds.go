// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package errutil

import (
	"errors"

	"github.com/samber/oops"
)

// Error kinds. Every error returned across a package boundary wraps exactly
// one of these, so callers classify with errors.Is or KindOf.
var (
	ErrValidation      = errors.New("validation failed")
	ErrDuplicate       = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrOwnerInvalid    = errors.New("owner does not resolve")
	ErrAuth            = errors.New("authentication failed")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrConflict        = errors.New("concurrent modification")
	ErrInternal        = errors.New("internal error")
)

var kinds = []error{
	ErrValidation,
	ErrDuplicate,
	ErrNotFound,
	ErrOwnerInvalid,
	ErrAuth,
	ErrIndexOutOfRange,
	ErrConflict,
	ErrInternal,
}

// KindOf returns the kind sentinel wrapped by err.
// Errors that carry no kind are reported as ErrInternal.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// WithKind tags err with kind without changing its message.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

// Internal wraps a store or infrastructure failure as an ErrInternal-kinded
// oops error. The original error stays reachable through errors.Is/As.
func Internal(code, operation string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		Wrap(WithKind(ErrInternal, err))
}
