// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch errutil.KindOf(err) {
	case errutil.ErrValidation, errutil.ErrOwnerInvalid:
		return http.StatusBadRequest
	case errutil.ErrAuth:
		return http.StatusUnauthorized
	case errutil.ErrNotFound:
		return http.StatusNotFound
	case errutil.ErrDuplicate, errutil.ErrConflict:
		return http.StatusConflict
	case errutil.ErrIndexOutOfRange:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err by kind. Internal errors are logged and reach the
// client as an opaque message.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogError(h.logger, "request failed", err, "method", r.Method, "path", r.URL.Path)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	body := errorBody{Error: err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() != nil {
		body.Code = fmt.Sprint(oopsErr.Code())
	}
	writeJSON(w, status, body)
}

func (h *handler) unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "AUTH_REQUIRED"})
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("REQUEST_INVALID_JSON", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("REQUEST_INVALID_JSON", errors.New("body must contain a single JSON object"))
	}
	return nil
}

func badRequest(code string, err error) error {
	return oops.Code(code).Wrap(errutil.WithKind(errutil.ErrValidation, err))
}
