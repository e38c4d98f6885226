// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package auth provides identity primitives for vidshelf.
//
// # Credentials
//
// CredentialStore owns User records. Passwords are hashed with argon2id on a
// bounded HashPool and only the PHC-encoded hash is stored. Lookups by user
// id go through a secondary attribute and fail closed when the store reports
// more than one match.
//
// # Sessions
//
// Sessions are stateless: TokenService signs a short-lived HMAC token holding
// the user id, Resolver turns the session cookie into a Principal once per
// request, and Guard runs a handler only for authenticated principals.
// Nothing about a session is persisted, so there is no server-side revocation.
package auth
