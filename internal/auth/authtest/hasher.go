// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package authtest

import "github.com/vidshelf/vidshelf/internal/auth"

// FastArgon2Params keep argon2id cheap enough for unit tests.
var FastArgon2Params = auth.Argon2Params{
	Time:    1,
	Memory:  1024,
	Threads: 1,
	SaltLen: 16,
	KeyLen:  32,
}

// NewHashPool returns a small pool over a cheap argon2id hasher.
func NewHashPool() *auth.HashPool {
	return auth.NewHashPool(auth.NewArgon2idHasherWithParams(FastArgon2Params), 2)
}
