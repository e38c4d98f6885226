// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package library keeps each user's video registry and playlists consistent
// under concurrent writes against a shared store.
//
// Items are deduplicated on (source kind, external id) by a conditional insert
// in the store; the Registry never holds an in-process lock. Collections carry
// a version counter and every membership write is a compare-and-set on it.
// Appends and removals retry against fresh state; ReplaceMembers is
// last-writer-wins and ReplaceMembersIfVersion hands the token to callers.
package library
