// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name), "%s should match NNNNNN_name.(up|down).sql", name)
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}

	assert.Len(t, ups, 4)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrations_ItemsHaveConflictTarget(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000002_items.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "CREATE UNIQUE INDEX IF NOT EXISTS idx_items_source_external")
	assert.Contains(t, string(sql), "(source_kind, external_id)")
}
