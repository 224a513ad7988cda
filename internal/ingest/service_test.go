package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"orders_a.csv", "orders_b.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	t.Run("directory expands to csv files", func(t *testing.T) {
		files, err := expandPaths([]string{dir})
		require.NoError(t, err)

		assert.Len(t, files, 2)
		assert.Contains(t, files, filepath.Join(dir, "orders_a.csv"))
		assert.Contains(t, files, filepath.Join(dir, "orders_b.csv"))
	})

	t.Run("explicit file passes through regardless of extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		files, err := expandPaths([]string{path})
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)
	})

	t.Run("missing path is an error", func(t *testing.T) {
		_, err := expandPaths([]string{filepath.Join(dir, "missing.csv")})
		assert.Error(t, err)
	})
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"*.csv", "orders_*"}

	assert.True(t, matchesAny(patterns, "customers.csv"))
	assert.True(t, matchesAny(patterns, "orders_2024"))
	assert.False(t, matchesAny(patterns, "readme.md"))
	assert.False(t, matchesAny(nil, "customers.csv"))
}
