package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	m := NewFile(filepath.Join(dir, "state", "last-commit"))

	got, err := m.Read()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, m.Write("5f3c9a"))

	// the next run reads through a fresh marker on the same path
	got, err = NewFile(m.Path).Read()
	require.NoError(t, err)
	assert.Equal(t, "5f3c9a", got)

	require.NoError(t, m.Write("77ab01"))
	got, err = m.Read()
	require.NoError(t, err)
	assert.Equal(t, "77ab01", got)

	files, err := os.ReadDir(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFileTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marker")
	require.NoError(t, os.WriteFile(path, []byte("  abc\n\n"), 0o644))
	got, err := NewFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}
