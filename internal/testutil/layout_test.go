package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	l := NewLayout(t, "key", "58468")

	assert.DirExists(t, l.StagingDir)
	assert.DirExists(t, l.WebinDir)

	WriteFile(t, l.StagingDir, "b", "2")
	WriteFile(t, l.StagingDir, "a", "1")

	assert.Equal(t, "1", ReadFile(t, l.StagingDir, "a"))
	assert.Equal(t, []string{"a", "b"}, ListDir(t, l.StagingDir))
	assert.Empty(t, ListDir(t, l.WebinDir))
}

func TestChdir(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)

	dir := t.TempDir()
	t.Run("inside", func(t *testing.T) {
		Chdir(t, dir)
		wd, err := os.Getwd()
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(wd)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, orig, wd, "working directory must be restored")
}
