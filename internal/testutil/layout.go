package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Layout is a temporary pair of mount roots with one staging folder and one
// Webin folder created underneath
type Layout struct {
	S3Root     string
	WebinRoot  string
	StagingDir string
	WebinDir   string
}

// NewLayout creates <tmp>/s3/<secureKey> and <tmp>/webin/<webinNumber>
func NewLayout(t *testing.T, secureKey, webinNumber string) *Layout {
	t.Helper()
	root := t.TempDir()

	l := &Layout{
		S3Root:    filepath.Join(root, "s3"),
		WebinRoot: filepath.Join(root, "webin"),
	}
	l.StagingDir = filepath.Join(l.S3Root, secureKey)
	l.WebinDir = filepath.Join(l.WebinRoot, webinNumber)

	for _, dir := range []string{l.StagingDir, l.WebinDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return l
}

// Chdir switches the working directory to dir for the rest of the test
func Chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(orig)
	})
}

// WriteFile creates dir/name with content
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// ReadFile returns the content of dir/name
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

// ListDir returns the sorted entry names of dir
func ListDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
