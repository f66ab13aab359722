package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/webinsync/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
paths:
  s3_root: "/data/s3"
  webin_root: "/data/webin"

validation:
  strict_checksums: true
  verify_md5: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/s3", cfg.Paths.S3Root)
	assert.Equal(t, "/data/webin", cfg.Paths.WebinRoot)
	assert.True(t, cfg.Validation.StrictChecksums)
	assert.True(t, cfg.Validation.VerifyMD5)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "validation:\n  verify_md5: false\n"))
	require.NoError(t, err)

	// Resolve cleans the trailing slash off the defaults
	assert.Equal(t, filepath.Clean(DefaultS3Root), cfg.Paths.S3Root)
	assert.Equal(t, filepath.Clean(DefaultWebinRoot), cfg.Paths.WebinRoot)
	assert.False(t, cfg.Validation.StrictChecksums)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("WEBINSYNC_TEST_ROOT", "/srv/mounts")

	cfg, err := Load(writeConfig(t, "paths:\n  s3_root: \"$WEBINSYNC_TEST_ROOT/s3\"\n  webin_root: \"${WEBINSYNC_TEST_ROOT}/webin\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/mounts/s3", cfg.Paths.S3Root)
	assert.Equal(t, "/srv/mounts/webin", cfg.Paths.WebinRoot)
}

func TestLoad_ResolvesRelativeRoots(t *testing.T) {
	path := writeConfig(t, "paths:\n  s3_root: relative/s3\n  webin_root: ./webin\n")

	wd := t.TempDir()
	testutil.Chdir(t, wd)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cwd, "relative", "s3"), cfg.Paths.S3Root)
	assert.Equal(t, filepath.Join(cwd, "webin"), cfg.Paths.WebinRoot)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "paths: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  Config{Paths: PathsConfig{S3Root: "/mnt/s3Load/", WebinRoot: "/mnt/webin/"}},
		},
		{
			name: "relative roots are accepted",
			cfg:  Config{Paths: PathsConfig{S3Root: "s3", WebinRoot: "./webin"}},
		},
		{
			name:    "missing s3 root",
			cfg:     Config{Paths: PathsConfig{WebinRoot: "/mnt/webin/"}},
			wantErr: true,
		},
		{
			name:    "missing webin root",
			cfg:     Config{Paths: PathsConfig{S3Root: "/mnt/s3Load/"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	wd := t.TempDir()
	testutil.Chdir(t, wd)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cfg := &Config{Paths: PathsConfig{S3Root: "s3", WebinRoot: "/mnt/webin/"}}
	require.NoError(t, cfg.Resolve())

	assert.Equal(t, filepath.Join(cwd, "s3"), cfg.Paths.S3Root)
	assert.Equal(t, "/mnt/webin", cfg.Paths.WebinRoot)
	assert.Equal(t, filepath.Join(cwd, "s3", "key"), cfg.StagingFolder("key"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultS3Root, cfg.Paths.S3Root)
	assert.Equal(t, DefaultWebinRoot, cfg.Paths.WebinRoot)
}

func TestFolders(t *testing.T) {
	cfg := &Config{Paths: PathsConfig{S3Root: "/mnt/s3Load/", WebinRoot: "/mnt/webin/"}}

	assert.Equal(t, "/mnt/s3Load/abcde-123-fghi-jklmn", cfg.StagingFolder("abcde-123-fghi-jklmn"))
	assert.Equal(t, "/mnt/webin/58468", cfg.WebinFolder("Webin-58468"))
}

func TestWebinNumber(t *testing.T) {
	tests := map[string]string{
		"Webin-58468":   "58468",
		"58468":         "58468",
		"Webin-x-12345": "12345",
		"Webin-":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, WebinNumber(in), "WebinNumber(%q)", in)
	}
}
