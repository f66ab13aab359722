package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultS3Root    = "/mnt/s3Load/"
	DefaultWebinRoot = "/mnt/webin/"
)

// Config represents the complete webinsync configuration
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Validation ValidationConfig `yaml:"validation"`
}

// PathsConfig configures the mount points of both folders
type PathsConfig struct {
	S3Root    string `yaml:"s3_root"`
	WebinRoot string `yaml:"webin_root"`
}

// ValidationConfig configures how staged files are checked before delivery
type ValidationConfig struct {
	// StrictChecksums only strips suffixes made of hex digits
	StrictChecksums bool `yaml:"strict_checksums"`
	// VerifyMD5 recomputes each staged file's digest before copying it
	VerifyMD5 bool `yaml:"verify_md5"`
}

// Default returns the configuration used when no config file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.S3Root = os.ExpandEnv(c.Paths.S3Root)
	c.Paths.WebinRoot = os.ExpandEnv(c.Paths.WebinRoot)
}

// applyDefaults fills in zero-value fields with the standard mount points.
func (c *Config) applyDefaults() {
	if c.Paths.S3Root == "" {
		c.Paths.S3Root = DefaultS3Root
	}
	if c.Paths.WebinRoot == "" {
		c.Paths.WebinRoot = DefaultWebinRoot
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.S3Root == "" {
		return fmt.Errorf("paths.s3_root is required")
	}
	if c.Paths.WebinRoot == "" {
		return fmt.Errorf("paths.webin_root is required")
	}

	return nil
}

// Resolve turns relative mount roots into absolute paths against the
// working directory
func (c *Config) Resolve() error {
	s3Root, err := filepath.Abs(c.Paths.S3Root)
	if err != nil {
		return fmt.Errorf("failed to resolve paths.s3_root: %w", err)
	}
	webinRoot, err := filepath.Abs(c.Paths.WebinRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve paths.webin_root: %w", err)
	}
	c.Paths.S3Root = s3Root
	c.Paths.WebinRoot = webinRoot
	return nil
}

// StagingFolder returns the S3 staging folder for a secure key
func (c *Config) StagingFolder(secureKey string) string {
	return filepath.Join(c.Paths.S3Root, secureKey)
}

// WebinFolder returns the upload folder for a Webin account such as "Webin-58468"
func (c *Config) WebinFolder(webinUser string) string {
	return filepath.Join(c.Paths.WebinRoot, WebinNumber(webinUser))
}

// WebinNumber returns the part of the account name after the last dash
func WebinNumber(webinUser string) string {
	if i := strings.LastIndex(webinUser, "-"); i >= 0 {
		return webinUser[i+1:]
	}
	return webinUser
}
