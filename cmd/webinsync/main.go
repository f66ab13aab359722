package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schaermu/webinsync/internal/config"
	"github.com/schaermu/webinsync/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	dryRun    bool

	// Path and validation overrides
	s3Root          string
	webinRoot       string
	strictChecksums bool
	verifyMD5       bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webinsync <secure_key> <webin_user>",
	Short: "Prepare s3 drag-and-drop files and transfer them to Webin",
	Long: `webinsync strips the checksum suffix the drag-and-drop submission tool appends
to uploaded file names, records each checksum in checksums.csv inside the
staging folder, and copies reconciled files to the Webin upload folder.

secure_key is the key used when uploading to the drag-and-drop tool
(format: xxxxx-xxx-xxxx-xxxxx). webin_user is the Webin account used for the
submission (format: Webin-58468).`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runReconcile,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webinsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/webinsync/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.Flags().StringVar(&s3Root, "s3_root", "", "path of mounted s3 folder (default "+config.DefaultS3Root+")")
	rootCmd.Flags().StringVar(&webinRoot, "webin_root", "", "path of mounted webin folder (default "+config.DefaultWebinRoot+")")
	rootCmd.Flags().BoolVar(&strictChecksums, "strict-checksums", false, "only strip suffixes made of hex digits")
	rootCmd.Flags().BoolVar(&verifyMD5, "verify-md5", false, "verify each file's md5 against its checksum before copying")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	rootCmd.AddCommand(versionCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}

	secureKey, webinUser := args[0], args[1]

	var validator reconcile.Validator = reconcile.NopValidator{}
	if cfg.Validation.VerifyMD5 {
		validator = reconcile.MD5Validator{}
	}

	r, err := reconcile.New(cfg, secureKey, webinUser, validator, logger, dryRun)
	if err != nil {
		logger.Error("cannot start reconciliation", "error", err)
		return err
	}

	if _, err := r.Run(ctx); err != nil {
		logger.Error("reconciliation failed", "error", err)
		return err
	}

	return nil
}

// applyFlags lets explicitly set command line flags override the config file
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("s3_root") {
		cfg.Paths.S3Root = s3Root
	}
	if flags.Changed("webin_root") {
		cfg.Paths.WebinRoot = webinRoot
	}
	if flags.Changed("strict-checksums") {
		cfg.Validation.StrictChecksums = strictChecksums
	}
	if flags.Changed("verify-md5") {
		cfg.Validation.VerifyMD5 = verifyMD5
	}
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig reads the explicit config file, or the default one when it exists.
// Without either the built-in defaults are used.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Debug("no home directory, using default configuration", "error", err)
			return config.Default(), nil
		}
		configPath = filepath.Join(home, ".config", "webinsync", "config.yaml")
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config file, using default configuration", "path", configPath)
			return config.Default(), nil
		}
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"s3_root", cfg.Paths.S3Root,
		"webin_root", cfg.Paths.WebinRoot,
		"strict_checksums", cfg.Validation.StrictChecksums,
		"verify_md5", cfg.Validation.VerifyMD5)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
