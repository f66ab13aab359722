package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/schaermu/webinsync/internal/checksums"
	"github.com/schaermu/webinsync/internal/config"
	"github.com/schaermu/webinsync/internal/staging"
)

var (
	// ErrStagingFolderMissing is returned when root+secure key is not a directory
	ErrStagingFolderMissing = errors.New("s3 staging folder does not exist")
	// ErrWebinFolderMissing is returned when root+account number is not a directory
	ErrWebinFolderMissing = errors.New("webin folder does not exist")
)

// Result summarizes one reconciliation run
type Result struct {
	Stripped int
	Rejected int
	Copied   int
	Skipped  int
}

// Reconciler moves staged drag-and-drop uploads into a Webin folder
type Reconciler struct {
	stagingDir   string
	webinDir     string
	checksumPath string
	checksums    *checksums.Map
	validator    Validator
	strict       bool
	logger       *slog.Logger
	dryRun       bool

	// dry-run bookkeeping: stripped name -> staged file name, and Webin
	// files that a real run would have removed
	pending map[string]string
	stale   map[string]bool

	result Result
}

// New creates a reconciler for one staging area and Webin account.
// Both folders must already exist; a nil validator accepts every file.
// In dry-run mode nothing on disk is changed.
func New(cfg *config.Config, secureKey, webinUser string, validator Validator, logger *slog.Logger, dryRun bool) (*Reconciler, error) {
	stagingDir := cfg.StagingFolder(secureKey)
	if !staging.IsDir(stagingDir) {
		return nil, fmt.Errorf("%w: %s", ErrStagingFolderMissing, stagingDir)
	}

	webinDir := cfg.WebinFolder(webinUser)
	if !staging.IsDir(webinDir) {
		return nil, fmt.Errorf("%w: %s", ErrWebinFolderMissing, webinDir)
	}

	checksumPath := filepath.Join(stagingDir, checksums.FileName)
	m, err := checksums.Load(checksumPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load checksums: %w", err)
	}

	if validator == nil {
		validator = NopValidator{}
	}

	logger.Debug("reconciler ready",
		"staging_dir", stagingDir,
		"webin_dir", webinDir,
		"known_files", m.Len(),
		"dry_run", dryRun)

	return &Reconciler{
		stagingDir:   stagingDir,
		webinDir:     webinDir,
		checksumPath: checksumPath,
		checksums:    m,
		validator:    validator,
		strict:       cfg.Validation.StrictChecksums,
		logger:       logger,
		dryRun:       dryRun,
		pending:      make(map[string]string),
		stale:        make(map[string]bool),
	}, nil
}

// StagingDir returns the S3 staging folder
func (r *Reconciler) StagingDir() string {
	return r.stagingDir
}

// WebinDir returns the Webin destination folder
func (r *Reconciler) WebinDir() string {
	return r.webinDir
}

// Checksums returns the in-memory checksum map
func (r *Reconciler) Checksums() *checksums.Map {
	return r.checksums
}

// Run executes strip, validate and copy in order, then persists the checksum map.
// The map is saved even when a step fails.
func (r *Reconciler) Run(ctx context.Context) (res *Result, err error) {
	defer func() {
		if cerr := r.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	r.logger.Info("starting reconciliation",
		"staging_dir", r.stagingDir,
		"webin_dir", r.webinDir,
		"dry_run", r.dryRun)

	if err := r.StripChecksums(); err != nil {
		return nil, fmt.Errorf("failed to strip checksums: %w", err)
	}
	if err := r.Validate(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.CopyReconciled(); err != nil {
		return nil, fmt.Errorf("failed to copy files to webin: %w", err)
	}

	result := r.result
	r.logger.Info("reconciliation completed",
		"stripped", result.Stripped,
		"rejected", result.Rejected,
		"copied", result.Copied,
		"skipped", result.Skipped,
		"dry_run", r.dryRun)

	return &result, nil
}

// StripChecksums renames every "<name>.<checksum>" file in the staging folder
// to "<name>" and records the checksum
func (r *Reconciler) StripChecksums() error {
	files, err := staging.ListFiles(r.stagingDir)
	if err != nil {
		return fmt.Errorf("failed to list staging folder: %w", err)
	}

	for _, file := range files {
		name, sum, ok := staging.SplitChecksum(file)
		if !ok {
			continue
		}
		if r.strict && !staging.IsHexChecksum(sum) {
			r.logger.Debug("ignoring non-hex checksum suffix", "file", file)
			continue
		}
		if name == "" || name == checksums.FileName {
			r.logger.Warn("ignoring staged file with reserved name", "file", file)
			continue
		}

		r.logger.Info("new staged file detected", "name", name, "checksum", sum)
		r.checksums.Set(name, sum)

		src := filepath.Join(r.stagingDir, file)
		dst := filepath.Join(r.stagingDir, name)
		if err := r.replace(src, dst); err != nil {
			return err
		}
		if r.dryRun {
			r.pending[name] = file
		}

		// An older delivery must not block the new content
		if err := r.removeStale(filepath.Join(r.webinDir, name), name); err != nil {
			return err
		}

		r.result.Stripped++
	}

	return nil
}

// replace renames src over dst; the rename swaps any stale dst atomically
func (r *Reconciler) replace(src, dst string) error {
	exists, err := staging.Exists(dst)
	if err != nil {
		return err
	}

	if r.dryRun {
		if exists {
			r.logger.Info("[dry-run] would replace stale file", "path", dst)
		}
		r.logger.Info("[dry-run] would rename", "source", src, "dest", dst)
		return nil
	}

	if exists {
		r.logger.Info("replacing stale file", "path", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename %s: %w", src, err)
	}
	return nil
}

func (r *Reconciler) removeStale(path, name string) error {
	if r.dryRun {
		exists, err := staging.Exists(path)
		if err != nil {
			return err
		}
		if exists {
			r.logger.Info("[dry-run] would remove stale file", "path", path)
			r.stale[name] = true
		}
		return nil
	}

	removed, err := staging.RemoveStale(path)
	if err != nil {
		return err
	}
	if removed {
		r.logger.Info("removed stale file", "path", path)
	}
	return nil
}

// Validate runs the configured validator over every reconciled staged file.
// A rejected file loses its checksum entry, so neither this nor a later run
// delivers it until it is uploaded again.
func (r *Reconciler) Validate(ctx context.Context) error {
	files, err := r.reconciledFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		sum, _ := r.checksums.Get(file)
		err := r.validator.Validate(ctx, r.sourcePath(file), sum)
		switch {
		case err == nil:
		case errors.Is(err, ErrChecksumMismatch):
			r.logger.Warn("rejecting staged file until it is uploaded again", "name", file, "error", err)
			r.checksums.Delete(file)
			r.result.Rejected++
		default:
			return err
		}
	}

	return nil
}

// CopyReconciled copies every reconciled staged file that the Webin folder
// does not have yet. Existing destination files are left untouched.
func (r *Reconciler) CopyReconciled() error {
	files, err := r.reconciledFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		src := r.sourcePath(file)
		dst := filepath.Join(r.webinDir, file)

		exists, err := staging.Exists(dst)
		if err != nil {
			return err
		}
		if exists && !r.stale[file] {
			r.logger.Info("file already delivered", "path", dst)
			r.result.Skipped++
			continue
		}

		if r.dryRun {
			r.logger.Info("[dry-run] would copy file", "source", src, "dest", dst)
			r.result.Copied++
			continue
		}

		r.logger.Info("copying file", "source", src, "dest", dst)
		if err := staging.CopyFile(src, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
		r.result.Copied++
	}

	return nil
}

// Close persists the checksum map if it changed. Calling it again is a no-op.
func (r *Reconciler) Close() error {
	if r.dryRun {
		if r.checksums.Dirty() {
			r.logger.Info("[dry-run] would save checksum file", "path", r.checksumPath, "entries", r.checksums.Len())
		}
		return nil
	}

	saved, err := r.checksums.SaveIfDirty(r.checksumPath)
	if err != nil {
		return fmt.Errorf("failed to save checksums: %w", err)
	}
	if saved {
		r.logger.Info("saved checksum file", "path", r.checksumPath, "entries", r.checksums.Len())
	}
	return nil
}

// reconciledFiles lists staged files that previously carried a checksum,
// sorted by name
func (r *Reconciler) reconciledFiles() ([]string, error) {
	files, err := staging.ListFiles(r.stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list staging folder: %w", err)
	}

	// names a dry run would have produced by renaming
	for name := range r.pending {
		if !slices.Contains(files, name) {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	known := files[:0]
	for _, file := range files {
		if r.checksums.Has(file) {
			known = append(known, file)
		}
	}
	return known, nil
}

// sourcePath returns where the content for a reconciled name currently lives
func (r *Reconciler) sourcePath(name string) string {
	if file, ok := r.pending[name]; ok {
		return filepath.Join(r.stagingDir, file)
	}
	return filepath.Join(r.stagingDir, name)
}
