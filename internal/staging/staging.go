package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schaermu/webinsync/internal/checksums"
)

// ChecksumLength is the length of the suffix the upload tool appends
const ChecksumLength = 32

// SplitChecksum splits "<name>.<checksum>" on the last dot.
// ok is true when the trailing segment is exactly ChecksumLength characters.
// The segment content is not inspected, so a 32 character extension also matches.
func SplitChecksum(fileName string) (name, checksum string, ok bool) {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return fileName, "", false
	}
	suffix := fileName[i+1:]
	if len(suffix) != ChecksumLength {
		return fileName, "", false
	}
	return fileName[:i], suffix, true
}

// IsHexChecksum returns true if s looks like a hex encoded 128-bit digest
func IsHexChecksum(s string) bool {
	if len(s) != ChecksumLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// ListFiles returns the regular files directly inside dir, sorted by name.
// The checksum map file is never listed.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == checksums.FileName {
			continue
		}
		// Leftovers from an interrupted atomic write
		if strings.HasPrefix(entry.Name(), TempPrefix) || strings.HasPrefix(entry.Name(), checksums.TempPrefix) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	return files, nil
}

// IsDir returns true if path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Exists reports whether path exists
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// RemoveStale removes path if it exists and reports whether it did
func RemoveStale(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove stale file %s: %w", path, err)
	}
	return true, nil
}

// TempPrefix names the temporary file CopyFile writes before renaming it into place
const TempPrefix = ".webinsync-tmp-"

// CopyFile copies a file from src to dst with atomic write
func CopyFile(src, dst string) error {
	// Open source
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// Create temp file in destination directory
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), TempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode().Perm()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}
