package reconcile

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch marks a staged file whose content does not match its recorded checksum
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Validator checks a reconciled staged file before it is delivered.
// Returning an error wrapping ErrChecksumMismatch rejects the file;
// any other error aborts the run.
type Validator interface {
	Validate(ctx context.Context, path, checksum string) error
}

// NopValidator accepts every file
type NopValidator struct{}

// Validate implements Validator
func (NopValidator) Validate(context.Context, string, string) error {
	return nil
}

// MD5Validator recomputes the MD5 digest of each file and compares it with
// the checksum stripped from its name
type MD5Validator struct{}

// Validate implements Validator
func (MD5Validator) Validate(ctx context.Context, path, checksum string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, checksum) {
		return fmt.Errorf("%w: %s has md5 %s, expected %s", ErrChecksumMismatch, path, got, checksum)
	}
	return nil
}
