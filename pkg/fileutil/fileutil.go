package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/webretriever/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	assetsDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// IsSinkSpecialName reports whether name is one of the special sink targets
// (§4.8 "Special names") that route to stdout or a discard sink instead of
// the filesystem: "-" (stdout), "/dev/null", and the platform null device.
func IsSinkSpecialName(name string) bool {
	if name == "/dev/null" {
		return true
	}
	switch name {
	case "-", os.DevNull:
		return true
	default:
		return false
	}
}

// RotateBackups shifts name.{n-1} -> name.{n} down to name.1, discarding
// name.{backups} if present, then moves the current file at name to
// name.1. Implements the "if backups > 0, rotate .1..backups" rule of
// §4.8 step 3. A no-op if name does not currently exist.
func RotateBackups(name string, backups int) error {
	if backups <= 0 {
		return nil
	}
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	oldest := fmt.Sprintf("%s.%d", name, backups)
	if _, err := os.Stat(oldest); err == nil {
		if rmErr := os.Remove(oldest); rmErr != nil {
			return rmErr
		}
	}

	for n := backups - 1; n >= 1; n-- {
		src := fmt.Sprintf("%s.%d", name, n)
		dst := fmt.Sprintf("%s.%d", name, n+1)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}

	return os.Rename(name, name+".1")
}

// UniqueName implements the §4.8 step-4 unique-name fallback: given a base
// path that is already known to collide, return the first of
// "name.1", "name.2", ... "name.999" that does not exist. Returns an error
// once the 999 cap is exhausted.
func UniqueName(name string) (string, error) {
	for n := 1; n <= 999; n++ {
		candidate := fmt.Sprintf("%s.%d", name, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", &FileError{
		Message:   fmt.Sprintf("exhausted unique-name fallback for %s", name),
		Retryable: false,
		Cause:     ErrCauseUniqueNameExhausted,
	}
}

// CopyExistingBytes pre-seeds dst with the bytes already present at path,
// for the "range continuation" case in §4.8 step 5: the assembler resumes
// a partial download and needs to verify/complete against what is already
// on disk.
func CopyExistingBytes(path string, dst io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}
