// Package fileutil provides the path and file helpers shared by the
// exporters and binaries.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
	tempPattern            = ".partial-*"
)

// Time formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.2fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir  = "failed to create directory %s: %w"
	errFmtFailedToCreateTemp = "failed to create temp file in %s: %w"
	errFmtFailedToRename     = "failed to move %s into place: %w"
)

// ErrEmptyName is returned when a name sanitizes to nothing.
var ErrEmptyName = errors.New("file name is empty after sanitizing")

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// SanitizeFilename replaces characters that are invalid in most filesystems
// and strips surrounding dots and spaces.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		"\x00", "",
	)

	return strings.Trim(replacer.Replace(filename), ". ")
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FormatDuration formats seconds for display (e.g. "1h 15m", "5m 30.5s", "4.25s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// TempFile creates an empty temp file in dir whose name marks it partial.
func TempFile(dir, suffix string) (*os.File, error) {
	file, createErr := os.CreateTemp(dir, tempPattern+suffix)
	if createErr != nil {
		return nil, fmt.Errorf(errFmtFailedToCreateTemp, dir, createErr)
	}

	return file, nil
}

// Commit renames tempPath to finalPath, removing tempPath if that fails.
func Commit(tempPath, finalPath string) error {
	renameErr := os.Rename(tempPath, finalPath)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf(errFmtFailedToRename, finalPath, renameErr)
	}

	return nil
}
