package item

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedItemsFile is returned for items files of an unknown type.
var ErrUnsupportedItemsFile = errors.New("unsupported items file")

// skippedPrefixes mark lock and scratch files, such as the "~$" files office
// suites leave next to an open sheet.
var skippedPrefixes = []string{"~", "_"}

// FilesInDir lists the items files directly inside dir in name order. Names
// starting with "~" or "_" are skipped.
func FilesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list items directory %s: %w", dir, err)
	}

	var paths []string

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || hasSkippedPrefix(name) {
			continue
		}

		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv", ".toml":
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	return paths, nil
}

func hasSkippedPrefix(name string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// ReadFile loads records from a .csv or .toml items file.
func ReadFile(path string, separator rune, opts ...ReadOption) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(bytes.NewReader(data), separator, opts...)
	case ".toml":
		return ReadTOML(data, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedItemsFile, path)
	}
}
