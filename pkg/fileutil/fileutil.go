// Package fileutil locates game data and custom data files on disk.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no file matches.
var ErrNotFound = errors.New("file not found")

// FindFileCaseInsensitive searches dir for a file named filename, ignoring case.
// Games are often authored on case-insensitive file systems.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/saves", "Scores.DAT")
//	// Will find "scores.dat", "SCORES.DAT", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if name, ok := match(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// FindByExtension returns the first regular file in dir of fsys whose
// extension is ext, ignoring case. Names are tried in sorted order.
func FindByExtension(fsys fs.FS, dir, ext string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(entry.Name()), ext) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no %s file in %s", ErrNotFound, ext, dir)
	}
	sort.Strings(names)
	return path.Join(dir, names[0]), nil
}

func match(entries []fs.DirEntry, filename string) (string, bool) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true
		}
	}
	return "", false
}
