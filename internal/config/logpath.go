package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrLogPathNotFound is returned when the log path dir does not exist.
	ErrLogPathNotFound = errors.New("log path dir not found")
	// ErrNotADirectory is returned when the log path exists but is not a directory.
	ErrNotADirectory = errors.New("log path is not a directory")
)

// ResolveLogPath returns the absolute, symlink-free form of the log path dir
// and checks that it is a directory.
func ResolveLogPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrLogPathNotFound)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLogPathNotFound, abs)
		}
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, resolved)
	}
	return resolved, nil
}
