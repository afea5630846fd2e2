package ipc

import (
	"fmt"
	"os"
	"path/filepath"
)

func getExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Dir(execPath), nil
}

func getRelativePath(relativePath string) (string, error) {
	execDir, err := getExecutableDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(execDir, relativePath), nil
}

// resolvePath returns p unchanged when it is absolute or exists relative to
// the working directory, and otherwise resolves it next to the executable.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	if rel, err := getRelativePath(p); err == nil {
		return rel
	}
	return p
}

func contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}
