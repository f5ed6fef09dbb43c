// Package pathutil expands user-supplied paths from the configuration.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand expands a leading ~ and environment variables and returns an
// absolute path. An empty path stays empty.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}

// ExpandOr expands path, falling back to def when path is empty or cannot
// be expanded.
func ExpandOr(path, def string) string {
	expanded, err := Expand(path)
	if err != nil || expanded == "" {
		return def
	}
	return expanded
}
