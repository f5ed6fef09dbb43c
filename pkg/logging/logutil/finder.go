// Package logutil locates the daemon's log files on disk.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindLogFile returns path when it exists and is non-empty. Otherwise it falls
// back to the newest rotated backup next to it, since lumberjack renames the
// active file to <name>-<timestamp><ext> when it rotates.
func FindLogFile(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(filepath.Base(path), ext)
	latest, err := FindLatestLogFile(filepath.Dir(path), func(name string) bool {
		return strings.HasPrefix(name, prefix) && (strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz"))
	})
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
		return "", err
	}
	return latest, nil
}

// FindLatestLogFile finds the most recently modified file in dir accepted by match.
// Prefers files with content over empty files; compressed backups are skipped
// unless nothing else matches.
func FindLatestLogFile(dir string, match func(name string) bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latestFile, latestNonEmptyFile os.FileInfo
	var latestPath, latestNonEmptyPath string

	for _, entry := range entries {
		if entry.IsDir() || (match != nil && !match(entry.Name())) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestFile == nil || info.ModTime().After(latestFile.ModTime()) {
			latestFile = info
			latestPath = filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 && !strings.HasSuffix(entry.Name(), ".gz") {
			if latestNonEmptyFile == nil || info.ModTime().After(latestNonEmptyFile.ModTime()) {
				latestNonEmptyFile = info
				latestNonEmptyPath = filepath.Join(dir, entry.Name())
			}
		}
	}

	if latestNonEmptyFile != nil {
		return latestNonEmptyPath, nil
	}
	if latestFile == nil {
		return "", fmt.Errorf("no log files found in %s", dir)
	}
	return latestPath, nil
}
