// Package state persists small launcher settings that survive restarts,
// such as the locale and region the model was last loaded with.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/grovetools/launcher/pkg/paths"
)

// Keys used by the launcher model.
const (
	KeyLocale = "locale"
	KeyRegion = "region"
)

// State is the decoded content of the state file.
type State map[string]interface{}

// File is a YAML key/value file. Every operation rereads the file so
// separate processes see each other's writes.
type File struct {
	mu   sync.Mutex
	path string
}

// Open returns the state file at path. An empty path means
// <state dir>/state.yml.
func Open(path string) *File {
	if path == "" {
		path = filepath.Join(paths.StateDir(), "state.yml")
	}
	return &File{path: path}
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

// Load returns the whole state. A missing file is an empty state.
func (f *File) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st == nil {
		st = make(State)
	}
	return st, nil
}

func (f *File) save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// GetString returns the value of key, or "" when it is absent or not a string.
func (f *File) GetString(key string) (string, error) {
	st, err := f.Load()
	if err != nil {
		return "", err
	}
	s, _ := st[key].(string)
	return s, nil
}

// Set stores value under key.
func (f *File) Set(key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.load()
	if err != nil {
		return err
	}
	st[key] = value
	return f.save(st)
}

// Delete removes key.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := st[key]; !ok {
		return nil
	}
	delete(st, key)
	return f.save(st)
}
