package inventory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"
)

// Manifest describes one installed package.
//
//	package: com.example.camera
//	installed: 2024-03-01T10:00:00Z
//	activities:
//	  - class: .Camera
//	    label: Camera
type Manifest struct {
	Package    string     `yaml:"package" toml:"package"`
	Enabled    *bool      `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Installed  time.Time  `yaml:"installed,omitempty" toml:"installed,omitempty"`
	Activities []Activity `yaml:"activities" toml:"activities"`
}

// Activity is one launchable entry point of a package.
type Activity struct {
	Class string `yaml:"class" toml:"class"`
	Label string `yaml:"label,omitempty" toml:"label,omitempty"`
	Icon  string `yaml:"icon,omitempty" toml:"icon,omitempty"`
}

// IsEnabled defaults to true when the field is absent.
func (m *Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Entries expands the manifest into inventory rows. Relative icon paths
// are resolved against dir.
func (m *Manifest) Entries(dir string) []models.InventoryEntry {
	out := make([]models.InventoryEntry, 0, len(m.Activities))
	for _, a := range m.Activities {
		class := a.Class
		if strings.HasPrefix(class, ".") {
			class = m.Package + class
		}
		icon := a.Icon
		if icon != "" && !filepath.IsAbs(icon) && dir != "" {
			icon = filepath.Join(dir, icon)
		}
		out = append(out, models.InventoryEntry{
			Component:        models.ComponentKey{Package: m.Package, Class: class},
			Label:            strings.TrimSpace(a.Label),
			IconPath:         icon,
			FirstInstallTime: m.Installed,
		})
	}
	return out
}

func (m *Manifest) validate() error {
	if m.Package == "" {
		return fmt.Errorf("package is required")
	}
	if strings.ContainsAny(m.Package, "/ ") {
		return fmt.Errorf("package %q contains invalid characters", m.Package)
	}
	for i, a := range m.Activities {
		if a.Class == "" {
			return fmt.Errorf("activities[%d]: class is required", i)
		}
	}
	return nil
}

// IsManifestFile reports whether name has a manifest extension.
func IsManifestFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}

// ParseManifest decodes a manifest; the format follows the file extension.
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		err = toml.NewDecoder(bytes.NewReader(data)).Decode(&m)
	} else {
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeManifest, "decode manifest").WithDetail("file", name)
	}
	if err := m.validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeManifest, "invalid manifest").WithDetail("file", name)
	}
	return &m, nil
}

// ReadManifest reads and parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInventoryRead, "read manifest").WithDetail("file", path)
	}
	return ParseManifest(path, data)
}
