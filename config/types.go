package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

//go:generate go run ../tools/schema-generator/

// MaxBindBatchSize bounds loader.bind_batch_size; larger workspace deliveries
// are never made.
const MaxBindBatchSize = 6

// StoreConfig locates the persistent item store.
type StoreConfig struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Path to the SQLite item database (default: $XDG_DATA_HOME/launcher/items.db)"`
}

// InventoryConfig configures the manifest directory that stands in for the installed-package inventory.
type InventoryConfig struct {
	Dir        string   `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty" jsonschema:"description=Directory holding one manifest per package"`
	Ignore     []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" json:"ignore,omitempty" jsonschema:"description=Patterns of manifest files to skip"`
	Watch      *bool    `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Watch the directory and turn file changes into package events (default: true)"`
	DebounceMs int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" jsonschema:"description=Debounce window for rapid manifest changes in milliseconds (default: 100)"`
	// AppFilter lists packages that never appear in the all-apps list.
	AppFilter []string `yaml:"app_filter,omitempty" toml:"app_filter,omitempty" json:"app_filter,omitempty" jsonschema:"description=Packages excluded from the all-apps list"`
}

// LoaderConfig tunes the background loader.
type LoaderConfig struct {
	BindBatchSize     int    `yaml:"bind_batch_size,omitempty" toml:"bind_batch_size,omitempty" json:"bind_batch_size,omitempty" jsonschema:"description=Maximum workspace items per bind delivery (1-6; default: 6),minimum=1,maximum=6"`
	IdleRecheck       string `yaml:"idle_recheck,omitempty" toml:"idle_recheck,omitempty" json:"idle_recheck,omitempty" jsonschema:"description=Re-check interval while waiting for the UI to go idle (default: 1s)"`
	StrictConsistency bool   `yaml:"strict_consistency,omitempty" toml:"strict_consistency,omitempty" json:"strict_consistency,omitempty" jsonschema:"description=Turn model consistency mismatches into errors"`
}

// DaemonConfig holds configuration for the launcher daemon.
type DaemonConfig struct {
	Socket           string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket path for the daemon API"`
	ConfigWatch      *bool  `yaml:"config_watch,omitempty" toml:"config_watch,omitempty" json:"config_watch,omitempty" jsonschema:"description=Enable config watching (default: true)"`
	ConfigDebounceMs int    `yaml:"config_debounce_ms,omitempty" toml:"config_debounce_ms,omitempty" json:"config_debounce_ms,omitempty" jsonschema:"description=Debounce window for rapid config changes in milliseconds (default: 100)"`
}

// DefaultItem is a favorite seeded into an empty item store.
type DefaultItem struct {
	Title        string `yaml:"title" toml:"title" json:"title" jsonschema:"description=Title shown for the item"`
	Target       string `yaml:"target" toml:"target" json:"target" jsonschema:"description=Launch target descriptor (launch:<action>?component=<pkg/class>) or *BROWSER*"`
	Position     int    `yaml:"position" toml:"position" json:"position" jsonschema:"description=Workspace position"`
	IconResource string `yaml:"icon_resource,omitempty" toml:"icon_resource,omitempty" json:"icon_resource,omitempty" jsonschema:"description=Icon resource reference"`
}

// Config represents the launcher.yml configuration
type Config struct {
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Locale  string `yaml:"locale,omitempty" toml:"locale,omitempty" json:"locale,omitempty" jsonschema:"description=BCP 47 locale used to collate app titles"`
	Region  string `yaml:"region,omitempty" toml:"region,omitempty" json:"region,omitempty" jsonschema:"description=Region code; a change forces a reload"`

	Store     StoreConfig     `yaml:"store,omitempty" toml:"store,omitempty" json:"store,omitempty" jsonschema:"description=Item store settings"`
	Inventory InventoryConfig `yaml:"inventory,omitempty" toml:"inventory,omitempty" json:"inventory,omitempty" jsonschema:"description=Package inventory settings"`
	Loader    LoaderConfig    `yaml:"loader,omitempty" toml:"loader,omitempty" json:"loader,omitempty" jsonschema:"description=Background loader settings"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Daemon settings"`
	Defaults  []DefaultItem   `yaml:"defaults,omitempty" toml:"defaults,omitempty" json:"defaults,omitempty" jsonschema:"description=Favorites seeded into an empty item store"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Loader.BindBatchSize == 0 {
		c.Loader.BindBatchSize = MaxBindBatchSize
	}
	if c.Loader.IdleRecheck == "" {
		c.Loader.IdleRecheck = "1s"
	}
	if c.Inventory.DebounceMs == 0 {
		c.Inventory.DebounceMs = 100
	}
	if c.Inventory.Watch == nil {
		trueVal := true
		c.Inventory.Watch = &trueVal
	}
	if c.Daemon.ConfigWatch == nil {
		trueVal := true
		c.Daemon.ConfigWatch = &trueVal
	}
	if c.Daemon.ConfigDebounceMs == 0 {
		c.Daemon.ConfigDebounceMs = 100
	}
}

// IdleRecheckInterval parses Loader.IdleRecheck, falling back to one second.
func (c *Config) IdleRecheckInterval() time.Duration {
	d, err := time.ParseDuration(c.Loader.IdleRecheck)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded launcher.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing key leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
