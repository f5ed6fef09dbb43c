package logging

// Config is the "logging" section of launcher.yml.
type Config struct {
	// Level is the minimum level to output ("debug", "info", "warn", "error").
	// LAUNCHER_LOG_LEVEL overrides it.
	Level string `yaml:"level"`

	// ReportCaller adds file, line and function to every entry.
	// LAUNCHER_LOG_CALLER=true enables it too.
	ReportCaller bool `yaml:"report_caller"`

	File FileSinkConfig `yaml:"file"`

	Format FormatConfig `yaml:"format"`
}

// FileSinkConfig configures the rotating log file.
type FileSinkConfig struct {
	// Enabled is nil when unset; the daemon turns file logging on in that case.
	Enabled *bool `yaml:"enabled"`
	// Path defaults to <state dir>/logs/launcher.log.
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Format     string `yaml:"format,omitempty"` // "text" (default) or "json"
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset can be "default" (rich text), "simple" (minimal text), or "json".
	Preset           string `yaml:"preset"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	// StructuredToStderr is "auto" (default), "always", or "never".
	StructuredToStderr string `yaml:"structured_to_stderr"`
}

func (f FileSinkConfig) enabled() bool {
	return f.Enabled != nil && *f.Enabled
}

// WithFileDefault enables the file sink unless the config turned it off.
func (c Config) WithFileDefault() Config {
	if c.File.Enabled == nil {
		on := true
		c.File.Enabled = &on
	}
	return c
}
