package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Format is the on-disk syntax of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var configNames = []string{
	"launcher.yml",
	"launcher.yaml",
	"launcher.toml",
	".launcher.yml",
	".launcher.yaml",
	".launcher.toml",
}

// FormatForPath picks the syntax from the file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// IsConfigFile reports whether path has a configuration file extension.
func IsConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}

// Load reads and parses a launcher configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytesFormat(data, FormatForPath(path))
	if err != nil {
		if lerr, ok := err.(*errors.LauncherError); ok {
			return nil, lerr.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault finds and loads the configuration with hierarchical merging:
// 1. Global config ($XDG_CONFIG_HOME/launcher/launcher.yml) - base layer
// 2. Project config (launcher.yml, searched upward from the working directory) - overrides global
// 3. Local override (launcher.override.yml) - overrides all
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	var layers []*Config

	// 1. Global config (optional)
	if globalPath := findInDir(paths.ConfigDir()); globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		if cfg, err := loadRaw(globalPath); err == nil {
			layers = append(layers, cfg)
		} else {
			logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
		}
	}

	// 2. Project config (optional when a global config exists)
	projectPath, err := findProjectConfig(startDir)
	if err == nil {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		cfg, err := loadRaw(projectPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse project config").
				WithDetail("path", projectPath)
		}
		layers = append(layers, cfg)

		// 3. Overrides next to the project config
		projectDir := filepath.Dir(projectPath)
		for _, name := range []string{"launcher.override.yml", "launcher.override.yaml", "launcher.override.toml"} {
			overridePath := filepath.Join(projectDir, name)
			if _, statErr := os.Stat(overridePath); statErr != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")
			override, err := loadRaw(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}
			layers = append(layers, override)
		}
	}

	if len(layers) == 0 {
		return nil, errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
	}

	finalConfig := layers[0]
	for _, layer := range layers[1:] {
		finalConfig = mergeConfigs(finalConfig, layer)
	}

	finalConfig.SetDefaults()
	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded and validated successfully")
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if configData, err := yaml.Marshal(finalConfig); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return finalConfig, nil
}

// LoadFromBytes parses YAML configuration from byte array
func LoadFromBytes(data []byte) (*Config, error) {
	return LoadFromBytesFormat(data, FormatYAML)
}

// LoadFromBytesFormat parses configuration in the given syntax, validates it
// against the embedded schema and applies defaults.
func LoadFromBytesFormat(data []byte, format Format) (*Config, error) {
	raw, err := decodeGeneric(data, format)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration")
	}

	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	config, err := fromGeneric(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FindConfigFile searches for launcher configuration files with the following precedence:
// 1. Current directory up to filesystem root
// 2. XDG config directory ($XDG_CONFIG_HOME/launcher/launcher.yml)
func FindConfigFile(startDir string) (string, error) {
	if path, err := findProjectConfig(startDir); err == nil {
		return path, nil
	}
	if path := findInDir(paths.ConfigDir()); path != "" {
		return path, nil
	}
	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

func findProjectConfig(startDir string) (string, error) {
	dir := startDir
	for {
		if path := findInDir(dir); path != "" {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.ConfigNotFound(startDir)
}

func findInDir(dir string) string {
	if dir == "" {
		return ""
	}
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadRaw reads one layer without defaults or validation.
func loadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decodeGeneric(data, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	return fromGeneric(raw)
}

// decodeGeneric expands env vars and decodes into plain maps so YAML and TOML
// share one schema validation and decoding path.
func decodeGeneric(data []byte, format Format) (map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))
	raw := map[string]interface{}{}

	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func fromGeneric(raw map[string]interface{}) (*Config, error) {
	normalized, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(normalized, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
