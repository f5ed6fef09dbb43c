package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/grovetools/launcher/config"
	"github.com/grovetools/launcher/pkg/paths"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	// configured is set by Configure; otherwise the config is loaded lazily.
	configured *Config
	loadOnce   sync.Once
	loaded     Config

	// fileSinks shares one rotating writer per path across components.
	fileSinks = make(map[string]*lumberjack.Logger)
)

// Configure fixes the logging config used by loggers created afterwards.
// Loggers that already exist keep their settings.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	configured = &cfg
}

// Reset drops cached loggers and closes file sinks. Tests use it between cases.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	loggers = make(map[string]*logrus.Entry)
	for _, sink := range fileSinks {
		_ = sink.Close()
	}
	fileSinks = make(map[string]*lumberjack.Logger)
	configured = nil
}

// FromConfig extracts the logging section of a launcher config.
func FromConfig(cfg *config.Config) (Config, error) {
	var logCfg Config
	if cfg == nil {
		return logCfg, nil
	}
	err := cfg.UnmarshalExtension("logging", &logCfg)
	return logCfg, err
}

func currentConfig() Config {
	if configured != nil {
		return *configured
	}
	loadOnce.Do(func() {
		cfg, err := config.LoadDefault()
		if err != nil {
			return
		}
		if loaded, err = FromConfig(cfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	})
	return loaded
}

// NewLogger returns the logger of a component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logCfg := currentConfig()
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("LAUNCHER_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("LAUNCHER_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	var formatter logrus.Formatter
	switch logCfg.Format.Preset {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "simple":
		formatter = &TextFormatter{Config: FormatConfig{DisableTimestamp: true, DisableComponent: true}}
	default:
		formatter = &TextFormatter{Config: logCfg.Format}
	}
	logger.SetFormatter(formatter)

	var writers []io.Writer
	if shouldLogToStderr(logCfg, level) {
		writers = append(writers, consoleOutput)
	}
	if sink := fileSink(logCfg.File); sink != nil {
		var fileFormatter logrus.Formatter = &TextFormatter{Config: logCfg.Format, Plain: true}
		if logCfg.File.Format == "json" {
			fileFormatter = &logrus.JSONFormatter{}
		}
		logger.AddHook(&writerHook{writer: sink, formatter: fileFormatter})
	}

	if len(writers) == 0 {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

func shouldLogToStderr(cfg Config, level logrus.Level) bool {
	switch cfg.Format.StructuredToStderr {
	case "always":
		return true
	case "never":
		return false
	}
	// auto: quiet in an interactive terminal unless debugging
	isDebug := os.Getenv("LAUNCHER_DEBUG") == "1" || level >= logrus.DebugLevel
	fd := os.Stderr.Fd()
	isInteractive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return isDebug || !isInteractive
}

// fileSink returns the shared rotating writer for the configured path, or
// nil when file logging is disabled or the directory cannot be created.
func fileSink(cfg FileSinkConfig) *lumberjack.Logger {
	if !cfg.enabled() {
		return nil
	}
	path := cfg.Path
	if path == "" {
		path = filepath.Join(paths.LogDir(), "launcher.log")
	}
	path = expandPath(path)

	if sink, ok := fileSinks[path]; ok {
		return sink
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil
	}
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 14),
		Compress:   cfg.Compress,
	}
	fileSinks[path] = sink
	return sink
}

// LogFilePath returns the file the daemon logs to under the current config.
func LogFilePath() string {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	cfg := currentConfig()
	if cfg.File.Path != "" {
		return expandPath(cfg.File.Path)
	}
	return filepath.Join(paths.LogDir(), "launcher.log")
}

// writerHook writes every entry to an extra sink with its own formatter.
type writerHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
