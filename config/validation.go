package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"
	"golang.org/x/text/language"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid locale '%s'", c.Locale)).
				WithDetail("locale", c.Locale)
		}
	}

	if c.Loader.BindBatchSize < 0 || c.Loader.BindBatchSize > MaxBindBatchSize {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("loader.bind_batch_size must be between 1 and %d", MaxBindBatchSize)).
			WithDetail("bind_batch_size", c.Loader.BindBatchSize)
	}
	if c.Loader.IdleRecheck != "" {
		if d, err := time.ParseDuration(c.Loader.IdleRecheck); err != nil || d <= 0 {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("loader.idle_recheck must be a positive duration, got '%s'", c.Loader.IdleRecheck))
		}
	}

	if c.Inventory.DebounceMs < 0 || c.Daemon.ConfigDebounceMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "debounce windows cannot be negative")
	}

	seen := make(map[int]string)
	for i, def := range c.Defaults {
		if strings.TrimSpace(def.Title) == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("defaults[%d]: title is required", i))
		}
		if _, err := models.ParseLaunchTarget(def.Target); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("defaults[%d]: invalid target", i)).
				WithDetail("title", def.Title)
		}
		if def.Position < 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("defaults[%d]: position cannot be negative", i))
		}
		if other, ok := seen[def.Position]; ok {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("defaults '%s' and '%s' share position %d", other, def.Title, def.Position))
		}
		seen[def.Position] = def.Title
	}

	return nil
}
