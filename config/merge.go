package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Locale != "" {
		result.Locale = override.Locale
	}
	if override.Region != "" {
		result.Region = override.Region
	}

	if override.Store.Path != "" {
		result.Store.Path = override.Store.Path
	}

	if override.Inventory.Dir != "" {
		result.Inventory.Dir = override.Inventory.Dir
	}
	if len(override.Inventory.Ignore) > 0 {
		result.Inventory.Ignore = override.Inventory.Ignore
	}
	if override.Inventory.Watch != nil {
		result.Inventory.Watch = override.Inventory.Watch
	}
	if override.Inventory.DebounceMs != 0 {
		result.Inventory.DebounceMs = override.Inventory.DebounceMs
	}
	if len(override.Inventory.AppFilter) > 0 {
		result.Inventory.AppFilter = override.Inventory.AppFilter
	}

	if override.Loader.BindBatchSize != 0 {
		result.Loader.BindBatchSize = override.Loader.BindBatchSize
	}
	if override.Loader.IdleRecheck != "" {
		result.Loader.IdleRecheck = override.Loader.IdleRecheck
	}
	if override.Loader.StrictConsistency {
		result.Loader.StrictConsistency = true
	}

	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.ConfigWatch != nil {
		result.Daemon.ConfigWatch = override.Daemon.ConfigWatch
	}
	if override.Daemon.ConfigDebounceMs != 0 {
		result.Daemon.ConfigDebounceMs = override.Daemon.ConfigDebounceMs
	}

	// Defaults replace as a whole; merging favorites by index would be surprising.
	if len(override.Defaults) > 0 {
		result.Defaults = override.Defaults
	}

	if len(override.Extensions) > 0 {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			merged[k] = v
		}
		for k, v := range override.Extensions {
			merged[k] = v
		}
		result.Extensions = merged
	}

	return &result
}
