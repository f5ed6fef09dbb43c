package models

import "fmt"

// EventType names an inbound system notification.
type EventType string

const (
	EventPackageAdded            EventType = "package_added"
	EventPackageChanged          EventType = "package_changed"
	EventPackageRemoved          EventType = "package_removed"
	EventExternalAppsAvailable   EventType = "external_apps_available"
	EventExternalAppsUnavailable EventType = "external_apps_unavailable"
	EventLocaleChanged           EventType = "locale_changed"
	EventConfigurationChanged    EventType = "configuration_changed"
	EventSearchablesChanged      EventType = "searchables_changed"
)

// Event is an inbound notification about installs, removals or environment changes.
type Event struct {
	Type EventType `json:"type"`
	// Package is set for the single-package events.
	Package string `json:"package,omitempty"`
	// Packages is set for the external-apps events.
	Packages []string `json:"packages,omitempty"`
	// Replacing marks an add or remove that is half of an in-place upgrade.
	Replacing bool   `json:"replacing,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Region    string `json:"region,omitempty"`
}

// Validate checks that the fields the event type needs are present.
func (e Event) Validate() error {
	switch e.Type {
	case EventPackageAdded, EventPackageChanged, EventPackageRemoved:
		if e.Package == "" {
			return fmt.Errorf("%s event requires a package name", e.Type)
		}
	case EventExternalAppsAvailable, EventExternalAppsUnavailable:
		if len(e.Packages) == 0 {
			return fmt.Errorf("%s event requires at least one package", e.Type)
		}
	case EventLocaleChanged:
		if e.Locale == "" {
			return fmt.Errorf("%s event requires a locale", e.Type)
		}
	case EventConfigurationChanged, EventSearchablesChanged:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}
