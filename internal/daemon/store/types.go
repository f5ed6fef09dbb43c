// Package store holds the daemon's bound view: what the launcher model has
// delivered to its consumer, kept in memory with pub/sub for clients.
package store

import (
	"time"

	"github.com/grovetools/launcher/pkg/models"
)

// State is the bound view served to clients.
type State struct {
	Items             []*models.Item     `json:"items"`
	Apps              []*models.AppEntry `json:"apps"`
	Binding           bool               `json:"binding"`
	LastBindCompleted time.Time          `json:"last_bind_completed,omitempty"`
	SearchablesEpoch  int                `json:"searchables_epoch"`
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateInitial           UpdateType = "initial"
	UpdateBindStarted       UpdateType = "bind_started"
	UpdateItemsBound        UpdateType = "items_bound"
	UpdateBindFinished      UpdateType = "bind_finished"
	UpdateAppsBound         UpdateType = "apps_bound"
	UpdateAppsAdded         UpdateType = "apps_added"
	UpdateAppsUpdated       UpdateType = "apps_updated"
	UpdateComponentsRemoved UpdateType = "components_removed"
	UpdateSearchables       UpdateType = "searchables_changed"
	UpdateEvent             UpdateType = "event"
	UpdateConfigReload      UpdateType = "config_reload"
)

// Update represents a change to the bound view.
type Update struct {
	Type UpdateType `json:"update_type"`
	// Source names who produced the update: "model", "inventory", "config" or "client".
	Source string `json:"source,omitempty"`
	// Count is the number of items or apps the update carries.
	Count   int         `json:"count,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}
