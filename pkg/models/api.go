package models

import "time"

// StateResponse is served by the daemon's /api/state endpoint.
type StateResponse struct {
	LoaderPhase       string    `json:"loader_phase"`
	WorkspaceLoaded   bool      `json:"workspace_loaded"`
	AllAppsLoaded     bool      `json:"all_apps_loaded"`
	LoadingWorkspace  bool      `json:"loading_workspace"`
	WorkspaceItems    int       `json:"workspace_items"`
	Apps              int       `json:"apps"`
	BoundItems        int       `json:"bound_items"`
	BoundApps         int       `json:"bound_apps"`
	Mismatches        int       `json:"mismatches"`
	ConsumerAttached  bool      `json:"consumer_attached"`
	ConsumerGen       uint64    `json:"consumer_generation"`
	Locale            string    `json:"locale"`
	Region            string    `json:"region"`
	StartedAt         time.Time `json:"started_at"`
	LastBindCompleted time.Time `json:"last_bind_completed,omitempty"`
}

// AddItemRequest asks the daemon to place a new item.
type AddItemRequest struct {
	Title    string   `json:"title"`
	Target   string   `json:"target"`
	Position int      `json:"position"`
	ItemType ItemType `json:"item_type"`
}

// MoveItemRequest asks the daemon to change an item's position.
type MoveItemRequest struct {
	Position int `json:"position"`
}
