package models

import "time"

// AppEntry is one row of the all-apps list.
type AppEntry struct {
	Component        ComponentKey `json:"component"`
	Title            string       `json:"title"`
	Icon             []byte       `json:"-"`
	IconPath         string       `json:"icon_path,omitempty"`
	FirstInstallTime time.Time    `json:"first_install_time"`
}

// NewAppEntry builds an entry from an inventory row. A blank label falls back to the package name.
func NewAppEntry(e InventoryEntry) *AppEntry {
	title := e.Label
	if title == "" {
		title = e.Component.Package
	}
	return &AppEntry{
		Component:        e.Component,
		Title:            title,
		IconPath:         e.IconPath,
		FirstInstallTime: e.FirstInstallTime,
	}
}

// Target returns the MAIN launch target of the entry's component.
func (a *AppEntry) Target() *LaunchTarget {
	return MainTarget(a.Component)
}

// Clone returns a copy that shares nothing mutable with the receiver.
func (a *AppEntry) Clone() *AppEntry {
	if a == nil {
		return nil
	}
	c := *a
	if a.Icon != nil {
		c.Icon = append([]byte(nil), a.Icon...)
	}
	return &c
}

// InventoryEntry is what the app inventory reports for one launchable component.
type InventoryEntry struct {
	Component        ComponentKey `json:"component"`
	Label            string       `json:"label"`
	IconPath         string       `json:"icon_path,omitempty"`
	FirstInstallTime time.Time    `json:"first_install_time"`
}
