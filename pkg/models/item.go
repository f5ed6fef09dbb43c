// Package models defines the data shared by the loader, the reconciler,
// the adapters and the daemon API.
package models

import (
	"fmt"
	"strings"
)

// ItemType distinguishes application shortcuts from every other placed item.
type ItemType int

const (
	ItemTypeApplication ItemType = 0
	ItemTypeOther       ItemType = 1
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeApplication:
		return "application"
	case ItemTypeOther:
		return "other"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ComponentKey identifies one launchable activity of a package.
type ComponentKey struct {
	Package string `json:"package"`
	Class   string `json:"class"`
}

// ParseComponentKey accepts "pkg/class" and the relative "pkg/.Class" form.
func ParseComponentKey(s string) (ComponentKey, error) {
	pkg, class, ok := strings.Cut(s, "/")
	if !ok || pkg == "" || class == "" {
		return ComponentKey{}, fmt.Errorf("component %q must have the form package/class", s)
	}
	if strings.HasPrefix(class, ".") {
		class = pkg + class
	}
	return ComponentKey{Package: pkg, Class: class}, nil
}

func (c ComponentKey) String() string {
	return c.Package + "/" + c.Class
}

// IsZero reports whether neither part is set.
func (c ComponentKey) IsZero() bool {
	return c.Package == "" && c.Class == ""
}

// Item is a placed home-screen entry. ID never changes after creation;
// Icon is volatile and never part of equality.
type Item struct {
	ID                int64         `json:"id"`
	ItemType          ItemType      `json:"item_type"`
	Position          int           `json:"position"`
	Title             string        `json:"title"`
	Icon              []byte        `json:"-"`
	IconResource      string        `json:"icon_resource,omitempty"`
	Target            *LaunchTarget `json:"target,omitempty"`
	Container         int64         `json:"container"`
	UsingFallbackIcon bool          `json:"using_fallback_icon,omitempty"`
}

// Clone returns a copy that shares nothing mutable with the receiver.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	if i.Icon != nil {
		c.Icon = append([]byte(nil), i.Icon...)
	}
	c.Target = i.Target.Clone()
	return &c
}

// Component returns the component the item launches, if any.
func (i *Item) Component() (ComponentKey, bool) {
	if i.Target == nil || i.Target.Component == nil {
		return ComponentKey{}, false
	}
	return *i.Target.Component, true
}

// IsUpdateable reports whether a package update may rewrite the item's title:
// it must be an application shortcut with a MAIN target naming a component.
func (i *Item) IsUpdateable() bool {
	return i.ItemType == ItemTypeApplication &&
		i.Target != nil &&
		i.Target.Action == ActionMain &&
		i.Target.Component != nil
}

// Matches compares the fields that define an item's identity in the model:
// id, type, position, title and launch target.
func (i *Item) Matches(o *Item) bool {
	if i == o {
		return true
	}
	if i == nil || o == nil {
		return false
	}
	return i.ID == o.ID &&
		i.ItemType == o.ItemType &&
		i.Position == o.Position &&
		i.Title == o.Title &&
		i.Target.FilterEquals(o.Target)
}

// SameIdentity compares only the fields an update may not change: id, type
// and launch target.
func (i *Item) SameIdentity(o *Item) bool {
	if i == o {
		return true
	}
	if i == nil || o == nil {
		return false
	}
	return i.ID == o.ID &&
		i.ItemType == o.ItemType &&
		i.Target.FilterEquals(o.Target)
}

func (i *Item) String() string {
	if i == nil {
		return "Item(nil)"
	}
	return fmt.Sprintf("Item(id=%d type=%s pos=%d title=%q target=%s)",
		i.ID, i.ItemType, i.Position, i.Title, i.Target.String())
}

// ToRecord converts the item into the store's persisted form.
func (i *Item) ToRecord() PersistedItemRecord {
	rec := PersistedItemRecord{
		ID:           i.ID,
		ItemType:     i.ItemType,
		Position:     i.Position,
		Title:        i.Title,
		IconResource: i.IconResource,
		Icon:         i.Icon,
		Container:    i.Container,
	}
	if i.Target != nil {
		rec.Intent = i.Target.String()
	} else {
		rec.Intent = BrowserDescriptor
	}
	return rec
}

// PersistedItemRecord is a row of the item store.
type PersistedItemRecord struct {
	ID           int64    `json:"id"`
	ItemType     ItemType `json:"item_type"`
	Position     int      `json:"position"`
	Title        string   `json:"title"`
	Intent       string   `json:"intent"`
	IconResource string   `json:"icon_resource,omitempty"`
	Icon         []byte   `json:"-"`
	Container    int64    `json:"container"`
}

// ToItem rebuilds an in-memory item. The browser descriptor yields a nil target;
// an unparsable descriptor returns an error and no item.
func (r PersistedItemRecord) ToItem() (*Item, error) {
	target, err := ParseLaunchTarget(r.Intent)
	if err != nil {
		return nil, err
	}
	return &Item{
		ID:           r.ID,
		ItemType:     r.ItemType,
		Position:     r.Position,
		Title:        r.Title,
		Icon:         r.Icon,
		IconResource: r.IconResource,
		Target:       target,
		Container:    r.Container,
	}, nil
}
