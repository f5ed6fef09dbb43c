package models

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	// ActionMain marks the primary entry point of an application.
	ActionMain = "main"

	// BrowserDescriptor is stored for browser shortcuts, which carry no launch target.
	BrowserDescriptor = "*BROWSER*"

	targetScheme = "launch"
)

// LaunchTarget describes what an item launches.
// Descriptor form: launch:<action>?component=<pkg/class>&category=<c>&data=<d>
type LaunchTarget struct {
	Action     string        `json:"action"`
	Component  *ComponentKey `json:"component,omitempty"`
	Data       string        `json:"data,omitempty"`
	Categories []string      `json:"categories,omitempty"`
}

// MainTarget returns the MAIN launch target of a component.
func MainTarget(c ComponentKey) *LaunchTarget {
	return &LaunchTarget{Action: ActionMain, Component: &c, Categories: []string{"launcher"}}
}

// ParseLaunchTarget parses a descriptor. The browser descriptor (any case)
// returns a nil target and no error.
func ParseLaunchTarget(descriptor string) (*LaunchTarget, error) {
	descriptor = strings.TrimSpace(descriptor)
	if strings.EqualFold(descriptor, BrowserDescriptor) {
		return nil, nil
	}

	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", descriptor, err)
	}
	if u.Scheme != targetScheme {
		return nil, fmt.Errorf("parse %q: scheme must be %q", descriptor, targetScheme)
	}
	if u.Opaque == "" {
		return nil, fmt.Errorf("parse %q: missing action", descriptor)
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", descriptor, err)
	}

	t := &LaunchTarget{
		Action:     u.Opaque,
		Data:       q.Get("data"),
		Categories: q["category"],
	}
	if c := q.Get("component"); c != "" {
		key, err := ParseComponentKey(c)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", descriptor, err)
		}
		t.Component = &key
	}
	return t, nil
}

// String renders the descriptor; a nil target renders the browser descriptor.
func (t *LaunchTarget) String() string {
	if t == nil {
		return BrowserDescriptor
	}
	q := url.Values{}
	if t.Component != nil {
		q.Set("component", t.Component.String())
	}
	if t.Data != "" {
		q.Set("data", t.Data)
	}
	for _, c := range t.Categories {
		q.Add("category", c)
	}
	u := url.URL{Scheme: targetScheme, Opaque: t.Action, RawQuery: q.Encode()}
	return u.String()
}

// MarshalText lets targets travel as descriptors in JSON.
func (t *LaunchTarget) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a descriptor. The browser descriptor leaves the target zero-valued.
func (t *LaunchTarget) UnmarshalText(text []byte) error {
	parsed, err := ParseLaunchTarget(string(text))
	if err != nil {
		return err
	}
	if parsed == nil {
		*t = LaunchTarget{}
		return nil
	}
	*t = *parsed
	return nil
}

// Clone returns a deep copy.
func (t *LaunchTarget) Clone() *LaunchTarget {
	if t == nil {
		return nil
	}
	c := *t
	if t.Component != nil {
		key := *t.Component
		c.Component = &key
	}
	if t.Categories != nil {
		c.Categories = append([]string(nil), t.Categories...)
	}
	return &c
}

// FilterEquals compares action, component, data and the category set.
// Two nil targets are equal.
func (t *LaunchTarget) FilterEquals(o *LaunchTarget) bool {
	if t == nil || o == nil {
		return t == nil && o == nil
	}
	if t.Action != o.Action || t.Data != o.Data {
		return false
	}
	if (t.Component == nil) != (o.Component == nil) {
		return false
	}
	if t.Component != nil && *t.Component != *o.Component {
		return false
	}
	return sameSet(t.Categories, o.Categories)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
