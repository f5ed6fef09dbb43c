package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLaunchTarget(t *testing.T) {
	target, err := ParseLaunchTarget("launch:main?component=com.cam/.Main&category=launcher")
	require.NoError(t, err)
	require.NotNil(t, target.Component)
	assert.Equal(t, "main", target.Action)
	assert.Equal(t, ComponentKey{Package: "com.cam", Class: "com.cam.Main"}, *target.Component)
	assert.Equal(t, []string{"launcher"}, target.Categories)

	reparsed, err := ParseLaunchTarget(target.String())
	require.NoError(t, err)
	assert.True(t, target.FilterEquals(reparsed))
}

func TestParseLaunchTargetBrowser(t *testing.T) {
	for _, d := range []string{"*BROWSER*", "*browser*", " *BROWSER* "} {
		target, err := ParseLaunchTarget(d)
		assert.NoError(t, err, d)
		assert.Nil(t, target, d)
	}
	var nilTarget *LaunchTarget
	assert.Equal(t, BrowserDescriptor, nilTarget.String())
}

func TestParseLaunchTargetErrors(t *testing.T) {
	for _, d := range []string{"", "not a target", "http://example.com", "launch:?component=a/b", "launch:main?component=nopackage"} {
		_, err := ParseLaunchTarget(d)
		assert.Error(t, err, d)
	}
}

func TestFilterEquals(t *testing.T) {
	a := &LaunchTarget{Action: ActionMain, Component: &ComponentKey{"p", "p.A"}, Categories: []string{"x", "y"}}
	b := &LaunchTarget{Action: ActionMain, Component: &ComponentKey{"p", "p.A"}, Categories: []string{"y", "x"}}
	assert.True(t, a.FilterEquals(b))

	b.Data = "content://1"
	assert.False(t, a.FilterEquals(b))

	var n *LaunchTarget
	assert.True(t, n.FilterEquals(nil))
	assert.False(t, n.FilterEquals(a))
	assert.False(t, a.FilterEquals(&LaunchTarget{Action: ActionMain, Categories: []string{"x", "y"}}))
}

func TestItemMatches(t *testing.T) {
	a := &Item{ID: 5, Title: "Camera", Position: 2, Target: MainTarget(ComponentKey{"com.cam", "com.cam.Main"})}
	b := a.Clone()
	assert.True(t, a.Matches(b))

	b.Icon = []byte{1, 2, 3}
	assert.True(t, a.Matches(b), "icon is volatile and never compared")

	b.Title = "Camera2"
	assert.False(t, a.Matches(b))
}

func TestRecordRoundTrip(t *testing.T) {
	item := &Item{
		ID:           42,
		ItemType:     ItemTypeApplication,
		Position:     3,
		Title:        "Phone",
		IconResource: "res://phone",
		Target:       MainTarget(ComponentKey{"com.phone", "com.phone.Dialer"}),
		Container:    -100,
	}

	back, err := item.ToRecord().ToItem()
	require.NoError(t, err)
	assert.True(t, item.Matches(back))
	assert.Equal(t, item.IconResource, back.IconResource)
	assert.Equal(t, item.Container, back.Container)

	browser := &Item{ID: 7, ItemType: ItemTypeOther, Title: "Web"}
	rec := browser.ToRecord()
	assert.Equal(t, BrowserDescriptor, rec.Intent)
	back, err = rec.ToItem()
	require.NoError(t, err)
	assert.Nil(t, back.Target)
}

func TestRecordWithBadIntent(t *testing.T) {
	_, err := PersistedItemRecord{ID: 1, Intent: "garbage"}.ToItem()
	assert.Error(t, err)
}

func TestIsUpdateable(t *testing.T) {
	item := &Item{ItemType: ItemTypeApplication, Target: MainTarget(ComponentKey{"p", "p.A"})}
	assert.True(t, item.IsUpdateable())

	item.Target.Action = "view"
	assert.False(t, item.IsUpdateable())

	assert.False(t, (&Item{ItemType: ItemTypeOther, Target: MainTarget(ComponentKey{"p", "p.A"})}).IsUpdateable())
	assert.False(t, (&Item{ItemType: ItemTypeApplication}).IsUpdateable())
}

func TestItemJSONCarriesDescriptor(t *testing.T) {
	item := &Item{ID: 1, Title: "Cam", Target: MainTarget(ComponentKey{"com.cam", "com.cam.Main"}), Icon: []byte{9}}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target":"launch:main?`)
	assert.NotContains(t, string(data), "icon\":")

	var back Item
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, item.Matches(&back))
}

func TestNewAppEntryLabelFallback(t *testing.T) {
	now := time.Now()
	entry := NewAppEntry(InventoryEntry{Component: ComponentKey{"com.x", "com.x.Main"}, FirstInstallTime: now})
	assert.Equal(t, "com.x", entry.Title)
	assert.Equal(t, now, entry.FirstInstallTime)
	assert.True(t, entry.Target().FilterEquals(MainTarget(entry.Component)))
}

func TestEventValidate(t *testing.T) {
	assert.NoError(t, Event{Type: EventPackageAdded, Package: "p"}.Validate())
	assert.Error(t, Event{Type: EventPackageAdded}.Validate())
	assert.Error(t, Event{Type: EventExternalAppsAvailable}.Validate())
	assert.NoError(t, Event{Type: EventConfigurationChanged}.Validate())
	assert.Error(t, Event{Type: "bogus"}.Validate())
}
