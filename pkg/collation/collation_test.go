package collation

import (
	"testing"
	"time"

	"github.com/grovetools/launcher/pkg/models"
	"github.com/stretchr/testify/assert"
)

func app(pkg, title string) *models.AppEntry {
	return &models.AppEntry{Component: models.ComponentKey{Package: pkg, Class: pkg + ".Main"}, Title: title}
}

func titles(apps []*models.AppEntry) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.Title
	}
	return out
}

func TestSortAppsIsCaseAndAccentAware(t *testing.T) {
	c := New("en")
	apps := []*models.AppEntry{app("c", "zebra"), app("a", "Émail"), app("b", "apple"), app("d", "Banana")}
	c.SortApps(apps)
	assert.Equal(t, []string{"apple", "Banana", "Émail", "zebra"}, titles(apps))
}

func TestSortAppsTrimsAndBreaksTies(t *testing.T) {
	c := New("en")
	apps := []*models.AppEntry{app("com.b", " Notes"), app("com.a", "Notes ")}
	c.SortApps(apps)
	assert.Equal(t, "com.a", apps[0].Component.Package)
	assert.Equal(t, "com.b", apps[1].Component.Package)
}

func TestUnknownLocaleFallsBack(t *testing.T) {
	c := New("!!not-a-locale")
	assert.Equal(t, "und", c.Locale().String())
	assert.Equal(t, -1, c.Compare("a", "b"))
}

func TestSortByInstallTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, b, c := app("a", "A"), app("b", "B"), app("c", "C")
	a.FirstInstallTime = base
	b.FirstInstallTime = base.Add(2 * time.Hour)
	c.FirstInstallTime = base.Add(time.Hour)
	apps := []*models.AppEntry{a, b, c}
	SortByInstallTime(apps)
	assert.Equal(t, []string{"B", "C", "A"}, titles(apps))
}

func TestSortInventoryUsesLabelCache(t *testing.T) {
	calls := 0
	cache := NewLabelCache(func(e models.InventoryEntry) string {
		calls++
		return e.Label
	})
	entries := []models.InventoryEntry{
		{Component: models.ComponentKey{Package: "p3", Class: "p3.M"}, Label: "gamma"},
		{Component: models.ComponentKey{Package: "p1", Class: "p1.M"}, Label: "Alpha"},
		{Component: models.ComponentKey{Package: "p2", Class: "p2.M"}, Label: "beta"},
	}
	New("en").SortInventory(entries, cache)

	assert.Equal(t, "Alpha", entries[0].Label)
	assert.Equal(t, "beta", entries[1].Label)
	assert.Equal(t, "gamma", entries[2].Label)
	assert.Equal(t, 3, calls, "each component's label is loaded once")
}

func TestDefaultLabelFallsBackToPackage(t *testing.T) {
	cache := NewLabelCache(nil)
	assert.Equal(t, "com.pkg", cache.Label(models.InventoryEntry{Component: models.ComponentKey{Package: "com.pkg"}}))
}
