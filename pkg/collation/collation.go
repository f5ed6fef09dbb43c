// Package collation orders apps and items the way a user of a given locale expects.
package collation

import (
	"sort"
	"strings"
	"sync"

	"github.com/grovetools/launcher/pkg/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator is a locale-aware string comparator safe for concurrent use.
type Collator struct {
	mu  sync.Mutex
	tag language.Tag
	c   *collate.Collator
}

// New builds a collator for a BCP 47 locale. Unknown locales fall back to the root order.
func New(locale string) *Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &Collator{tag: tag, c: collate.New(tag)}
}

// Locale returns the tag the collator orders for.
func (c *Collator) Locale() language.Tag {
	return c.tag
}

// Compare returns -1, 0 or +1.
func (c *Collator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.CompareString(a, b)
}

// CompareAppNames orders by trimmed title, breaking ties on the component.
func (c *Collator) CompareAppNames(a, b *models.AppEntry) int {
	if r := c.Compare(strings.TrimSpace(a.Title), strings.TrimSpace(b.Title)); r != 0 {
		return r
	}
	return strings.Compare(a.Component.String(), b.Component.String())
}

// SortApps sorts entries in place by CompareAppNames.
func (c *Collator) SortApps(apps []*models.AppEntry) {
	sort.SliceStable(apps, func(i, j int) bool {
		return c.CompareAppNames(apps[i], apps[j]) < 0
	})
}

// SortByInstallTime sorts entries newest first.
func SortByInstallTime(apps []*models.AppEntry) {
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].FirstInstallTime.After(apps[j].FirstInstallTime)
	})
}

// LabelCache memoizes resolved labels per component for the duration of one sort.
type LabelCache struct {
	labels map[models.ComponentKey]string
	load   func(models.InventoryEntry) string
}

// NewLabelCache returns a cache that resolves misses with load. A nil load uses
// the entry's label, falling back to the package name.
func NewLabelCache(load func(models.InventoryEntry) string) *LabelCache {
	if load == nil {
		load = func(e models.InventoryEntry) string {
			if e.Label != "" {
				return e.Label
			}
			return e.Component.Package
		}
	}
	return &LabelCache{labels: make(map[models.ComponentKey]string), load: load}
}

// Label returns the cached label for the entry.
func (l *LabelCache) Label(e models.InventoryEntry) string {
	if label, ok := l.labels[e.Component]; ok {
		return label
	}
	label := l.load(e)
	l.labels[e.Component] = label
	return label
}

// SortInventory sorts inventory rows by collated label using the cache.
func (c *Collator) SortInventory(entries []models.InventoryEntry, labels *LabelCache) {
	if labels == nil {
		labels = NewLabelCache(nil)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if r := c.Compare(labels.Label(entries[i]), labels.Label(entries[j])); r != 0 {
			return r < 0
		}
		return entries[i].Component.String() < entries[j].Component.String()
	})
}
