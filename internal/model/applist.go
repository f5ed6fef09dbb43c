package model

import (
	"sync"

	"github.com/grovetools/launcher/pkg/models"
)

// Delta is the set of changes accumulated since the last drain.
type Delta struct {
	Added    []*models.AppEntry
	Modified []*models.AppEntry
	Removed  []*models.AppEntry
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// AppList is the all-apps list plus the added/modified/removed sets that
// the reconciler drains after each operation.
type AppList struct {
	mu       sync.Mutex
	data     []*models.AppEntry
	added    []*models.AppEntry
	modified []*models.AppEntry
	removed  []*models.AppEntry
	exclude  map[string]bool
}

// NewAppList creates an empty list. Packages in exclude never enter it.
func NewAppList(exclude ...string) *AppList {
	l := &AppList{exclude: make(map[string]bool, len(exclude))}
	for _, pkg := range exclude {
		l.exclude[pkg] = true
	}
	return l
}

// Add appends an entry unless its component is already present or filtered.
func (l *AppList) Add(entry *models.AppEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addLocked(entry)
}

func (l *AppList) addLocked(entry *models.AppEntry) bool {
	if l.exclude[entry.Component.Package] || l.indexLocked(entry.Component) >= 0 {
		return false
	}
	l.data = append(l.data, entry)
	l.added = append(l.added, entry)
	return true
}

// Clear drops the list and every pending delta.
func (l *AppList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = nil
	l.added = nil
	l.modified = nil
	l.removed = nil
}

// AddPackage adds the package's launchable components. A component that is
// already listed is refreshed in place and reported as modified, so a
// repeated add leaves the list as the latest inventory describes it.
func (l *AppList) AddPackage(entries []models.InventoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		entry := models.NewAppEntry(e)
		if idx := l.indexLocked(entry.Component); idx >= 0 {
			l.refreshLocked(idx, entry)
			continue
		}
		l.addLocked(entry)
	}
}

// UpdatePackage reconciles pkg with its current launchable components:
// vanished components are removed, known ones refreshed, new ones added.
// No components at all removes the package.
func (l *AppList) UpdatePackage(pkg string, entries []models.InventoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(entries) == 0 {
		l.removePackageLocked(pkg)
		return
	}

	current := make(map[models.ComponentKey]bool, len(entries))
	for _, e := range entries {
		current[e.Component] = true
	}
	kept := l.data[:0]
	for _, entry := range l.data {
		if entry.Component.Package == pkg && !current[entry.Component] {
			l.removed = append(l.removed, entry)
			continue
		}
		kept = append(kept, entry)
	}
	l.data = kept

	for _, e := range entries {
		entry := models.NewAppEntry(e)
		if idx := l.indexLocked(entry.Component); idx >= 0 {
			l.refreshLocked(idx, entry)
			continue
		}
		l.addLocked(entry)
	}
}

// RemovePackage drops every component of pkg.
func (l *AppList) RemovePackage(pkg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removePackageLocked(pkg)
}

func (l *AppList) removePackageLocked(pkg string) {
	kept := l.data[:0]
	for _, entry := range l.data {
		if entry.Component.Package == pkg {
			l.removed = append(l.removed, entry)
			continue
		}
		kept = append(kept, entry)
	}
	l.data = kept
}

// refreshLocked replaces the listed entry with fresh inventory data and
// marks it modified. The listed pointer is kept so earlier deltas stay valid.
func (l *AppList) refreshLocked(idx int, fresh *models.AppEntry) {
	existing := l.data[idx]
	existing.Title = fresh.Title
	existing.IconPath = fresh.IconPath
	existing.Icon = nil
	if !fresh.FirstInstallTime.IsZero() {
		existing.FirstInstallTime = fresh.FirstInstallTime
	}
	l.modified = append(l.modified, existing)
}

func (l *AppList) indexLocked(c models.ComponentKey) int {
	for i, entry := range l.data {
		if entry.Component == c {
			return i
		}
	}
	return -1
}

// Drain atomically returns copies of all three deltas and resets them.
func (l *AppList) Drain() Delta {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := Delta{
		Added:    cloneApps(l.added),
		Modified: cloneApps(l.modified),
		Removed:  cloneApps(l.removed),
	}
	l.added, l.modified, l.removed = nil, nil, nil
	return d
}

// DrainAdded returns and resets only the added delta.
func (l *AppList) DrainAdded() []*models.AppEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := cloneApps(l.added)
	l.added = nil
	return added
}

// Data returns a copy of the list.
func (l *AppList) Data() []*models.AppEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneApps(l.data)
}

// Len returns the number of listed apps.
func (l *AppList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// Contains reports whether the component is listed.
func (l *AppList) Contains(c models.ComponentKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexLocked(c) >= 0
}

func cloneApps(in []*models.AppEntry) []*models.AppEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]*models.AppEntry, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
