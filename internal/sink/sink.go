// Package sink holds the UI consumer that receives model deliveries.
package sink

import (
	"sync"

	"github.com/grovetools/launcher/pkg/models"
)

// Callbacks is the surface the UI layer implements. Every method is invoked
// on the UI context.
type Callbacks interface {
	// SetLoadOnResume returns true when the consumer will reload on its own
	// next resume, in which case a background-triggered load is skipped.
	SetLoadOnResume() bool
	StartBinding()
	// BindItems delivers items[start:end] of the position-sorted workspace.
	BindItems(items []*models.Item, start, end int, forceAnimate bool)
	FinishBindingItems()
	BindAllApplications(apps []*models.AppEntry)
	BindAppsAdded(apps []*models.AppEntry)
	BindAppsUpdated(apps []*models.AppEntry)
	// BindComponentsRemoved reports removals. When matchPackageOnly is set
	// every item of the listed packages is gone; otherwise only the listed apps.
	BindComponentsRemoved(packages []string, apps []*models.AppEntry, matchPackageOnly bool)
	BindSearchablesChanged()
}

// Consumer is the callbacks reference captured at the start of a unit of
// work, stamped with the slot generation it came from.
type Consumer struct {
	Callbacks  Callbacks
	Generation uint64
}

// Attached reports whether the capture found a consumer.
func (c Consumer) Attached() bool {
	return c.Callbacks != nil
}

// Slot is the single replaceable consumer reference. Every Set or Clear
// bumps the generation, invalidating earlier captures.
type Slot struct {
	mu  sync.Mutex
	cb  Callbacks
	gen uint64
}

// Set installs a consumer and returns its capture.
func (s *Slot) Set(cb Callbacks) Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cb = cb
	return Consumer{Callbacks: cb, Generation: s.gen}
}

// Clear detaches the consumer.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cb = nil
}

// Current captures the present consumer.
func (s *Slot) Current() Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Consumer{Callbacks: s.cb, Generation: s.gen}
}

// Resolve returns the callbacks only if c is still the installed consumer.
func (s *Slot) Resolve(c Consumer) (Callbacks, bool) {
	if c.Callbacks == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != c.Generation || s.cb == nil {
		return nil, false
	}
	return s.cb, true
}

// Nop implements Callbacks with no-ops; embed it to implement a subset.
type Nop struct{}

func (Nop) SetLoadOnResume() bool { return false }
func (Nop) StartBinding() {}
func (Nop) BindItems([]*models.Item, int, int, bool) {}
func (Nop) FinishBindingItems() {}
func (Nop) BindAllApplications([]*models.AppEntry) {}
func (Nop) BindAppsAdded([]*models.AppEntry) {}
func (Nop) BindAppsUpdated([]*models.AppEntry) {}
func (Nop) BindComponentsRemoved([]string, []*models.AppEntry, bool) {}
func (Nop) BindSearchablesChanged() {}
