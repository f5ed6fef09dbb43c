package store

import (
	"sync"
	"time"

	"github.com/grovetools/launcher/internal/sink"
	"github.com/grovetools/launcher/pkg/models"
)

// Store mirrors what the model has bound. It is the daemon's consumer: the
// model calls it on the UI dispatcher, clients read it from any goroutine.
type Store struct {
	mu          sync.RWMutex
	state       State
	pending     []*models.Item
	subscribers map[chan Update]struct{}

	loadOnResume bool
}

var _ sink.Callbacks = (*Store)(nil)

// New creates a new Store instance.
func New() *Store {
	return &Store{
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Items = cloneItems(s.state.Items)
	st.Apps = cloneApps(s.state.Apps)
	return st
}

// Items returns the bound workspace items in position order.
func (s *Store) Items() []*models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.state.Items)
}

// Apps returns the bound all-apps list.
func (s *Store) Apps() []*models.AppEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneApps(s.state.Apps)
}

// SetReloadOnResume controls the answer given to the model's SetLoadOnResume.
func (s *Store) SetReloadOnResume(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadOnResume = v
}

func (s *Store) SetLoadOnResume() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadOnResume
}

func (s *Store) StartBinding() {
	s.apply(Update{Type: UpdateBindStarted, Source: "model"}, func(st *State) {
		s.pending = nil
		st.Binding = true
	})
}

func (s *Store) BindItems(items []*models.Item, start, end int, forceAnimate bool) {
	batch := cloneItems(items[start:end])
	s.apply(Update{Type: UpdateItemsBound, Source: "model", Count: len(batch)}, func(*State) {
		s.pending = append(s.pending, batch...)
	})
}

func (s *Store) FinishBindingItems() {
	s.apply(Update{Type: UpdateBindFinished, Source: "model"}, func(st *State) {
		st.Items = s.pending
		s.pending = nil
		st.Binding = false
		st.LastBindCompleted = time.Now()
	})
}

func (s *Store) BindAllApplications(apps []*models.AppEntry) {
	bound := cloneApps(apps)
	s.apply(Update{Type: UpdateAppsBound, Source: "model", Count: len(bound)}, func(st *State) {
		st.Apps = bound
	})
}

func (s *Store) BindAppsAdded(apps []*models.AppEntry) {
	added := cloneApps(apps)
	s.apply(Update{Type: UpdateAppsAdded, Source: "model", Count: len(added), Payload: added}, func(st *State) {
		st.Apps = append(st.Apps, added...)
	})
}

func (s *Store) BindAppsUpdated(apps []*models.AppEntry) {
	updated := cloneApps(apps)
	s.apply(Update{Type: UpdateAppsUpdated, Source: "model", Count: len(updated), Payload: updated}, func(st *State) {
		byComponent := make(map[models.ComponentKey]*models.AppEntry, len(updated))
		for _, a := range updated {
			byComponent[a.Component] = a
		}
		for i, a := range st.Apps {
			if fresh, ok := byComponent[a.Component]; ok {
				st.Apps[i] = fresh
			}
		}
		for i, item := range st.Items {
			c, ok := item.Component()
			if fresh, found := byComponent[c]; ok && found && item.IsUpdateable() {
				retitled := item.Clone()
				retitled.Title = fresh.Title
				st.Items[i] = retitled
			}
		}
	})
}

func (s *Store) BindComponentsRemoved(packages []string, apps []*models.AppEntry, matchPackageOnly bool) {
	pkgs := make(map[string]bool, len(packages))
	for _, p := range packages {
		pkgs[p] = true
	}
	components := make(map[models.ComponentKey]bool, len(apps))
	for _, a := range apps {
		components[a.Component] = true
	}
	gone := func(c models.ComponentKey) bool {
		if matchPackageOnly {
			return pkgs[c.Package] || components[c]
		}
		return components[c]
	}

	u := Update{Type: UpdateComponentsRemoved, Source: "model", Count: len(apps), Payload: packages}
	s.apply(u, func(st *State) {
		keptApps := st.Apps[:0]
		for _, a := range st.Apps {
			if !gone(a.Component) {
				keptApps = append(keptApps, a)
			}
		}
		st.Apps = keptApps

		keptItems := st.Items[:0]
		for _, item := range st.Items {
			if c, ok := item.Component(); ok && gone(c) {
				continue
			}
			keptItems = append(keptItems, item)
		}
		st.Items = keptItems
	})
}

func (s *Store) BindSearchablesChanged() {
	s.apply(Update{Type: UpdateSearchables, Source: "model"}, func(st *State) {
		st.SearchablesEpoch++
	})
}

// apply mutates the state under the lock and broadcasts u.
func (s *Store) apply(u Update, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.broadcastLocked(u)
}

// Broadcast notifies subscribers of an update that does not change the bound view.
func (s *Store) Broadcast(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcastLocked(u)
}

// BroadcastConfigReload tells clients that a config file changed.
func (s *Store) BroadcastConfigReload(file string) {
	s.Broadcast(Update{Type: UpdateConfigReload, Source: "config", Payload: file})
}

func (s *Store) broadcastLocked(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Slow subscribers miss updates rather than stall the UI loop.
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// Subscribers returns the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func cloneItems(in []*models.Item) []*models.Item {
	out := make([]*models.Item, len(in))
	for i, item := range in {
		out[i] = item.Clone()
	}
	return out
}

func cloneApps(in []*models.AppEntry) []*models.AppEntry {
	out := make([]*models.AppEntry, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
