package testutil

import (
	"fmt"
	"sync"

	"github.com/grovetools/launcher/pkg/models"
)

// Call is one recorded consumer callback.
type Call struct {
	Method string
	// Items, Start and End are set for BindItems.
	Items []*models.Item
	Start int
	End   int
	// Apps is set for the app-list callbacks.
	Apps     []*models.AppEntry
	Packages []string
	// Permanent mirrors matchPackageOnly of BindComponentsRemoved.
	Permanent bool
}

// RecordingCallbacks records every callback in order.
type RecordingCallbacks struct {
	mu    sync.Mutex
	calls []Call

	// LoadOnResume is returned from SetLoadOnResume.
	LoadOnResume bool
}

func (r *RecordingCallbacks) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a copy of everything recorded so far.
func (r *RecordingCallbacks) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded method names in order.
func (r *RecordingCallbacks) Methods() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Of returns the recorded calls of one method.
func (r *RecordingCallbacks) Of(method string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets every recorded call.
func (r *RecordingCallbacks) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// BoundItems flattens every BindItems batch in delivery order.
func (r *RecordingCallbacks) BoundItems() []*models.Item {
	var out []*models.Item
	for _, c := range r.Of("BindItems") {
		out = append(out, c.Items[c.Start:c.End]...)
	}
	return out
}

func (r *RecordingCallbacks) SetLoadOnResume() bool {
	r.record(Call{Method: "SetLoadOnResume"})
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LoadOnResume
}

func (r *RecordingCallbacks) StartBinding() {
	r.record(Call{Method: "StartBinding"})
}

func (r *RecordingCallbacks) BindItems(items []*models.Item, start, end int, forceAnimate bool) {
	if start < 0 || end > len(items) || start > end {
		panic(fmt.Sprintf("BindItems range [%d,%d) outside %d items", start, end, len(items)))
	}
	r.record(Call{Method: "BindItems", Items: items, Start: start, End: end})
}

func (r *RecordingCallbacks) FinishBindingItems() {
	r.record(Call{Method: "FinishBindingItems"})
}

func (r *RecordingCallbacks) BindAllApplications(apps []*models.AppEntry) {
	r.record(Call{Method: "BindAllApplications", Apps: apps})
}

func (r *RecordingCallbacks) BindAppsAdded(apps []*models.AppEntry) {
	r.record(Call{Method: "BindAppsAdded", Apps: apps})
}

func (r *RecordingCallbacks) BindAppsUpdated(apps []*models.AppEntry) {
	r.record(Call{Method: "BindAppsUpdated", Apps: apps})
}

func (r *RecordingCallbacks) BindComponentsRemoved(packages []string, apps []*models.AppEntry, matchPackageOnly bool) {
	r.record(Call{Method: "BindComponentsRemoved", Packages: packages, Apps: apps, Permanent: matchPackageOnly})
}

func (r *RecordingCallbacks) BindSearchablesChanged() {
	r.record(Call{Method: "BindSearchablesChanged"})
}
