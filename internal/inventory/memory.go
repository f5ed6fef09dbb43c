package inventory

import (
	"context"
	"sync"

	"github.com/grovetools/launcher/pkg/models"
)

// Memory is a programmable inventory.
type Memory struct {
	mu       sync.Mutex
	packages map[string][]models.InventoryEntry
	disabled map[string]bool
	queries  int

	// Err, when set, is returned by every query.
	Err error
}

func NewMemory() *Memory {
	return &Memory{
		packages: make(map[string][]models.InventoryEntry),
		disabled: make(map[string]bool),
	}
}

// Install replaces the components of the entries' packages.
func (m *Memory) Install(entries ...models.InventoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := map[string]bool{}
	for _, e := range entries {
		pkg := e.Component.Package
		if !fresh[pkg] {
			m.packages[pkg] = nil
			fresh[pkg] = true
		}
		m.packages[pkg] = append(m.packages[pkg], e)
	}
}

// Uninstall removes every component of pkg.
func (m *Memory) Uninstall(pkg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.packages, pkg)
	delete(m.disabled, pkg)
}

// SetEnabled toggles visibility of pkg without removing it.
func (m *Memory) SetEnabled(pkg string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[pkg] = !enabled
}

// Queries counts QueryLaunchable calls.
func (m *Memory) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func (m *Memory) QueryLaunchable(ctx context.Context) ([]models.InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.InventoryEntry
	for pkg, entries := range m.packages {
		if !m.disabled[pkg] {
			out = append(out, entries...)
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *Memory) QueryPackage(ctx context.Context, pkg string) ([]models.InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.disabled[pkg] {
		return nil, nil
	}
	out := append([]models.InventoryEntry(nil), m.packages[pkg]...)
	sortEntries(out)
	return out, nil
}

func (m *Memory) Resolve(ctx context.Context, component models.ComponentKey) (models.InventoryEntry, bool, error) {
	entries, err := m.QueryPackage(ctx, component.Package)
	if err != nil {
		return models.InventoryEntry{}, false, err
	}
	for _, e := range entries {
		if e.Component == component {
			return e, true, nil
		}
	}
	return models.InventoryEntry{}, false, nil
}

func (m *Memory) IsPackageEnabled(ctx context.Context, pkg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.packages[pkg]
	return ok && !m.disabled[pkg], nil
}
