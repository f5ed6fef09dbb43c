package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/models"
)

// Dir is an inventory backed by a directory with one manifest per package.
// Every query rereads the directory.
type Dir struct {
	root    string
	matcher *patternmatcher.PatternMatcher
	logger  *logrus.Entry
}

// NewDir creates an inventory over root. Manifests whose path relative to
// root matches one of the ignore patterns are skipped.
func NewDir(root string, ignore []string) (*Dir, error) {
	var pm *patternmatcher.PatternMatcher
	if len(ignore) > 0 {
		var err error
		pm, err = patternmatcher.New(ignore)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid inventory ignore pattern")
		}
	}
	return &Dir{
		root:    root,
		matcher: pm,
		logger:  logging.NewLogger("inventory"),
	}, nil
}

// Root returns the manifest directory.
func (d *Dir) Root() string {
	return d.root
}

// Ignored reports whether the manifest at path is excluded by the ignore patterns.
func (d *Dir) Ignored(path string) bool {
	if d.matcher == nil {
		return false
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	ok, err := d.matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
	if err != nil {
		d.logger.WithError(err).Warnf("Ignore pattern check failed for %s", rel)
		return false
	}
	return ok
}

// Manifests parses every manifest in the directory, keyed by file path.
// Unreadable or invalid manifests are logged and skipped.
func (d *Dir) Manifests(ctx context.Context) (map[string]*Manifest, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Manifest{}, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInventoryRead, "read inventory directory").WithDetail("dir", d.root)
	}

	out := make(map[string]*Manifest, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.root, entry.Name())
		if d.Ignored(path) {
			continue
		}
		m, err := ReadManifest(path)
		if err != nil {
			d.logger.WithError(err).Warnf("Skipping manifest %s", entry.Name())
			continue
		}
		out[path] = m
	}
	return out, nil
}

func (d *Dir) QueryLaunchable(ctx context.Context) ([]models.InventoryEntry, error) {
	manifests, err := d.Manifests(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.InventoryEntry
	for _, m := range manifests {
		if m.IsEnabled() {
			out = append(out, m.Entries(d.root)...)
		}
	}
	sortEntries(out)
	return out, nil
}

func (d *Dir) QueryPackage(ctx context.Context, pkg string) ([]models.InventoryEntry, error) {
	m, err := d.findPackage(ctx, pkg)
	if err != nil || m == nil || !m.IsEnabled() {
		return nil, err
	}
	out := m.Entries(d.root)
	sortEntries(out)
	return out, nil
}

func (d *Dir) Resolve(ctx context.Context, component models.ComponentKey) (models.InventoryEntry, bool, error) {
	entries, err := d.QueryPackage(ctx, component.Package)
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

func (d *Dir) IsPackageEnabled(ctx context.Context, pkg string) (bool, error) {
	m, err := d.findPackage(ctx, pkg)
	if err != nil || m == nil {
		return false, err
	}
	return m.IsEnabled(), nil
}

// findPackage returns the manifest declaring pkg. When several files declare
// the same package the lexically last file wins.
func (d *Dir) findPackage(ctx context.Context, pkg string) (*Manifest, error) {
	manifests, err := d.Manifests(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(manifests))
	for p := range manifests {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var found *Manifest
	for _, p := range paths {
		if manifests[p].Package == pkg {
			found = manifests[p]
		}
	}
	return found, nil
}

func sortEntries(entries []models.InventoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Component, entries[j].Component
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		return a.Class < b.Class
	})
}
