// Package inventory answers which launchable components are installed.
package inventory

import (
	"context"

	"github.com/grovetools/launcher/pkg/models"
)

// Adapter is the app inventory the loader and reconciler query.
// Disabled packages are invisible to every query.
type Adapter interface {
	// QueryLaunchable lists every launchable component of every enabled package.
	QueryLaunchable(ctx context.Context) ([]models.InventoryEntry, error)
	// QueryPackage lists the launchable components of one package.
	// An unknown or disabled package yields an empty list.
	QueryPackage(ctx context.Context, pkg string) ([]models.InventoryEntry, error)
	// Resolve reports whether component is installed and launchable.
	Resolve(ctx context.Context, component models.ComponentKey) (models.InventoryEntry, bool, error)
	IsPackageEnabled(ctx context.Context, pkg string) (bool, error)
}
