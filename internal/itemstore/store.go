// Package itemstore persists placed items. The loader reads it once per
// load; every other access is a single-item write or a batch update.
package itemstore

import (
	"context"
	"fmt"

	"github.com/grovetools/launcher/pkg/models"
)

// Column names a writable field of an item row.
type Column string

const (
	ColTitle        Column = "title"
	ColIntent       Column = "intent"
	ColItemType     Column = "item_type"
	ColPosition     Column = "position"
	ColIconResource Column = "icon_resource"
	ColIcon         Column = "icon"
	ColContainer    Column = "container"
)

var knownColumns = map[Column]bool{
	ColTitle:        true,
	ColIntent:       true,
	ColItemType:     true,
	ColPosition:     true,
	ColIconResource: true,
	ColIcon:         true,
	ColContainer:    true,
}

// Values is a partial row update.
type Values map[Column]interface{}

// Validate rejects unknown columns.
func (v Values) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("no columns to update")
	}
	for col := range v {
		if !knownColumns[col] {
			return fmt.Errorf("unknown column %q", col)
		}
	}
	return nil
}

// ItemValues returns every persisted column of item.
func ItemValues(item *models.Item) Values {
	rec := item.ToRecord()
	return Values{
		ColTitle:        rec.Title,
		ColIntent:       rec.Intent,
		ColItemType:     int(rec.ItemType),
		ColPosition:     rec.Position,
		ColIconResource: rec.IconResource,
		ColIcon:         rec.Icon,
		ColContainer:    rec.Container,
	}
}

// Change is one entry of a batch update.
type Change struct {
	ID     int64
	Values Values
}

// Store is the persistent item store.
type Store interface {
	// Query returns every item row ordered by id.
	Query(ctx context.Context) ([]models.PersistedItemRecord, error)
	// Insert writes a row. A zero ID is replaced by a freshly generated one.
	Insert(ctx context.Context, rec models.PersistedItemRecord) (int64, error)
	Update(ctx context.Context, id int64, values Values) error
	Delete(ctx context.Context, id int64) error
	// BatchUpdate applies every change or none.
	BatchUpdate(ctx context.Context, changes []Change) error
	// GenerateNewID returns the next id of the durable, monotonic counter.
	GenerateNewID(ctx context.Context) (int64, error)
	// UpdateMaxID raises the counter so it is at least id.
	UpdateMaxID(ctx context.Context, id int64) error
	// Exists reports whether a row with this title and intent is stored.
	Exists(ctx context.Context, title, intent string) (bool, error)
	// LoadDefaultsIfNecessary seeds defaults once into an empty store.
	LoadDefaultsIfNecessary(ctx context.Context, defaults []models.PersistedItemRecord) (bool, error)
	Close() error
}
