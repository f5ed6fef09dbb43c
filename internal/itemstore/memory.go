package itemstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"
)

// Memory is an in-process Store. It also backs tests that need to inject
// store failures.
type Memory struct {
	mu             sync.Mutex
	rows           map[int64]models.PersistedItemRecord
	maxID          int64
	defaultsLoaded bool

	// FailQuery makes Query return this error when set.
	FailQuery error
	// FailBatch makes BatchUpdate return this error when set.
	FailBatch error

	writes int
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[int64]models.PersistedItemRecord)}
}

// Seed writes raw records without validation, raising the id counter.
func (m *Memory) Seed(recs ...models.PersistedItemRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.rows[rec.ID] = cloneRecord(rec)
		if rec.ID > m.maxID {
			m.maxID = rec.ID
		}
	}
}

// Writes counts successful mutations.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Record returns the stored row for id.
func (m *Memory) Record(id int64) (models.PersistedItemRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	return cloneRecord(rec), ok
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Query(ctx context.Context) ([]models.PersistedItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailQuery != nil {
		return nil, errors.Wrap(m.FailQuery, errors.ErrCodeStoreQuery, "query items")
	}
	out := make([]models.PersistedItemRecord, 0, len(m.rows))
	for _, rec := range m.rows {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, rec models.PersistedItemRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		m.maxID++
		rec.ID = m.maxID
	} else if _, exists := m.rows[rec.ID]; exists {
		return 0, errors.StoreWrite("insert", rec.ID, fmt.Errorf("duplicate id"))
	}
	if rec.ID > m.maxID {
		m.maxID = rec.ID
	}
	m.rows[rec.ID] = cloneRecord(rec)
	m.writes++
	return rec.ID, nil
}

func (m *Memory) Update(ctx context.Context, id int64, values Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := values.Validate(); err != nil {
		return errors.StoreWrite("update", id, err)
	}
	rec, ok := m.rows[id]
	if !ok {
		return errors.ItemNotFound(id)
	}
	if err := applyValues(&rec, values); err != nil {
		return errors.StoreWrite("update", id, err)
	}
	m.rows[id] = rec
	m.writes++
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	m.writes++
	return nil
}

func (m *Memory) BatchUpdate(ctx context.Context, changes []Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBatch != nil {
		return errors.Wrap(m.FailBatch, errors.ErrCodeBatchUpdate, "apply batch")
	}

	staged := make(map[int64]models.PersistedItemRecord, len(changes))
	for _, c := range changes {
		if err := c.Values.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeBatchUpdate, "invalid batch entry").WithDetail("id", c.ID)
		}
		rec, ok := staged[c.ID]
		if !ok {
			if rec, ok = m.rows[c.ID]; !ok {
				return errors.Wrap(errors.ItemNotFound(c.ID), errors.ErrCodeBatchUpdate, "apply batch entry").WithDetail("id", c.ID)
			}
		}
		if err := applyValues(&rec, c.Values); err != nil {
			return errors.Wrap(err, errors.ErrCodeBatchUpdate, "apply batch entry").WithDetail("id", c.ID)
		}
		staged[c.ID] = rec
	}
	for id, rec := range staged {
		m.rows[id] = rec
	}
	m.writes++
	return nil
}

func (m *Memory) GenerateNewID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxID++
	return m.maxID, nil
}

func (m *Memory) UpdateMaxID(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id > m.maxID {
		m.maxID = id
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, title, intent string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		if rec.Title == title && rec.Intent == intent {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) LoadDefaultsIfNecessary(ctx context.Context, defaults []models.PersistedItemRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultsLoaded || len(m.rows) > 0 {
		return false, nil
	}
	for _, rec := range defaults {
		m.maxID++
		rec.ID = m.maxID
		m.rows[rec.ID] = cloneRecord(rec)
	}
	m.defaultsLoaded = true
	m.writes++
	return true, nil
}

func applyValues(rec *models.PersistedItemRecord, values Values) error {
	for col, v := range values {
		var ok bool
		switch col {
		case ColTitle:
			rec.Title, ok = v.(string)
		case ColIntent:
			rec.Intent, ok = v.(string)
		case ColIconResource:
			rec.IconResource, ok = v.(string)
		case ColIcon:
			if v == nil {
				rec.Icon, ok = nil, true
			} else {
				var b []byte
				b, ok = v.([]byte)
				rec.Icon = append([]byte(nil), b...)
			}
		case ColItemType:
			var n int64
			n, ok = asInt(v)
			rec.ItemType = models.ItemType(n)
		case ColPosition:
			var n int64
			n, ok = asInt(v)
			rec.Position = int(n)
		case ColContainer:
			rec.Container, ok = asInt(v)
		}
		if !ok {
			return fmt.Errorf("column %s: unexpected value %T", col, v)
		}
	}
	return nil
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case models.ItemType:
		return int64(n), true
	default:
		return 0, false
	}
}

func cloneRecord(rec models.PersistedItemRecord) models.PersistedItemRecord {
	if rec.Icon != nil {
		rec.Icon = append([]byte(nil), rec.Icon...)
	}
	return rec
}
