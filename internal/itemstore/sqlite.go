package itemstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/pkg/models"

	// _ import for sqlite driver registration
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is the Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// path may also be a "file:" URI such as file:items?mode=memory&cache=shared.
func OpenSQLite(path string) (*SQLite, error) {
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "create data dir").WithDetail("path", path)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "open item store").WithDetail("path", path)
	}
	// One connection keeps the id counter update and the insert on the same
	// session and serializes writers.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "migrate item store").WithDetail("path", path)
	}
	return &SQLite{db: db}, nil
}

// applyMigrations applies the embedded schema and adds columns missing from
// databases created by older versions.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	rows, err := db.Query("PRAGMA table_info(items)")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	cols := map[string]bool{}
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_ = rows.Close()

	if !cols["container"] {
		if _, err := db.Exec("ALTER TABLE items ADD COLUMN container INTEGER NOT NULL DEFAULT -100"); err != nil {
			return err
		}
	}
	if !cols["icon_resource"] {
		if _, err := db.Exec("ALTER TABLE items ADD COLUMN icon_resource TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the underlying handle for diagnostics.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Query(ctx context.Context) ([]models.PersistedItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, intent, item_type, position, container, icon_resource, icon FROM items ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "query items")
	}
	defer func() { _ = rows.Close() }()

	var out []models.PersistedItemRecord
	for rows.Next() {
		var rec models.PersistedItemRecord
		var itemType int
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Intent, &itemType, &rec.Position, &rec.Container, &rec.IconResource, &rec.Icon); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "scan item row")
		}
		rec.ItemType = models.ItemType(itemType)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreQuery, "iterate items")
	}
	return out, nil
}

func (s *SQLite) Insert(ctx context.Context, rec models.PersistedItemRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.StoreWrite("insert", rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if rec.ID == 0 {
		if rec.ID, err = nextID(ctx, tx); err != nil {
			return 0, errors.StoreWrite("insert", rec.ID, err)
		}
	}
	if err := insertRow(ctx, tx, rec); err != nil {
		return 0, errors.StoreWrite("insert", rec.ID, err)
	}
	if err := raiseMaxID(ctx, tx, rec.ID); err != nil {
		return 0, errors.StoreWrite("insert", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.StoreWrite("insert", rec.ID, err)
	}
	return rec.ID, nil
}

func (s *SQLite) Update(ctx context.Context, id int64, values Values) error {
	if err := values.Validate(); err != nil {
		return errors.StoreWrite("update", id, err)
	}
	res, err := execUpdate(ctx, s.db, id, values)
	if err != nil {
		return errors.StoreWrite("update", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ItemNotFound(id)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
		return errors.StoreWrite("delete", id, err)
	}
	return nil
}

func (s *SQLite) BatchUpdate(ctx context.Context, changes []Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBatchUpdate, "begin batch")
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		if err := c.Values.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeBatchUpdate, "invalid batch entry").WithDetail("id", c.ID)
		}
		res, err := execUpdate(ctx, tx, c.ID, c.Values)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeBatchUpdate, "apply batch entry").WithDetail("id", c.ID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrap(errors.ItemNotFound(c.ID), errors.ErrCodeBatchUpdate, "apply batch entry").WithDetail("id", c.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeBatchUpdate, "commit batch")
	}
	return nil
}

func (s *SQLite) GenerateNewID(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreWrite, "generate id")
	}
	defer func() { _ = tx.Rollback() }()
	id, err := nextID(ctx, tx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreWrite, "generate id")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStoreWrite, "generate id")
	}
	return id, nil
}

func (s *SQLite) UpdateMaxID(ctx context.Context, id int64) error {
	if err := raiseMaxID(ctx, s.db, id); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "update max id").WithDetail("id", id)
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, title, intent string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM items WHERE title = ? AND intent = ?", title, intent).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreQuery, "check item exists")
	}
	return n > 0, nil
}

func (s *SQLite) LoadDefaultsIfNecessary(ctx context.Context, defaults []models.PersistedItemRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreWrite, "load defaults")
	}
	defer func() { _ = tx.Rollback() }()

	var loaded, count int64
	if err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'defaults_loaded'").Scan(&loaded); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreQuery, "read defaults flag")
	}
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM items").Scan(&count); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreQuery, "count items")
	}
	if loaded != 0 || count != 0 {
		return false, nil
	}

	for _, rec := range defaults {
		if rec.ID, err = nextID(ctx, tx); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeStoreWrite, "load defaults")
		}
		if err := insertRow(ctx, tx, rec); err != nil {
			return false, errors.Wrap(err, errors.ErrCodeStoreWrite, "insert default item").WithDetail("title", rec.Title)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE meta SET value = 1 WHERE key = 'defaults_loaded'"); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreWrite, "mark defaults loaded")
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreWrite, "load defaults")
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type queryExecer interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nextID(ctx context.Context, q queryExecer) (int64, error) {
	if _, err := q.ExecContext(ctx, "UPDATE meta SET value = value + 1 WHERE key = 'max_item_id'"); err != nil {
		return 0, err
	}
	var id int64
	if err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'max_item_id'").Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func raiseMaxID(ctx context.Context, e execer, id int64) error {
	_, err := e.ExecContext(ctx, "UPDATE meta SET value = ? WHERE key = 'max_item_id' AND value < ?", id, id)
	return err
}

func insertRow(ctx context.Context, e execer, rec models.PersistedItemRecord) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO items (id, title, intent, item_type, position, container, icon_resource, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Intent, int(rec.ItemType), rec.Position, rec.Container, rec.IconResource, rec.Icon)
	return err
}

func execUpdate(ctx context.Context, e execer, id int64, values Values) (sql.Result, error) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, string(col))
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, values[Column(col)])
	}
	args = append(args, id)
	return e.ExecContext(ctx, "UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
}
