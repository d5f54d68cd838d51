/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/query"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `CREATE TABLE IF NOT EXISTS entities (
	store      TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	type       TEXT    NOT NULL DEFAULT '',
	fields     TEXT    NOT NULL,
	body       BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (store, id)
)`

// Driver is a datastore.Driver backed by a single SQLite database. All stores
// share the entities table and are told apart by its store column.
type Driver struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Driver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Driver{db: db}, nil
}

// Open returns the engine of the named store.
func (d *Driver) Open(ctx context.Context, store string) (datastore.Engine, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(store) == "" {
		return nil, errors.NewValidationError("store", "store name is required")
	}
	return &Engine{db: d.db, store: store}, nil
}

// Close closes the SQLite handle.
func (d *Driver) Close(ctx context.Context) error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Engine is the datastore.Engine of one store.
type Engine struct {
	db    *sql.DB
	store string
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Insert adds a new row for rec.
func (e *Engine) Insert(ctx context.Context, rec datastore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.NewValidationError("id", "record has no id")
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields of %s/%s: %w", e.store, rec.ID, err)
	}
	now := toMillis(time.Now())
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO entities (store, id, type, fields, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.store, rec.ID, rec.Type, string(fields), rec.Body, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewAlreadyExistsError(e.store, rec.ID)
		}
		return fmt.Errorf("insert %s/%s: %w", e.store, rec.ID, err)
	}
	return nil
}

// Update replaces the row of rec.
func (e *Engine) Update(ctx context.Context, rec datastore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields of %s/%s: %w", e.store, rec.ID, err)
	}
	res, err := e.db.ExecContext(ctx,
		`UPDATE entities SET type = ?, fields = ?, body = ?, updated_at = ?
		 WHERE store = ? AND id = ?`,
		rec.Type, string(fields), rec.Body, toMillis(time.Now()), e.store, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", e.store, rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", e.store, rec.ID, err)
	}
	if n == 0 {
		return errors.NewNotFoundError(e.store, rec.ID)
	}
	return nil
}

// Remove deletes the row with the given id if it exists.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, `DELETE FROM entities WHERE store = ? AND id = ?`, e.store, id); err != nil {
		return fmt.Errorf("remove %s/%s: %w", e.store, id, err)
	}
	return nil
}

// Drop deletes every row of the store.
func (e *Engine) Drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, `DELETE FROM entities WHERE store = ?`, e.store); err != nil {
		return fmt.Errorf("drop %s: %w", e.store, err)
	}
	return nil
}

// Execute runs q and returns the matching records in insertion order.
func (e *Engine) Execute(ctx context.Context, q *query.Query) (datastore.Cursor[datastore.Record], error) {
	rows, err := e.selectRows(ctx, "id, type, fields, body", q)
	if err != nil {
		return nil, err
	}
	return &rowCursor[datastore.Record]{rows: rows, scan: scanRecord}, nil
}

// ExecuteIDs runs q and returns the ids of the matching rows.
func (e *Engine) ExecuteIDs(ctx context.Context, q *query.Query) (datastore.Cursor[string], error) {
	rows, err := e.selectRows(ctx, "id", q)
	if err != nil {
		return nil, err
	}
	return &rowCursor[string]{rows: rows, scan: scanID}, nil
}

func (e *Engine) selectRows(ctx context.Context, columns string, q *query.Query) (*sql.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where, args, err := translate(q.Filter())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM entities WHERE store = ?", columns)
	params := []any{e.store}
	if ids, ok := q.LookupIDs(); ok {
		b.WriteString(" AND id IN (" + placeholders(len(ids)) + ")")
		for _, id := range ids {
			params = append(params, id)
		}
	}
	if where != "" {
		b.WriteString(" AND (" + where + ")")
		params = append(params, args...)
	}
	b.WriteString(" ORDER BY rowid")
	if limit := q.MaxResults(); limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, limit)
	}

	rows, err := e.db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", q, err)
	}
	return rows, nil
}

type rowCursor[V any] struct {
	rows *sql.Rows
	scan func(*sql.Rows) (V, error)
	cur  V
	err  error
	done bool
}

func (c *rowCursor[V]) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.rows.Next() {
		c.done = true
		c.err = c.rows.Err()
		return false
	}
	v, err := c.scan(c.rows)
	if err != nil {
		c.err = err
		return false
	}
	c.cur = v
	return true
}

func (c *rowCursor[V]) Value() V   { return c.cur }
func (c *rowCursor[V]) Err() error { return c.err }

func (c *rowCursor[V]) Close() error {
	c.done = true
	return c.rows.Close()
}

func scanID(rows *sql.Rows) (string, error) {
	var id string
	if err := rows.Scan(&id); err != nil {
		return "", fmt.Errorf("scan id: %w", err)
	}
	return id, nil
}

func scanRecord(rows *sql.Rows) (datastore.Record, error) {
	var (
		rec    datastore.Record
		fields string
	)
	if err := rows.Scan(&rec.ID, &rec.Type, &fields, &rec.Body); err != nil {
		return datastore.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return datastore.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ datastore.Driver = (*Driver)(nil)
var _ datastore.Engine = (*Engine)(nil)
