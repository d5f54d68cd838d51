/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/query"
)

// Driver is an in-process datastore.Driver. Engines opened for the same store
// name share their records. Useful for tests and short-lived sessions.
type Driver struct {
	mu          sync.Mutex
	stores      map[string]*store
	closed      bool
	insertError error
	updateError error
	removeError error
}

// New creates a new memory Driver.
func New() *Driver {
	return &Driver{
		stores: make(map[string]*store),
	}
}

// WithInsertError makes Insert operations return an error
func (d *Driver) WithInsertError(err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.insertError = err
	return d
}

// WithUpdateError makes Update operations return an error
func (d *Driver) WithUpdateError(err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateError = err
	return d
}

// WithRemoveError makes Remove operations return an error
func (d *Driver) WithRemoveError(err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeError = err
	return d
}

// Open returns the engine of the named store, creating the store on first use.
func (d *Driver) Open(ctx context.Context, name string) (datastore.Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("memory driver: closed")
	}
	s, ok := d.stores[name]
	if !ok {
		s = &store{name: name, records: make(map[string]datastore.Record)}
		d.stores[name] = s
	}
	return &Engine{driver: d, store: s}, nil
}

// Close disconnects the driver. Engines fail after Close.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Count returns the number of records in the named store
func (d *Driver) Count(name string) int {
	d.mu.Lock()
	s, ok := d.stores[name]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of the records of the named store in insertion order
func (d *Driver) Records(name string) []datastore.Record {
	d.mu.Lock()
	s, ok := d.stores[name]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]datastore.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (d *Driver) check(injected func(*Driver) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("memory driver: closed")
	}
	if injected != nil {
		return injected(d)
	}
	return nil
}

type store struct {
	mu      sync.RWMutex
	name    string
	records map[string]datastore.Record
	order   []string
}

// Engine is the datastore.Engine of one memory store.
type Engine struct {
	driver *Driver
	store  *store
}

// Insert stores a new record
func (e *Engine) Insert(ctx context.Context, rec datastore.Record) error {
	if err := e.driver.check(func(d *Driver) error { return d.insertError }); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.NewValidationError("id", "record has no id")
	}

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return errors.NewAlreadyExistsError(s.name, rec.ID)
	}
	s.records[rec.ID] = copyRecord(rec)
	s.order = append(s.order, rec.ID)
	return nil
}

// Update replaces an existing record
func (e *Engine) Update(ctx context.Context, rec datastore.Record) error {
	if err := e.driver.check(func(d *Driver) error { return d.updateError }); err != nil {
		return err
	}

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		return errors.NewNotFoundError(s.name, rec.ID)
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// Remove deletes a record by id
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := e.driver.check(func(d *Driver) error { return d.removeError }); err != nil {
		return err
	}

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return nil
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Execute evaluates q and returns the matching records in insertion order
func (e *Engine) Execute(ctx context.Context, q *query.Query) (datastore.Cursor[datastore.Record], error) {
	records, err := e.match(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.NewSliceCursor(records), nil
}

// ExecuteIDs evaluates q and returns the ids of the matching records
func (e *Engine) ExecuteIDs(ctx context.Context, q *query.Query) (datastore.Cursor[string], error) {
	records, err := e.match(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return datastore.NewSliceCursor(ids), nil
}

// Drop removes all records of the store
func (e *Engine) Drop(ctx context.Context) error {
	if err := e.driver.check(nil); err != nil {
		return err
	}
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]datastore.Record)
	s.order = nil
	return nil
}

// match evaluates q against a snapshot of the store so the cursor does not
// hold the store lock while the caller iterates.
func (e *Engine) match(ctx context.Context, q *query.Query) ([]datastore.Record, error) {
	if err := e.driver.check(nil); err != nil {
		return nil, err
	}
	prog, err := compile(q.Filter())
	if err != nil {
		return nil, err
	}

	s := e.store
	s.mu.RLock()
	candidates := make([]datastore.Record, 0, len(s.order))
	if ids, ok := q.LookupIDs(); ok {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if rec, exists := s.records[id]; exists && !seen[id] {
				seen[id] = true
				candidates = append(candidates, rec)
			}
		}
	} else {
		for _, id := range s.order {
			candidates = append(candidates, s.records[id])
		}
	}
	s.mu.RUnlock()

	var out []datastore.Record
	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := prog.match(rec.Fields)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, rec)
		if limit := q.MaxResults(); limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func copyRecord(rec datastore.Record) datastore.Record {
	fields := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	body := make([]byte, len(rec.Body))
	copy(body, rec.Body)
	return datastore.Record{ID: rec.ID, Type: rec.Type, Fields: fields, Body: body}
}

var _ datastore.Driver = (*Driver)(nil)
var _ datastore.Engine = (*Engine)(nil)
