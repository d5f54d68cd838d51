/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession_test

import (
	"context"
	"sync"
	"testing"

	"github.com/suparena/entitysession"
	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/datastore/memory"
	"github.com/suparena/entitysession/datastore/testmodels"
	"github.com/suparena/entitysession/events"
	"github.com/suparena/entitysession/query"
	"github.com/suparena/entitysession/registry"
)

// countingDriver wraps a driver and counts engine calls per store and id.
type countingDriver struct {
	datastore.Driver

	mu      sync.Mutex
	opens   map[string]int
	inserts map[string]int
	updates map[string]int
	lookups int
}

func newCountingDriver(d datastore.Driver) *countingDriver {
	return &countingDriver{
		Driver:  d,
		opens:   make(map[string]int),
		inserts: make(map[string]int),
		updates: make(map[string]int),
	}
}

func (d *countingDriver) Open(ctx context.Context, store string) (datastore.Engine, error) {
	e, err := d.Driver.Open(ctx, store)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.opens[store]++
	d.mu.Unlock()
	return &countingEngine{Engine: e, driver: d}, nil
}

func (d *countingDriver) count(m map[string]int, key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return m[key]
}

func (d *countingDriver) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

type countingEngine struct {
	datastore.Engine
	driver *countingDriver
}

func (e *countingEngine) Insert(ctx context.Context, rec datastore.Record) error {
	e.driver.mu.Lock()
	e.driver.inserts[rec.ID]++
	e.driver.mu.Unlock()
	return e.Engine.Insert(ctx, rec)
}

func (e *countingEngine) Update(ctx context.Context, rec datastore.Record) error {
	e.driver.mu.Lock()
	e.driver.updates[rec.ID]++
	e.driver.mu.Unlock()
	return e.Engine.Update(ctx, rec)
}

func (e *countingEngine) ExecuteIDs(ctx context.Context, q *query.Query) (datastore.Cursor[string], error) {
	e.driver.mu.Lock()
	e.driver.lookups++
	e.driver.mu.Unlock()
	return e.Engine.ExecuteIDs(ctx, q)
}

type fixture struct {
	session  *entitysession.Session
	driver   *countingDriver
	memory   *memory.Driver
	recorder *events.Recorder
	registry *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New()
	if err := testmodels.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return newFixtureWith(t, reg, memory.New())
}

func newFixtureWith(t *testing.T, reg *registry.Registry, mem *memory.Driver) *fixture {
	t.Helper()
	f := &fixture{
		driver:   newCountingDriver(mem),
		memory:   mem,
		recorder: &events.Recorder{},
		registry: reg,
	}
	s, err := entitysession.Open(context.Background(), f.driver,
		entitysession.WithRegistry(reg),
		entitysession.WithSink(f.recorder),
	)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	f.session = s
	return f
}

func collectionOf[T any](t *testing.T, s *entitysession.Session, alias string) *entitysession.Collection[T] {
	t.Helper()
	c, err := entitysession.CollectionOf[T](context.Background(), s, alias)
	if err != nil {
		t.Fatalf("CollectionOf failed: %v", err)
	}
	return c
}
