/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/events"
	"github.com/suparena/entitysession/registry"
)

// Collection is the set of entities of type T stored under one alias.
//
// It remembers which ids are known to be persisted. The cache never holds an
// id that is not persisted, but a missing id may still exist in the store.
// It only shrinks on Delete and Drop.
type Collection[T any] struct {
	session *Session
	alias   string
	store   string
	desc    *registry.Descriptor[T]
	engine  datastore.Engine
	logger  *slog.Logger

	mu  sync.RWMutex
	ids map[string]struct{}
}

func newCollection[T any](ctx context.Context, s *Session, alias string, desc *registry.Descriptor[T]) (*Collection[T], error) {
	store := alias
	if desc.Shape == registry.ShapeMember {
		store = desc.Family
	}
	engine, err := s.driver.Open(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("open store %q for collection %q: %w", store, alias, err)
	}
	return &Collection[T]{
		session: s,
		alias:   alias,
		store:   store,
		desc:    desc,
		engine:  engine,
		logger:  s.logger.With("collection", alias),
		ids:     make(map[string]struct{}),
	}, nil
}

// Alias returns the collection's alias.
func (c *Collection[T]) Alias() string { return c.alias }

// Store returns the physical store name; it differs from the alias for
// members of a polymorphic family.
func (c *Collection[T]) Store() string { return c.store }

// Descriptor returns the descriptor of T.
func (c *Collection[T]) Descriptor() *registry.Descriptor[T] { return c.desc }

// CachedIDs returns the number of ids known to be persisted.
func (c *Collection[T]) CachedIDs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

func (c *Collection[T]) cached(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

func (c *Collection[T]) remember(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

func (c *Collection[T]) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, id)
}

// IsPersisted reports whether an entity with id exists. Cache misses are
// looked up in the store; hits are cached, misses are not.
func (c *Collection[T]) IsPersisted(ctx context.Context, id string) (bool, error) {
	if err := c.session.check(); err != nil {
		return false, err
	}
	if c.cached(id) {
		return true, nil
	}
	cur, err := c.engine.ExecuteIDs(ctx, c.Query().ByID(id).Limit(1))
	if err != nil {
		return false, err
	}
	ids, err := datastore.Collect(ctx, cur)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	c.remember(id)
	return true, nil
}

// Persist inserts or updates entities in order.
//
// Every entity is written at most once per call tree: the first Persist
// without a write context in ctx creates one, and nested calls made with the
// derived ctx (for example from a descriptor's Cascade hook) skip entities
// already in it. Entities without an id get a UUID when the descriptor can
// assign one. A failure stops the batch; earlier writes stay committed.
func (c *Collection[T]) Persist(ctx context.Context, entities ...T) error {
	_, err := c.persist(ctx, entities)
	return err
}

// Save persists one entity and returns it as stored, with any assigned id.
func (c *Collection[T]) Save(ctx context.Context, entity T) (T, error) {
	out, err := c.persist(ctx, []T{entity})
	if err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

func (c *Collection[T]) persist(ctx context.Context, entities []T) ([]T, error) {
	if err := c.session.check(); err != nil {
		return nil, err
	}

	wc, ok := WriteContextFrom(ctx)
	if !ok {
		wc = newWriteContext()
		ctx = context.WithValue(ctx, writeContextKey{}, wc)
		defer wc.reset()
	}

	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		entity, id, err := c.identify(entity)
		if err != nil {
			return out, err
		}
		out = append(out, entity)
		if !wc.add(writeKey(c.alias, id)) {
			continue
		}

		exists, err := c.IsPersisted(ctx, id)
		if err != nil {
			return out, err
		}
		if exists {
			err = c.update(ctx, entity, id)
		} else {
			err = c.insert(ctx, entity, id)
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "persist failed", "id", id, "error", err)
			return out, err
		}

		c.remember(id)
		c.logger.DebugContext(ctx, "entity persisted", "id", id, "inserted", !exists)
		c.session.emit(ctx, events.Persisted, c.alias, id, entity)
	}
	return out, nil
}

// identify returns the entity's id, assigning a new one when it has none.
func (c *Collection[T]) identify(entity T) (T, string, error) {
	if isNil(entity) {
		return entity, "", errors.NewValidationError(c.desc.IDField, "nil entity")
	}
	if id := c.desc.ID(entity); id != "" {
		return entity, id, nil
	}
	if c.desc.AssignID == nil {
		return entity, "", errors.NewValidationError(c.desc.IDField, fmt.Sprintf("%s has no id", c.desc.Name))
	}
	entity = c.desc.AssignID(entity, uuid.NewString())
	return entity, c.desc.ID(entity), nil
}

func (c *Collection[T]) insert(ctx context.Context, entity T, id string) error {
	rec, err := c.prepare(ctx, entity, id)
	if err != nil {
		return err
	}
	return c.engine.Insert(ctx, rec)
}

func (c *Collection[T]) update(ctx context.Context, entity T, id string) error {
	rec, err := c.prepare(ctx, entity, id)
	if err != nil {
		return err
	}
	return c.engine.Update(ctx, rec)
}

// prepare runs the cascade hook and encodes the entity.
func (c *Collection[T]) prepare(ctx context.Context, entity T, id string) (datastore.Record, error) {
	if c.desc.Cascade != nil {
		if err := c.desc.Cascade(ctx, entity); err != nil {
			return datastore.Record{}, fmt.Errorf("cascade %s/%s: %w", c.alias, id, err)
		}
	}
	return c.record(entity, id)
}

func (c *Collection[T]) record(entity T, id string) (datastore.Record, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return datastore.Record{}, fmt.Errorf("encode %s/%s: %w", c.alias, id, err)
	}
	fields := c.desc.Project(entity)
	fields[c.desc.IDField] = id
	return datastore.Record{
		ID:     id,
		Type:   c.desc.Name,
		Fields: fields,
		Body:   body,
	}, nil
}

func (c *Collection[T]) decode(rec datastore.Record) (T, error) {
	var out T
	if c.desc.New != nil {
		out = c.desc.New()
	}
	if err := json.Unmarshal(rec.Body, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s/%s: %w", c.alias, rec.ID, err)
	}
	return out, nil
}

// Delete removes entities in order. Removing an entity that is not stored
// succeeds. A failure stops the batch; earlier removals stay committed.
func (c *Collection[T]) Delete(ctx context.Context, entities ...T) error {
	if err := c.session.check(); err != nil {
		return err
	}
	for _, entity := range entities {
		if isNil(entity) {
			return errors.NewValidationError(c.desc.IDField, "nil entity")
		}
		if err := c.remove(ctx, c.desc.ID(entity), entity); err != nil {
			return err
		}
	}
	return nil
}

// DeleteIDs removes the entities with the given ids.
func (c *Collection[T]) DeleteIDs(ctx context.Context, ids ...string) error {
	if err := c.session.check(); err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.remove(ctx, id, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T]) remove(ctx context.Context, id string, entity any) error {
	if id == "" {
		return errors.NewValidationError(c.desc.IDField, fmt.Sprintf("%s has no id", c.desc.Name))
	}
	if err := c.engine.Remove(ctx, id); err != nil {
		c.logger.ErrorContext(ctx, "delete failed", "id", id, "error", err)
		return err
	}
	c.forget(id)
	c.logger.DebugContext(ctx, "entity deleted", "id", id)
	c.session.emit(ctx, events.Deleted, c.alias, id, entity)
	return nil
}

// Drop removes every entity of the collection and clears the id cache.
// Members of a polymorphic family only remove entities of their own type.
func (c *Collection[T]) Drop(ctx context.Context) error {
	if err := c.session.check(); err != nil {
		return err
	}
	if c.desc.Shape == registry.ShapeMember {
		cur, err := c.engine.ExecuteIDs(ctx, c.Query())
		if err != nil {
			return err
		}
		ids, err := datastore.Collect(ctx, cur)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := c.engine.Remove(ctx, id); err != nil {
				return err
			}
		}
	} else if err := c.engine.Drop(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.ids = make(map[string]struct{})
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "collection dropped")
	return nil
}

// Patch loads the entity with id, applies changes through the descriptor's
// field setters and persists the result.
func (c *Collection[T]) Patch(ctx context.Context, id string, changes map[string]any) (T, error) {
	var zero T
	entity, ok, err := c.ByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, errors.NewNotFoundError(c.desc.Name, id)
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := c.desc.Field(name)
		if !ok {
			return zero, errors.NewFieldIntrospectionError(c.desc.Name, name, "unknown field")
		}
		if f.Set == nil {
			return zero, errors.NewFieldIntrospectionError(c.desc.Name, name, "field has no setter")
		}
		if entity, err = f.Set(entity, changes[name]); err != nil {
			return zero, err
		}
	}

	if err := c.Persist(ctx, entity); err != nil {
		return zero, err
	}
	return entity, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
