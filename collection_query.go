/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession

import (
	"context"
	"fmt"
	"reflect"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/filter"
	"github.com/suparena/entitysession/query"
	"github.com/suparena/entitysession/registry"
	"github.com/suparena/entitysession/storagemodels"
)

// Query returns the base query of the collection. Members of a polymorphic
// family are scoped to their own type by a discriminator condition.
func (c *Collection[T]) Query() *query.Query {
	q := query.New(c.store, c.desc.IDField)
	if c.desc.Shape == registry.ShapeMember {
		q = q.Where(filter.Eq(c.desc.DiscriminatorField, c.desc.Name))
	}
	return q
}

// ByExample returns a query matching entities whose fields equal the
// example's, ignoring the id and every field left at its default value.
func (c *Collection[T]) ByExample(example T) (*query.Query, error) {
	if isNil(example) {
		return nil, errors.NewIntrospectionError(c.desc.Name, "nil example")
	}
	defaults, err := c.desc.Defaults()
	if err != nil {
		return nil, err
	}

	var conds []filter.Filter
	for _, f := range c.desc.Fields {
		if f.Name == c.desc.IDField {
			continue
		}
		v := f.Get(example)
		if reflect.DeepEqual(v, defaults[f.Name]) {
			continue
		}
		conds = append(conds, filter.Eq(f.Name, v))
	}
	return c.Query().Where(conds...), nil
}

// Find evaluates q and returns a cursor over the matching entities.
func (c *Collection[T]) Find(ctx context.Context, q *query.Query) (datastore.Cursor[T], error) {
	if err := c.checkQuery(q); err != nil {
		return nil, err
	}
	cur, err := c.engine.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.Map(cur, c.decode), nil
}

// FindIDs evaluates q and returns a cursor over the matching ids.
func (c *Collection[T]) FindIDs(ctx context.Context, q *query.Query) (datastore.Cursor[string], error) {
	if err := c.checkQuery(q); err != nil {
		return nil, err
	}
	return c.engine.ExecuteIDs(ctx, q)
}

// FindAll evaluates q and collects every matching entity.
func (c *Collection[T]) FindAll(ctx context.Context, q *query.Query) ([]T, error) {
	cur, err := c.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.Collect(ctx, cur)
}

// Stream evaluates q in the background and delivers the entities on a channel.
// Errors, including a failure to start the query, arrive as results with Error set.
func (c *Collection[T]) Stream(ctx context.Context, q *query.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	cur, err := c.Find(ctx, q)
	if err != nil {
		ch := make(chan storagemodels.StreamResult[T], 1)
		ch <- storagemodels.StreamResult[T]{Error: err}
		close(ch)
		return ch
	}
	return datastore.Stream(ctx, cur, opts...)
}

// ByID returns the entity with id. A missing entity is not an error.
func (c *Collection[T]) ByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	found, err := c.FindAll(ctx, c.Query().ByID(id).Limit(1))
	if err != nil {
		return zero, false, err
	}
	if len(found) == 0 {
		return zero, false, nil
	}
	c.remember(id)
	return found[0], true, nil
}

// ByIDs returns the entities with the given ids in lookup order. Missing ids
// are skipped and repeated ids yield the entity once.
func (c *Collection[T]) ByIDs(ctx context.Context, ids ...string) ([]T, error) {
	if len(ids) == 0 {
		return nil, c.session.check()
	}
	found, err := c.FindAll(ctx, c.Query().ByIDs(ids...))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]T, len(found))
	for _, entity := range found {
		byID[c.desc.ID(entity)] = entity
	}
	out := make([]T, 0, len(found))
	for _, id := range ids {
		entity, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, entity)
		delete(byID, id)
		c.remember(id)
	}
	return out, nil
}

func (c *Collection[T]) checkQuery(q *query.Query) error {
	if err := c.session.check(); err != nil {
		return err
	}
	if q == nil {
		return errors.NewValidationError("query", "nil query")
	}
	if q.Store() != c.store {
		return errors.NewValidationError("query", fmt.Sprintf("query on %q used with collection %q", q.Store(), c.alias))
	}
	return nil
}
