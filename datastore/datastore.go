/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/entitysession/query"
)

// Record is the backend-neutral form of one stored entity.
type Record struct {
	ID string
	// Type is the canonical type name of the entity.
	Type string
	// Fields holds the queryable projection of the entity, keyed by field name.
	Fields map[string]any
	// Body is the encoded entity.
	Body []byte
}

// Engine executes writes and queries against one physical store.
// Insert fails with an already-exists error when the id is taken and Update
// with a not-found error when it is missing. Remove of a missing id is a no-op.
type Engine interface {
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Remove(ctx context.Context, id string) error

	Execute(ctx context.Context, q *query.Query) (Cursor[Record], error)
	ExecuteIDs(ctx context.Context, q *query.Query) (Cursor[string], error)

	// Drop removes every record of the store.
	Drop(ctx context.Context) error
}

// Driver connects a session to a storage backend.
type Driver interface {
	// Open returns the engine of the named store. Engines opened for the same
	// name share their records.
	Open(ctx context.Context, store string) (Engine, error)
	// Close disconnects the backend.
	Close(ctx context.Context) error
}

// Cursor is a single-pass, forward-only sequence.
//
//	for cur.Next(ctx) {
//	    v := cur.Value()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor[V any] interface {
	Next(ctx context.Context) bool
	Value() V
	Err() error
	Close() error
}
