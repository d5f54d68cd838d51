/*
Package datastore defines the contracts between entitysession collections and
storage backends.

A Driver opens one Engine per physical store. Engines deal only in Records,
the backend-neutral form of an entity:

	type Engine interface {
	    Insert(ctx context.Context, rec Record) error
	    Update(ctx context.Context, rec Record) error
	    Remove(ctx context.Context, id string) error
	    Execute(ctx context.Context, q *query.Query) (Cursor[Record], error)
	    ExecuteIDs(ctx context.Context, q *query.Query) (Cursor[string], error)
	    Drop(ctx context.Context) error
	}

Query results are single-pass cursors. Collect drains a cursor into a slice;
Stream delivers it over a channel of storagemodels.StreamResult.

Implementations:
  - memory: in-process engine, filters evaluated with expr-lang programs
  - sqlite: modernc.org/sqlite engine over JSON columns
  - ddb: DynamoDB engine using a single-table layout (PK = store, SK = id)
*/
package datastore
