/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memory_test

import (
	"context"
	"testing"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/datastore/memory"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/filter"
	"github.com/suparena/entitysession/query"
)

func record(id, name string, age int) datastore.Record {
	return datastore.Record{
		ID:     id,
		Type:   "Person",
		Fields: map[string]any{"ID": id, "Name": name, "Age": age},
		Body:   []byte(`{}`),
	}
}

func openEngine(t *testing.T, d *memory.Driver, name string) datastore.Engine {
	t.Helper()
	e, err := d.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return e
}

func TestMemoryEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("BasicOperations", func(t *testing.T) {
		d := memory.New()
		e := openEngine(t, d, "people")

		if err := e.Insert(ctx, record("1", "Alice", 30)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if err := e.Insert(ctx, record("1", "Alice", 30)); !errors.IsAlreadyExists(err) {
			t.Fatalf("Expected already exists error, got: %v", err)
		}
		if err := e.Update(ctx, record("2", "Bob", 40)); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found error, got: %v", err)
		}
		if err := e.Update(ctx, record("1", "Alicia", 31)); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		recs := d.Records("people")
		if len(recs) != 1 || recs[0].Fields["Name"] != "Alicia" {
			t.Fatalf("Unexpected records: %+v", recs)
		}

		if err := e.Remove(ctx, "1"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if err := e.Remove(ctx, "1"); err != nil {
			t.Fatalf("Remove of a missing id should be a no-op, got: %v", err)
		}
		if d.Count("people") != 0 {
			t.Fatalf("Expected empty store, got %d", d.Count("people"))
		}
	})

	t.Run("SharedStores", func(t *testing.T) {
		d := memory.New()
		a := openEngine(t, d, "animals")
		b := openEngine(t, d, "animals")
		if err := a.Insert(ctx, record("1", "Rex", 3)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ids, err := datastore.Collect(ctx, mustIDs(t, b, query.New("animals", "ID")))
		if err != nil || len(ids) != 1 {
			t.Fatalf("Expected shared record, got %v (%v)", ids, err)
		}
	})

	t.Run("ErrorSimulation", func(t *testing.T) {
		d := memory.New()
		e := openEngine(t, d, "people")

		insertErr := errors.NewValidationError("name", "required")
		d.WithInsertError(insertErr)
		if err := e.Insert(ctx, record("1", "A", 1)); err != insertErr {
			t.Fatalf("Expected insert error, got: %v", err)
		}

		removeErr := errors.NewNotFoundError("people", "1")
		d.WithRemoveError(removeErr)
		if err := e.Remove(ctx, "1"); err != removeErr {
			t.Fatalf("Expected remove error, got: %v", err)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		d := memory.New()
		e := openEngine(t, d, "people")
		if err := d.Close(ctx); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := e.Insert(ctx, record("1", "A", 1)); err == nil {
			t.Fatal("Expected error after Close")
		}
		if _, err := d.Open(ctx, "people"); err == nil {
			t.Fatal("Expected Open to fail after Close")
		}
	})
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	d := memory.New()
	e := openEngine(t, d, "people")

	for _, r := range []datastore.Record{
		record("1", "Alice", 30),
		record("2", "Bob", 40),
		record("3", "Alma", 25),
		{ID: "4", Fields: map[string]any{"ID": "4", "Name": "Nobody"}},
	} {
		if err := e.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	base := query.New("people", "ID")
	tests := []struct {
		name     string
		query    *query.Query
		expected []string
	}{
		{"all", base, []string{"1", "2", "3", "4"}},
		{"eq", base.Where(filter.Eq("Name", "Bob")), []string{"2"}},
		{"ne", base.Where(filter.Field("Name").Ne("Bob")), []string{"1", "3", "4"}},
		{"gt skips missing", base.Where(filter.Field("Age").Gt(26)), []string{"1", "2"}},
		{"lte", base.Where(filter.Field("Age").Lte(30)), []string{"1", "3"}},
		{"mixed numeric kinds", base.Where(filter.Eq("Age", int64(40))), []string{"2"}},
		{"in", base.Where(filter.In("Name", "Alice", "Alma")), []string{"1", "3"}},
		{"prefix", base.Where(filter.Field("Name").Prefix("Al")), []string{"1", "3"}},
		{"or", base.Where(filter.Or{filter.Eq("Name", "Bob"), filter.Eq("Age", 25)}), []string{"2", "3"}},
		{"not", base.Where(filter.Not{Filter: filter.Field("Name").Prefix("Al")}), []string{"2", "4"}},
		{"conjunction", base.Where(filter.Field("Name").Prefix("Al"), filter.Field("Age").Lt(28)), []string{"3"}},
		{"by ids", base.ByIDs("3", "9", "1", "3"), []string{"3", "1"}},
		{"by id with filter", base.ByID("1").Where(filter.Eq("Name", "Bob")), nil},
		{"limit", base.Limit(2), []string{"1", "2"}},
		{"empty or", base.Where(filter.Or{}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := datastore.Collect(ctx, mustIDs(t, e, tt.query))
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(ids) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, ids)
			}
			for i := range ids {
				if ids[i] != tt.expected[i] {
					t.Fatalf("Expected %v, got %v", tt.expected, ids)
				}
			}
		})
	}

	t.Run("Records", func(t *testing.T) {
		cur, err := e.Execute(ctx, base.Where(filter.Eq("Name", "Alice")))
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		recs, err := datastore.Collect(ctx, cur)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(recs) != 1 || recs[0].Type != "Person" {
			t.Fatalf("Unexpected records: %+v", recs)
		}
	})
}

func mustIDs(t *testing.T, e datastore.Engine, q *query.Query) datastore.Cursor[string] {
	t.Helper()
	cur, err := e.ExecuteIDs(context.Background(), q)
	if err != nil {
		t.Fatalf("ExecuteIDs failed: %v", err)
	}
	return cur
}
