/*
Package entitysession provides typed entity collections on top of pluggable
storage engines.

A Session owns one collection per alias. Each Collection[T] knows which ids
it has seen persisted, writes object graphs without writing any entity twice,
and builds queries, including queries derived from an example entity.

Key Features:
  - Explicit per-type descriptors instead of reflection (package registry)
  - Cascading, cycle-safe Persist driven by descriptor Cascade hooks
  - Polymorphic families sharing one store, scoped by a discriminator field
  - Query-by-example against field defaults
  - Memory, SQLite and DynamoDB engines (package datastore)
  - Persist/delete events with logging and Prometheus sinks

Basic Usage:

	registry.MustRegister(registry.Descriptor[User]{
	    Name: "User",
	    ID:   func(u User) string { return u.ID },
	    Fields: []registry.Field[User]{
	        registry.FieldOf("Name", func(u User) string { return u.Name }, nil),
	    },
	})

	session, _ := entitysession.Open(ctx, memory.New())
	defer session.Close(ctx)

	users, _ := entitysession.CollectionOf[User](ctx, session, "")
	_ = users.Persist(ctx, User{ID: "123", Name: "John"})

	q, _ := users.ByExample(User{Name: "John"})
	found, _ := users.FindAll(ctx, q)

Cascades:

A descriptor's Cascade hook runs inside every insert and update and may
persist related entities with the ctx it receives. The write context carried
by that ctx makes sure each entity of the graph is written once, even when
the graph has cycles.
*/
package entitysession
