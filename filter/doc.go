/*
Package filter defines the field and filter model used to build queries.

A filter tree is composed of conditions and boolean combinators:

	name := filter.Field("Name")
	age := filter.Field("Age")

	f := filter.All(
	    name.Eq("Alice"),
	    filter.Or{age.Gte(18), filter.Not{Filter: age.Eq(0)}},
	)

Filters are plain values. They are composed by the core and evaluated only by
storage engines, each of which compiles the tree into its own language
(expr programs, SQL, DynamoDB filter expressions).
*/
package filter
