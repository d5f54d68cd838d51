/*
Package registry holds the explicit field descriptor tables of entity types.

A descriptor is registered once per Go type and replaces runtime
introspection: it names the type, tells how to read its identifier, and
lists its fields with their default values and accessors.

	registry.MustRegister(registry.Descriptor[Person]{
	    Name: "Person",
	    ID:   func(p Person) string { return p.ID },
	    Fields: []registry.Field[Person]{
	        registry.FieldOf("Name", func(p Person) string { return p.Name }, nil),
	        registry.FieldOf("Age", func(p Person) int { return p.Age }, nil).WithDefault(18),
	    },
	})

Polymorphic storage:
Types that share one store are registered as ShapeMember of a family.
Their records carry the canonical type name in the discriminator field
(EntityType by default), and base queries of their collections filter on it:

	registry.MustRegister(registry.Descriptor[Dog]{
	    Name:   "Dog",
	    Shape:  registry.ShapeMember,
	    Family: "animals",
	    ...
	})

The registry is thread-safe and should be populated during initialization,
typically in init() functions.
*/
package registry
