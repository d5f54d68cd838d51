/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/suparena/entitysession/errors"
)

// DefaultDiscriminatorField is the attribute that carries the canonical type
// name of members of a shared collection.
const DefaultDiscriminatorField = "EntityType"

// DefaultIDField is the field name used for identifiers when a descriptor
// does not name one.
const DefaultIDField = "ID"

// Shape tells whether a type owns its collection or shares it with other
// members of a polymorphic family.
type Shape int

const (
	// ShapeNative types are the sole shape stored in their collection.
	ShapeNative Shape = iota
	// ShapeMember types share a store with other types and are told apart
	// by the discriminator field.
	ShapeMember
)

func (s Shape) String() string {
	if s == ShapeMember {
		return "member"
	}
	return "native"
}

// Field describes one named field of T.
type Field[T any] struct {
	Name string
	// Default yields the field's default value. When nil, the default is the
	// value Get returns for a zero record.
	Default func() any
	Get     func(T) any
	// Set returns a copy of the entity with the field set to v. Optional.
	Set func(entity T, v any) (T, error)
}

// FieldOf builds a typed Field whose default is the zero value of V.
// set may be nil for read-only fields.
func FieldOf[T, V any](name string, get func(T) V, set func(T, V) T) Field[T] {
	f := Field[T]{
		Name: name,
		Get:  func(e T) any { return get(e) },
	}
	if set != nil {
		f.Set = func(e T, v any) (T, error) {
			typed, ok := v.(V)
			if !ok {
				var zero V
				return e, errors.NewValidationError(name, fmt.Sprintf("expected %T, got %T", zero, v))
			}
			return set(e, typed), nil
		}
	}
	return f
}

// WithDefault returns a copy of f whose default value is v.
func (f Field[T]) WithDefault(v any) Field[T] {
	f.Default = func() any { return v }
	return f
}

// Descriptor is the explicit field table of an entity type.
type Descriptor[T any] struct {
	// Name is the canonical type name; it is the discriminator value of
	// ShapeMember types and the base of derived aliases.
	Name string
	// IDField names the identifier field (DefaultIDField when empty).
	IDField string
	ID      func(T) string
	// AssignID returns a copy of the entity carrying id. Optional; without it
	// entities must arrive with an identifier.
	AssignID func(entity T, id string) T
	// New builds the zero record used for field defaults. Optional for
	// struct and pointer-to-struct types.
	New    func() T
	Fields []Field[T]

	Shape Shape
	// Family is the shared store name of ShapeMember types.
	Family             string
	DiscriminatorField string

	// Cascade runs inside every insert and update of T, before the record is
	// written. It may persist related entities through the same context.
	Cascade func(ctx context.Context, entity T) error
}

// TypeInfo is the non-generic summary of a descriptor handed to alias
// resolvers and collection factories.
type TypeInfo struct {
	Name               string
	Type               reflect.Type
	IDField            string
	Shape              Shape
	Family             string
	DiscriminatorField string
}

// Info returns the TypeInfo of d.
func (d *Descriptor[T]) Info() TypeInfo {
	return TypeInfo{
		Name:               d.Name,
		Type:               reflect.TypeOf((*T)(nil)).Elem(),
		IDField:            d.IDField,
		Shape:              d.Shape,
		Family:             d.Family,
		DiscriminatorField: d.DiscriminatorField,
	}
}

// Field returns the field named name.
func (d *Descriptor[T]) Field(name string) (Field[T], bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field[T]{}, false
}

// Validate checks d for completeness and fills in default names.
func (d *Descriptor[T]) Validate() error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if strings.TrimSpace(d.Name) == "" {
		return errors.NewIntrospectionError(typ.String(), "descriptor has no name")
	}
	if !isRecord(typ) && d.New == nil {
		return errors.NewIntrospectionError(d.Name, fmt.Sprintf("%s is not a record type", typ.Kind()))
	}
	if d.ID == nil {
		return errors.NewIntrospectionError(d.Name, "descriptor has no identifier accessor")
	}
	if d.IDField == "" {
		d.IDField = DefaultIDField
	}
	if d.Shape == ShapeMember {
		if strings.TrimSpace(d.Family) == "" {
			return errors.NewIntrospectionError(d.Name, "member type has no family")
		}
		if d.DiscriminatorField == "" {
			d.DiscriminatorField = DefaultDiscriminatorField
		}
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return errors.NewIntrospectionError(d.Name, "field without a name")
		}
		if f.Get == nil {
			return errors.NewFieldIntrospectionError(d.Name, f.Name, "field has no getter")
		}
		if seen[f.Name] {
			return errors.NewFieldIntrospectionError(d.Name, f.Name, "duplicate field")
		}
		if f.Name == d.DiscriminatorField && d.Shape == ShapeMember {
			return errors.NewFieldIntrospectionError(d.Name, f.Name, "field shadows the discriminator")
		}
		seen[f.Name] = true
	}
	return nil
}

// Zero returns the record whose field values are the field defaults.
func (d *Descriptor[T]) Zero() (T, error) {
	if d.New != nil {
		return d.New(), nil
	}
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()
	switch {
	case typ.Kind() == reflect.Struct:
		return zero, nil
	case typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct:
		return reflect.New(typ.Elem()).Interface().(T), nil
	}
	return zero, errors.NewIntrospectionError(d.Name, "no factory for default values")
}

// Defaults returns the default value of every field keyed by field name.
func (d *Descriptor[T]) Defaults() (map[string]any, error) {
	out := make(map[string]any, len(d.Fields))
	var (
		zero    T
		hasZero bool
	)
	for _, f := range d.Fields {
		if f.Default != nil {
			out[f.Name] = f.Default()
			continue
		}
		if !hasZero {
			z, err := d.Zero()
			if err != nil {
				return nil, err
			}
			zero, hasZero = z, true
		}
		out[f.Name] = f.Get(zero)
	}
	return out, nil
}

// Project returns the stored field map of entity: every descriptor field,
// the identifier, and the discriminator for ShapeMember types.
func (d *Descriptor[T]) Project(entity T) map[string]any {
	out := make(map[string]any, len(d.Fields)+2)
	for _, f := range d.Fields {
		out[f.Name] = f.Get(entity)
	}
	out[d.IDField] = d.ID(entity)
	if d.Shape == ShapeMember {
		out[d.DiscriminatorField] = d.Name
	}
	return out
}

func isRecord(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Kind() == reflect.Struct
}
