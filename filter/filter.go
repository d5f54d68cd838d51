/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package filter

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpEq     Op = "="
	OpNe     Op = "!="
	OpGt     Op = ">"
	OpGte    Op = ">="
	OpLt     Op = "<"
	OpLte    Op = "<="
	OpIn     Op = "in"
	OpPrefix Op = "begins_with"
)

// Filter is a node of a filter tree: a Cond, And, Or or Not.
type Filter interface {
	fmt.Stringer
	isFilter()
}

// Field is a reference to a named entity field.
type Field string

// Name returns the referenced field name.
func (f Field) Name() string { return string(f) }

func (f Field) Eq(v any) Cond         { return Cond{Field: string(f), Op: OpEq, Value: v} }
func (f Field) Ne(v any) Cond         { return Cond{Field: string(f), Op: OpNe, Value: v} }
func (f Field) Gt(v any) Cond         { return Cond{Field: string(f), Op: OpGt, Value: v} }
func (f Field) Gte(v any) Cond        { return Cond{Field: string(f), Op: OpGte, Value: v} }
func (f Field) Lt(v any) Cond         { return Cond{Field: string(f), Op: OpLt, Value: v} }
func (f Field) Lte(v any) Cond        { return Cond{Field: string(f), Op: OpLte, Value: v} }
func (f Field) Prefix(p string) Cond  { return Cond{Field: string(f), Op: OpPrefix, Value: p} }
func (f Field) In(values ...any) Cond { return Cond{Field: string(f), Op: OpIn, Value: values} }

// Cond compares one field against a value. For OpIn the value is a []any.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func (Cond) isFilter() {}

func (c Cond) String() string {
	if c.Op == OpIn {
		return fmt.Sprintf("%s in %v", c.Field, c.Value)
	}
	if c.Op == OpPrefix {
		return fmt.Sprintf("begins_with(%s, %q)", c.Field, c.Value)
	}
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%s %s %q", c.Field, c.Op, s)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Values returns the operand list of an OpIn condition, or the single value otherwise.
func (c Cond) Values() []any {
	if vs, ok := c.Value.([]any); ok {
		return vs
	}
	return []any{c.Value}
}

// And matches when every child matches. An empty And matches everything.
type And []Filter

func (And) isFilter() {}

func (a And) String() string { return join(a, " AND ") }

// Or matches when at least one child matches. An empty Or matches nothing.
type Or []Filter

func (Or) isFilter() {}

func (o Or) String() string { return join(o, " OR ") }

// Not negates its child.
type Not struct {
	Filter Filter
}

func (Not) isFilter() {}

func (n Not) String() string { return "NOT (" + n.Filter.String() + ")" }

// Eq is shorthand for Field(name).Eq(v).
func Eq(name string, v any) Cond { return Field(name).Eq(v) }

// In is shorthand for Field(name).In(values...).
func In(name string, values ...any) Cond { return Field(name).In(values...) }

// All combines filters into a conjunction, dropping nils and flattening nested Ands.
// It returns nil when nothing is left and the single filter when only one is.
func All(filters ...Filter) Filter {
	flat := make(And, 0, len(filters))
	for _, f := range filters {
		switch v := f.(type) {
		case nil:
		case And:
			for _, child := range v {
				if child != nil {
					flat = append(flat, child)
				}
			}
		default:
			flat = append(flat, f)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return flat
}

// Conds returns the top-level conditions of f: f itself if it is a Cond,
// or the direct Cond children of an And.
func Conds(f Filter) []Cond {
	switch v := f.(type) {
	case Cond:
		return []Cond{v}
	case And:
		out := make([]Cond, 0, len(v))
		for _, child := range v {
			if c, ok := child.(Cond); ok {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

// Walk calls fn for every Cond in the tree, depth first.
func Walk(f Filter, fn func(Cond)) {
	switch v := f.(type) {
	case Cond:
		fn(v)
	case And:
		for _, child := range v {
			Walk(child, fn)
		}
	case Or:
		for _, child := range v {
			Walk(child, fn)
		}
	case Not:
		Walk(v.Filter, fn)
	}
}

func join[S ~[]Filter](filters S, sep string) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, "("+f.String()+")")
	}
	return strings.Join(parts, sep)
}
