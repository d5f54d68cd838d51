/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strings"

	"github.com/suparena/entitysession/filter"
)

// Query is an immutable filter expression scoped to one physical store.
// Where and Limit return extended copies; the receiver is never modified.
type Query struct {
	store   string
	idField string
	conds   []filter.Filter
	limit   int
}

// New creates an unfiltered query over store. idField names the field that
// holds entity identifiers in that store.
func New(store, idField string) *Query {
	return &Query{store: store, idField: idField}
}

// Store returns the physical store the query runs against.
func (q *Query) Store() string { return q.store }

// IDField returns the name of the identifier field.
func (q *Query) IDField() string { return q.idField }

// Where returns a copy of q with the given filters added as conjuncts.
func (q *Query) Where(filters ...filter.Filter) *Query {
	out := q.clone()
	for _, f := range filters {
		if f != nil {
			out.conds = append(out.conds, f)
		}
	}
	return out
}

// ByID returns a copy of q restricted to a single identifier.
func (q *Query) ByID(id string) *Query {
	return q.Where(filter.Eq(q.idField, id))
}

// ByIDs returns a copy of q restricted to the given identifiers.
func (q *Query) ByIDs(ids ...string) *Query {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return q.Where(filter.In(q.idField, values...))
}

// Limit returns a copy of q that yields at most n results. n <= 0 removes the limit.
func (q *Query) Limit(n int) *Query {
	out := q.clone()
	if n < 0 {
		n = 0
	}
	out.limit = n
	return out
}

// MaxResults returns the result limit, 0 meaning unlimited.
func (q *Query) MaxResults() int { return q.limit }

// Filters returns the conjuncts of q in the order they were added.
func (q *Query) Filters() []filter.Filter {
	out := make([]filter.Filter, len(q.conds))
	copy(out, q.conds)
	return out
}

// Filter returns the conjunction of all conjuncts, or nil for an unfiltered query.
func (q *Query) Filter() filter.Filter {
	return filter.All(q.conds...)
}

// LookupIDs reports the identifiers q is restricted to when one of its
// top-level conjuncts is an equality or membership test on the id field.
// Engines use it to turn a scan into point lookups; the remaining
// conjuncts still have to be applied.
func (q *Query) LookupIDs() ([]string, bool) {
	_, ids, ok := q.lookup(q.conjuncts())
	return ids, ok
}

// SplitLookup returns copies of q whose id lookup holds at most size distinct
// identifiers each, in lookup order. Every copy keeps the other conjuncts and
// the limit of q. A query without an id lookup, or with no more than size
// distinct identifiers, comes back as the only element.
func (q *Query) SplitLookup(size int) []*Query {
	conds := q.conjuncts()
	at, ids, ok := q.lookup(conds)
	if !ok || size <= 0 {
		return []*Query{q}
	}
	ids = distinct(ids)
	if len(ids) <= size {
		return []*Query{q}
	}

	out := make([]*Query, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		chunk := ids[start:min(start+size, len(ids))]
		values := make([]any, len(chunk))
		for i, id := range chunk {
			values[i] = id
		}
		part := &Query{store: q.store, idField: q.idField, limit: q.limit}
		part.conds = make([]filter.Filter, len(conds))
		copy(part.conds, conds)
		part.conds[at] = filter.In(q.idField, values...)
		out = append(out, part)
	}
	return out
}

// conjuncts returns the flattened top-level conjuncts of q.
func (q *Query) conjuncts() []filter.Filter {
	switch f := q.Filter().(type) {
	case nil:
		return nil
	case filter.And:
		return f
	default:
		return []filter.Filter{f}
	}
}

// lookup finds the first id lookup among conds and returns its position.
func (q *Query) lookup(conds []filter.Filter) (int, []string, bool) {
	for at, f := range conds {
		c, ok := f.(filter.Cond)
		if !ok || c.Field != q.idField || (c.Op != filter.OpEq && c.Op != filter.OpIn) {
			continue
		}
		values := c.Values()
		ids := make([]string, 0, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return -1, nil, false
			}
			ids = append(ids, s)
		}
		return at, ids, true
	}
	return -1, nil, false
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "query(%s", q.store)
	if f := q.Filter(); f != nil {
		fmt.Fprintf(&b, " where %s", f)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.limit)
	}
	b.WriteString(")")
	return b.String()
}

func (q *Query) clone() *Query {
	out := *q
	out.conds = make([]filter.Filter, len(q.conds), len(q.conds)+1)
	copy(out.conds, q.conds)
	return &out
}
