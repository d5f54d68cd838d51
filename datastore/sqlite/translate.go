/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/suparena/entitysession/filter"
)

// translate renders f as a SQL condition over the JSON fields column.
// A nil filter yields an empty condition.
func translate(f filter.Filter) (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}
	t := &translator{}
	where, err := t.emit(f)
	if err != nil {
		return "", nil, err
	}
	return where, t.args, nil
}

type translator struct {
	args []any
}

func (t *translator) arg(v any) (string, error) {
	sv, err := sqlValue(v)
	if err != nil {
		return "", err
	}
	t.args = append(t.args, sv)
	return "?", nil
}

// field binds the JSON path of name and returns the extraction expression.
func (t *translator) field(name string) string {
	t.args = append(t.args, `$."`+strings.ReplaceAll(name, `"`, `\"`)+`"`)
	return "json_extract(fields, ?)"
}

func (t *translator) emit(f filter.Filter) (string, error) {
	switch v := f.(type) {
	case filter.Cond:
		return t.cond(v)
	case filter.And:
		return t.join(v, " AND ", "1")
	case filter.Or:
		return t.join(v, " OR ", "0")
	case filter.Not:
		inner, err := t.emit(v.Filter)
		if err != nil {
			return "", err
		}
		// comparisons against missing fields yield NULL, which counts as false
		return "NOT COALESCE((" + inner + "), 0)", nil
	}
	return "", fmt.Errorf("unsupported filter %T", f)
}

func (t *translator) join(children []filter.Filter, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := t.emit(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func (t *translator) cond(c filter.Cond) (string, error) {
	switch c.Op {
	case filter.OpEq, filter.OpNe:
		op := "IS"
		if c.Op == filter.OpNe {
			op = "IS NOT"
		}
		field := t.field(c.Field)
		p, err := t.arg(c.Value)
		if err != nil {
			return "", err
		}
		return field + " " + op + " " + p, nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		field := t.field(c.Field)
		p, err := t.arg(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", field, c.Op, p), nil
	case filter.OpIn:
		values := c.Values()
		if len(values) == 0 {
			return "0", nil
		}
		field := t.field(c.Field)
		for _, v := range values {
			if _, err := t.arg(v); err != nil {
				return "", err
			}
		}
		return field + " IN (" + placeholders(len(values)) + ")", nil
	case filter.OpPrefix:
		prefix, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("prefix of %s must be a string, got %T", c.Field, c.Value)
		}
		typeOf := "typeof(" + t.field(c.Field) + ") = 'text'"
		field := t.field(c.Field)
		t.args = append(t.args, utf8.RuneCountInString(prefix), prefix)
		return fmt.Sprintf("%s AND substr(%s, 1, ?) = ?", typeOf, field), nil
	}
	return "", fmt.Errorf("unsupported operator %q", c.Op)
}

// sqlValue converts a filter operand to the representation json_extract
// yields for the same value.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode filter value %T: %w", v, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode filter value %T: %w", v, err)
	}
	switch d := decoded.(type) {
	case string, float64, bool, nil:
		return d, nil
	}
	return string(raw), nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
