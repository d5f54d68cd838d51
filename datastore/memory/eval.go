/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memory

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/suparena/entitysession/filter"
)

// program is a compiled filter. A nil program matches every record.
type program struct {
	source string
	params []any
	prog   *vm.Program
}

// compile translates a filter tree into an expr program evaluated against
// the environment {"f": record fields, "p": params}.
func compile(f filter.Filter) (*program, error) {
	if f == nil {
		return nil, nil
	}
	c := &compiler{}
	source, err := c.emit(f)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(source,
		expr.Env(env(nil, nil)),
		expr.AsBool(),
		expr.Function("hasPrefix", hasPrefix, new(func(any, any) bool)),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", source, err)
	}
	return &program{source: source, params: c.params, prog: prog}, nil
}

func (p *program) match(fields map[string]any) (bool, error) {
	if p == nil {
		return true, nil
	}
	out, err := expr.Run(p.prog, env(fields, p.params))
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", p.source, err)
	}
	return out.(bool), nil
}

func env(fields map[string]any, params []any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	if params == nil {
		params = []any{}
	}
	return map[string]any{"f": fields, "p": params}
}

type compiler struct {
	params []any
}

func (c *compiler) param(v any) string {
	c.params = append(c.params, v)
	return fmt.Sprintf("p[%d]", len(c.params)-1)
}

func (c *compiler) emit(f filter.Filter) (string, error) {
	switch v := f.(type) {
	case filter.Cond:
		return c.cond(v)
	case filter.And:
		return c.join(v, " && ", "true")
	case filter.Or:
		return c.join(v, " || ", "false")
	case filter.Not:
		inner, err := c.emit(v.Filter)
		if err != nil {
			return "", err
		}
		return "!(" + inner + ")", nil
	}
	return "", fmt.Errorf("unsupported filter %T", f)
}

func (c *compiler) join(children []filter.Filter, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := c.emit(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func (c *compiler) cond(cond filter.Cond) (string, error) {
	field := fmt.Sprintf("f[%q]", cond.Field)
	switch cond.Op {
	case filter.OpEq:
		return field + " == " + c.param(cond.Value), nil
	case filter.OpNe:
		return field + " != " + c.param(cond.Value), nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		// ordering against a missing field never matches
		return fmt.Sprintf("%s != nil && %s %s %s", field, field, cond.Op, c.param(cond.Value)), nil
	case filter.OpIn:
		return field + " in " + c.param(cond.Values()), nil
	case filter.OpPrefix:
		return fmt.Sprintf("hasPrefix(%s, %s)", field, c.param(cond.Value)), nil
	}
	return "", fmt.Errorf("unsupported operator %q", cond.Op)
}

func hasPrefix(params ...any) (any, error) {
	s, ok := params[0].(string)
	if !ok {
		return false, nil
	}
	prefix, ok := params[1].(string)
	if !ok {
		return false, nil
	}
	return strings.HasPrefix(s, prefix), nil
}
