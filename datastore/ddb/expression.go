/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitysession/filter"
)

// never is a condition no item satisfies. DynamoDB has no boolean literals.
const never = "(attribute_exists(#pk) AND attribute_not_exists(#pk))"

// exprBuilder collects the placeholder names and values of the key condition
// and filter expression of one request.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	fields map[string]string
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
		fields: make(map[string]string),
	}
}

func (b *exprBuilder) value(av types.AttributeValue) string {
	placeholder := fmt.Sprintf(":v%d", len(b.values))
	b.values[placeholder] = av
	return placeholder
}

// path returns the document path of a projected field, e.g. #f.#n0.
func (b *exprBuilder) path(field string) string {
	b.names["#f"] = attrFields
	placeholder, ok := b.fields[field]
	if !ok {
		placeholder = fmt.Sprintf("#n%d", len(b.fields))
		b.fields[field] = placeholder
		b.names[placeholder] = field
	}
	return "#f." + placeholder
}

func (b *exprBuilder) operand(v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal filter value %T: %w", v, err)
	}
	return b.value(av), nil
}

func (b *exprBuilder) filter(f filter.Filter) (string, error) {
	switch v := f.(type) {
	case filter.Cond:
		return b.cond(v)
	case filter.And:
		if len(v) == 0 {
			b.names["#pk"] = attrPK
			return "attribute_exists(#pk)", nil
		}
		return b.join(v, " AND ")
	case filter.Or:
		if len(v) == 0 {
			b.names["#pk"] = attrPK
			return never, nil
		}
		return b.join(v, " OR ")
	case filter.Not:
		inner, err := b.filter(v.Filter)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
	return "", fmt.Errorf("unsupported filter %T", f)
}

func (b *exprBuilder) join(children []filter.Filter, sep string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := b.filter(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func (b *exprBuilder) cond(c filter.Cond) (string, error) {
	if c.Op == filter.OpIn && len(c.Values()) == 0 {
		b.names["#pk"] = attrPK
		return never, nil
	}
	path := b.path(c.Field)
	switch c.Op {
	case filter.OpEq:
		if c.Value == nil {
			null := b.value(&types.AttributeValueMemberS{Value: "NULL"})
			return fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, %s))", path, path, null), nil
		}
		v, err := b.operand(c.Value)
		if err != nil {
			return "", err
		}
		return path + " = " + v, nil
	case filter.OpNe:
		if c.Value == nil {
			null := b.value(&types.AttributeValueMemberS{Value: "NULL"})
			return fmt.Sprintf("(attribute_exists(%s) AND NOT attribute_type(%s, %s))", path, path, null), nil
		}
		v, err := b.operand(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", path, path, v), nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		v, err := b.operand(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", path, c.Op, v), nil
	case filter.OpIn:
		// IN takes at most maxInOperands operands; longer lists become a disjunction
		values := c.Values()
		groups := make([]string, 0, (len(values)+maxInOperands-1)/maxInOperands)
		for start := 0; start < len(values); start += maxInOperands {
			chunk := values[start:min(start+maxInOperands, len(values))]
			placeholders := make([]string, len(chunk))
			for i, value := range chunk {
				v, err := b.operand(value)
				if err != nil {
					return "", err
				}
				placeholders[i] = v
			}
			groups = append(groups, fmt.Sprintf("%s IN (%s)", path, strings.Join(placeholders, ", ")))
		}
		if len(groups) == 1 {
			return groups[0], nil
		}
		return "(" + strings.Join(groups, " OR ") + ")", nil
	case filter.OpPrefix:
		v, err := b.operand(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("begins_with(%s, %s)", path, v), nil
	}
	return "", fmt.Errorf("unsupported operator %q", c.Op)
}
