/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession

import (
	"strings"

	"github.com/stoewer/go-strcase"

	"github.com/suparena/entitysession/registry"
)

// AliasResolver maps an explicit alias (possibly empty) and a type to the
// alias of its collection. It must be deterministic.
type AliasResolver func(explicit string, info registry.TypeInfo) string

// DefaultAliasResolver uses the trimmed explicit alias, or the snake_case
// canonical type name when none is given ("RatingSystem" -> "rating_system").
func DefaultAliasResolver(explicit string, info registry.TypeInfo) string {
	if alias := strings.TrimSpace(explicit); alias != "" {
		return alias
	}
	return strcase.SnakeCase(info.Name)
}
