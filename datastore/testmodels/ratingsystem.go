/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package testmodels

import (
	"github.com/go-openapi/strfmt"

	"github.com/suparena/entitysession/registry"
)

type RatingSystem struct {

	// Timestamp when the rating system was created.
	// Required: true
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"CreatedAt"`

	// A description of the rating system.
	// Required: true
	Description *string `json:"Description"`

	// Unique identifier for the rating system.
	// Required: true
	ID *string `json:"Id"`

	// Name of the rating system.
	// Required: true
	Name *string `json:"Name"`

	// site Url
	SiteURL string `json:"SiteUrl,omitempty"`

	// Timestamp when the rating system was last updated.
	// Required: true
	// Format: date-time
	UpdatedAt *strfmt.DateTime `json:"UpdatedAt"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *strfmt.DateTime) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// RatingSystemDescriptor describes RatingSystem. Date-times are projected as
// their RFC 3339 strings so every engine compares them the same way.
func RatingSystemDescriptor() registry.Descriptor[*RatingSystem] {
	return registry.Descriptor[*RatingSystem]{
		Name: "RatingSystem",
		ID:   func(r *RatingSystem) string { return deref(r.ID) },
		AssignID: func(r *RatingSystem, id string) *RatingSystem {
			r.ID = &id
			return r
		},
		Fields: []registry.Field[*RatingSystem]{
			registry.FieldOf("Name",
				func(r *RatingSystem) string { return deref(r.Name) },
				func(r *RatingSystem, v string) *RatingSystem { cp := *r; cp.Name = &v; return &cp }),
			registry.FieldOf("Description",
				func(r *RatingSystem) string { return deref(r.Description) },
				func(r *RatingSystem, v string) *RatingSystem { cp := *r; cp.Description = &v; return &cp }),
			registry.FieldOf("SiteURL",
				func(r *RatingSystem) string { return r.SiteURL },
				func(r *RatingSystem, v string) *RatingSystem { cp := *r; cp.SiteURL = v; return &cp }),
			registry.FieldOf("CreatedAt", func(r *RatingSystem) string { return formatTime(r.CreatedAt) }, nil),
			registry.FieldOf("UpdatedAt", func(r *RatingSystem) string { return formatTime(r.UpdatedAt) }, nil),
		},
	}
}
