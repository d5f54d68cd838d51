/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/entitysession/errors"
)

// Registry maps Go types to their descriptors. It is safe for concurrent use
// and is normally populated once, in init functions.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]any
	byName map[string]TypeInfo
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]any),
		byName: make(map[string]TypeInfo),
	}
}

var defaultRegistry = New()

// Default returns the process-wide registry used by sessions that are not
// given one explicitly.
func Default() *Registry { return defaultRegistry }

// Register validates d and associates it with T.
// Registering T twice, or two types under one canonical name, is an error.
func Register[T any](r *Registry, d Descriptor[T]) error {
	if err := d.Validate(); err != nil {
		return err
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[typ]; exists {
		return fmt.Errorf("type registry: %s already registered", typ)
	}
	if other, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("type registry: name %q already registered for %s", d.Name, other.Type)
	}
	desc := d
	r.byType[typ] = &desc
	r.byName[d.Name] = desc.Info()
	return nil
}

// MustRegister registers d in the default registry and panics on failure,
// to prevent accidental overrides from init functions.
func MustRegister[T any](d Descriptor[T]) {
	if err := Register(defaultRegistry, d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered for T.
// A missing descriptor is an introspection error.
func Lookup[T any](r *Registry) (*Descriptor[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byType[typ]
	if !ok {
		return nil, errors.NewIntrospectionError(typ.String(), "no descriptor registered")
	}
	return d.(*Descriptor[T]), nil
}

// ByName returns the TypeInfo registered under a canonical type name.
func (r *Registry) ByName(name string) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	return info, ok
}

// Names returns every registered canonical name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Family returns the TypeInfo of every member type stored in family.
func (r *Registry) Family(family string) []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TypeInfo
	for _, info := range r.byName {
		if info.Shape == ShapeMember && info.Family == family {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
