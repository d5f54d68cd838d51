/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/events"
	"github.com/suparena/entitysession/logger"
	"github.com/suparena/entitysession/registry"
)

// Session owns the collections of one connection to a storage backend.
// Collections are created lazily, once per alias, and stay valid until Close.
type Session struct {
	driver   datastore.Driver
	registry *registry.Registry
	sink     events.Sink
	logger   *slog.Logger
	resolve  AliasResolver

	mu          sync.RWMutex
	collections map[string]collectionEntry
	closed      bool
}

type collectionEntry struct {
	typ        reflect.Type
	typeName   string
	collection any
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry sets the descriptor registry. Defaults to registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithSink sets the receiver of persist and delete events.
func WithSink(sink events.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithLogger sets the session logger. Sessions are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithAliasResolver replaces DefaultAliasResolver.
func WithAliasResolver(r AliasResolver) Option {
	return func(s *Session) { s.resolve = r }
}

// Open starts a session on driver.
func Open(ctx context.Context, driver datastore.Driver, opts ...Option) (*Session, error) {
	if driver == nil {
		return nil, fmt.Errorf("session: driver is required")
	}
	s := &Session{
		driver:      driver,
		registry:    registry.Default(),
		sink:        events.Discard,
		logger:      logger.Discard(),
		resolve:     DefaultAliasResolver,
		collections: make(map[string]collectionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil || s.sink == nil || s.logger == nil || s.resolve == nil {
		return nil, fmt.Errorf("session: nil option value")
	}
	s.logger.DebugContext(ctx, "session opened", "types", len(s.registry.Names()))
	return s, nil
}

// Close disconnects the driver and invalidates every collection of the
// session. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.collections = make(map[string]collectionEntry)
	s.mu.Unlock()

	if err := s.driver.Close(ctx); err != nil {
		s.logger.ErrorContext(ctx, "driver close failed", "error", err)
		return fmt.Errorf("session: close driver: %w", err)
	}
	s.logger.DebugContext(ctx, "session closed")
	return nil
}

// Registry returns the descriptor registry of the session.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Collections returns the aliases of every collection created so far, sorted.
func (s *Session) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.collections))
	for alias := range s.collections {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func (s *Session) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrSessionClosed
	}
	return nil
}

func (s *Session) emit(ctx context.Context, kind events.Kind, alias, id string, entity any) {
	s.sink.Emit(ctx, events.Event{
		Kind:       kind,
		Collection: alias,
		ID:         id,
		Entity:     entity,
		Time:       time.Now(),
	})
}

// CollectionOf returns the collection of T registered under alias. An empty
// alias is derived from T's descriptor by the session's AliasResolver.
// The same alias always yields the same *Collection[T]; asking for it with a
// different type is an error.
func CollectionOf[T any](ctx context.Context, s *Session, alias string) (*Collection[T], error) {
	desc, err := registry.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	info := desc.Info()
	name := s.resolve(alias, info)
	if name == "" {
		return nil, errors.NewValidationError("alias", fmt.Sprintf("no alias for %s", info.Name))
	}

	s.mu.RLock()
	closed := s.closed
	entry, ok := s.collections[name]
	s.mu.RUnlock()
	if closed {
		return nil, errors.ErrSessionClosed
	}
	if ok {
		return typedCollection[T](name, entry, info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.ErrSessionClosed
	}
	if entry, ok := s.collections[name]; ok {
		return typedCollection[T](name, entry, info)
	}

	c, err := newCollection(ctx, s, name, desc)
	if err != nil {
		return nil, err
	}
	s.collections[name] = collectionEntry{typ: info.Type, typeName: info.Name, collection: c}
	s.logger.DebugContext(ctx, "collection created", "alias", name, "store", c.store, "type", info.Name)
	return c, nil
}

func typedCollection[T any](alias string, entry collectionEntry, info registry.TypeInfo) (*Collection[T], error) {
	if entry.typ != info.Type {
		return nil, errors.NewTypeMismatchError(alias, entry.typeName, info.Name)
	}
	return entry.collection.(*Collection[T]), nil
}
