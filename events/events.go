/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind tells what happened to an entity.
type Kind string

const (
	Persisted Kind = "persisted"
	Deleted   Kind = "deleted"
)

// Event is fired once per entity written or removed by an external request.
type Event struct {
	Kind Kind
	// Collection is the alias of the collection the entity belongs to.
	Collection string
	ID         string
	Entity     any
	Time       time.Time
}

// Sink receives events. Emit is fire-and-forget; a sink must not block the
// writer for long.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Bus fans events out to its subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id   int
	sink Sink
}

// NewBus creates a bus subscribed to sinks.
func NewBus(sinks ...Sink) *Bus {
	b := &Bus{}
	for _, s := range sinks {
		b.Subscribe(s)
	}
	return b
}

// Subscribe adds a sink and returns a function that removes it again.
func (b *Bus) Subscribe(s Sink) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, sink: s})
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers ev to every subscriber. The subscriber list is copied so
// sinks may subscribe or unsubscribe while handling an event.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]Sink, len(b.subs))
	for i, sub := range b.subs {
		subs[i] = sub.sink
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.Emit(ctx, ev)
	}
}

// LogSink logs every event at debug level.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		logger.DebugContext(ctx, "entity "+string(ev.Kind),
			"collection", ev.Collection,
			"id", ev.ID,
		)
	})
}

// Recorder keeps every event it receives. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of kind were recorded for id.
func (r *Recorder) Count(kind Kind, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && ev.ID == id {
			n++
		}
	}
	return n
}
