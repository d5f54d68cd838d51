/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitysession

import (
	"context"
	"sync"
)

type writeContextKey struct{}

// WriteContext is the ordered set of entities already being written by one
// persist call tree. Entities are keyed by collection alias and id.
type WriteContext struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func newWriteContext() *WriteContext {
	return &WriteContext{seen: make(map[string]struct{})}
}

// WithWriteContext returns a ctx carrying a fresh write context. Persist
// calls made with it share one dedup scope instead of each starting its own.
func WithWriteContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, writeContextKey{}, newWriteContext())
}

// WriteContextFrom returns the write context carried by ctx.
func WriteContextFrom(ctx context.Context) (*WriteContext, bool) {
	wc, ok := ctx.Value(writeContextKey{}).(*WriteContext)
	return wc, ok
}

func writeKey(alias, id string) string { return alias + "/" + id }

// add records key and reports whether it was new.
func (w *WriteContext) add(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	w.order = append(w.order, key)
	return true
}

// Contains reports whether the entity id of collection alias was visited.
func (w *WriteContext) Contains(alias, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[writeKey(alias, id)]
	return ok
}

// Visited returns the visited "alias/id" keys in visiting order.
func (w *WriteContext) Visited() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

func (w *WriteContext) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.order = nil
	w.seen = make(map[string]struct{})
}
