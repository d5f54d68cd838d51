/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"time"

	"github.com/suparena/entitysession/storagemodels"
)

// SliceCursor iterates over an in-memory slice.
type SliceCursor[V any] struct {
	items []V
	pos   int
	cur   V
	err   error
}

// NewSliceCursor returns a cursor over items.
func NewSliceCursor[V any](items []V) *SliceCursor[V] {
	return &SliceCursor[V]{items: items}
}

func (c *SliceCursor[V]) Next(ctx context.Context) bool {
	if c.err != nil || c.pos >= len(c.items) {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.cur = c.items[c.pos]
	c.pos++
	return true
}

func (c *SliceCursor[V]) Value() V   { return c.cur }
func (c *SliceCursor[V]) Err() error { return c.err }

func (c *SliceCursor[V]) Close() error {
	c.pos = len(c.items)
	return nil
}

// mapCursor converts the values of another cursor.
type mapCursor[From, To any] struct {
	src Cursor[From]
	fn  func(From) (To, error)
	cur To
	err error
}

// Map returns a cursor yielding fn applied to every value of src.
// The first conversion error stops iteration and is reported by Err.
func Map[From, To any](src Cursor[From], fn func(From) (To, error)) Cursor[To] {
	return &mapCursor[From, To]{src: src, fn: fn}
}

func (c *mapCursor[From, To]) Next(ctx context.Context) bool {
	if c.err != nil || !c.src.Next(ctx) {
		return false
	}
	v, err := c.fn(c.src.Value())
	if err != nil {
		c.err = err
		return false
	}
	c.cur = v
	return true
}

func (c *mapCursor[From, To]) Value() To { return c.cur }

func (c *mapCursor[From, To]) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.src.Err()
}

func (c *mapCursor[From, To]) Close() error { return c.src.Close() }

// Collect drains cur into a slice and closes it.
func Collect[V any](ctx context.Context, cur Cursor[V]) ([]V, error) {
	defer cur.Close()

	var out []V
	for cur.Next(ctx) {
		out = append(out, cur.Value())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stream drains cur in a background goroutine and delivers each value on the
// returned channel. A cursor error is delivered as a final result with Error set.
// The cursor is closed when the channel is closed.
func Stream[V any](ctx context.Context, cur Cursor[V], opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[V] {
	options := storagemodels.DefaultStreamOptions()
	for _, opt := range opts {
		opt(&options)
	}

	resultCh := make(chan storagemodels.StreamResult[V], options.BufferSize)
	go streamWorker(ctx, cur, options, resultCh)
	return resultCh
}

func streamWorker[V any](
	ctx context.Context,
	cur Cursor[V],
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[V],
) {
	defer close(resultCh)
	defer cur.Close()

	startTime := time.Now()
	var index int64

	reportProgress := func(err error) {
		if options.ProgressHandler == nil {
			return
		}
		progress := storagemodels.StreamProgress{
			ItemsProcessed: index,
			StartTime:      startTime,
		}
		if err != nil {
			progress.Errors = []error{err}
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(index) / elapsed
		}
		options.ProgressHandler(progress)
	}

	for cur.Next(ctx) {
		result := storagemodels.StreamResult[V]{
			Item: cur.Value(),
			Meta: storagemodels.StreamMeta{
				Index:     index,
				Timestamp: time.Now(),
			},
		}
		select {
		case <-ctx.Done():
			return
		case resultCh <- result:
		}
		index++
		if options.ProgressInterval > 0 && index%int64(options.ProgressInterval) == 0 {
			reportProgress(nil)
		}
	}

	err := cur.Err()
	if err != nil {
		select {
		case <-ctx.Done():
			return
		case resultCh <- storagemodels.StreamResult[V]{
			Error: err,
			Meta: storagemodels.StreamMeta{
				Index:     index,
				Timestamp: time.Now(),
			},
		}:
		}
	}

	// Final progress report
	reportProgress(err)
}
