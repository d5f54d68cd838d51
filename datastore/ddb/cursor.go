/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/entitysession/datastore"
)

// pageCursor walks the pages of a Query lazily, fetching the next page when
// the current one is exhausted.
type pageCursor[V any] struct {
	driver *Driver
	input  *sdk.QueryInput
	decode func(map[string]types.AttributeValue) (V, error)
	limit  int

	page    []map[string]types.AttributeValue
	pos     int
	fetched bool
	lastKey map[string]types.AttributeValue
	yielded int
	cur     V
	err     error
	closed  bool
}

func newPageCursor[V any](d *Driver, input *sdk.QueryInput, limit int, decode func(map[string]types.AttributeValue) (V, error)) *pageCursor[V] {
	return &pageCursor[V]{driver: d, input: input, limit: limit, decode: decode}
}

func (c *pageCursor[V]) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.limit > 0 && c.yielded >= c.limit {
		return false
	}
	for c.pos >= len(c.page) {
		if c.fetched && len(c.lastKey) == 0 {
			return false
		}
		if !c.fetch(ctx) {
			return false
		}
	}

	v, err := c.decode(c.page[c.pos])
	c.pos++
	if err != nil {
		c.err = err
		return false
	}
	c.cur = v
	c.yielded++
	return true
}

func (c *pageCursor[V]) fetch(ctx context.Context) bool {
	input := *c.input
	input.ExclusiveStartKey = c.lastKey
	out, err := withRetry(ctx, c.driver.opts, func() (*sdk.QueryOutput, error) {
		return c.driver.api.Query(ctx, &input)
	})
	if err != nil {
		c.err = fmt.Errorf("query error: %w", err)
		return false
	}
	c.fetched = true
	c.page = out.Items
	c.pos = 0
	c.lastKey = out.LastEvaluatedKey
	return true
}

func (c *pageCursor[V]) Value() V   { return c.cur }
func (c *pageCursor[V]) Err() error { return c.err }

func (c *pageCursor[V]) Close() error {
	c.closed = true
	c.page = nil
	return nil
}

// chainCursor yields the values of its parts in turn, at most limit overall.
type chainCursor[V any] struct {
	parts   []datastore.Cursor[V]
	limit   int
	yielded int
	cur     V
	err     error
}

func (c *chainCursor[V]) Next(ctx context.Context) bool {
	for c.err == nil && len(c.parts) > 0 {
		if c.limit > 0 && c.yielded >= c.limit {
			return false
		}
		part := c.parts[0]
		if part.Next(ctx) {
			c.cur = part.Value()
			c.yielded++
			return true
		}
		if err := part.Err(); err != nil {
			c.err = err
			return false
		}
		_ = part.Close()
		c.parts = c.parts[1:]
	}
	return false
}

func (c *chainCursor[V]) Value() V   { return c.cur }
func (c *chainCursor[V]) Err() error { return c.err }

func (c *chainCursor[V]) Close() error {
	for _, part := range c.parts {
		_ = part.Close()
	}
	c.parts = nil
	return nil
}

// withRetry runs call, retrying retryable errors with linear backoff.
func withRetry[O any](ctx context.Context, opts Options, call func() (O, error)) (O, error) {
	var (
		zero    O
		lastErr error
	)
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return zero, err
		}

		// Don't sleep after last attempt
		if attempt < opts.MaxRetries {
			if err := backoff(ctx, opts, attempt); err != nil {
				return zero, err
			}
		}
	}
	return zero, fmt.Errorf("failed after %d retries: %w", opts.MaxRetries, lastErr)
}

func backoff(ctx context.Context, opts Options, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt+1) * opts.RetryBackoff):
		return nil
	}
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if stderrors.As(err, &throughput) || stderrors.As(err, &limit) || stderrors.As(err, &internal) {
		return true
	}

	// Check for AWS SDK retryable errors
	var awsErr interface{ IsRetryable() bool }
	if stderrors.As(err, &awsErr) {
		return awsErr.IsRetryable()
	}
	return false
}
