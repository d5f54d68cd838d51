/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/suparena/entitysession/events"
)

func TestSinkCountsEvents(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := NewSink(reg)

	s.Emit(ctx, events.Event{Kind: events.Persisted, Collection: "people", ID: "1"})
	s.Emit(ctx, events.Event{Kind: events.Persisted, Collection: "people", ID: "2"})
	s.Emit(ctx, events.Event{Kind: events.Deleted, Collection: "people", ID: "1"})

	if got := testutil.ToFloat64(s.EventsTotal.WithLabelValues("people", "persisted")); got != 2 {
		t.Fatalf("Expected 2 persisted events, got %v", got)
	}
	if got := testutil.ToFloat64(s.EventsTotal.WithLabelValues("people", "deleted")); got != 1 {
		t.Fatalf("Expected 1 deleted event, got %v", got)
	}
	if n := testutil.CollectAndCount(s.EventsTotal); n != 2 {
		t.Fatalf("Expected 2 series, got %d", n)
	}
}

func TestSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewSink(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic registering the same collector twice")
		}
	}()
	NewSink(reg)
}
