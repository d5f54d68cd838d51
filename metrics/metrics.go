/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/suparena/entitysession/events"
)

// Sink is an events.Sink that counts persist and delete events per collection.
type Sink struct {
	// EventsTotal counts events by collection and kind.
	EventsTotal *prometheus.CounterVec
}

// NewSink registers the counters with reg and returns the sink.
// A nil reg uses prometheus.DefaultRegisterer.
func NewSink(reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Sink{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitysession",
				Name:      "events_total",
				Help:      "Total number of entity events by collection and kind",
			},
			[]string{"collection", "kind"},
		),
	}
}

func (s *Sink) Emit(_ context.Context, ev events.Event) {
	s.EventsTotal.WithLabelValues(ev.Collection, string(ev.Kind)).Inc()
}

var _ events.Sink = (*Sink)(nil)
