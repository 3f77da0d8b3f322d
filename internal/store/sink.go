package store

import (
	"context"

	"github.com/soclens/soclens/internal/metrics"
	"github.com/soclens/soclens/internal/model"
)

// EventSink adapts the store to the poll pipeline so every accepted alert
// batch is mirrored to Postgres alongside the live fan-out.
type EventSink struct {
	store *PostgresStore
}

// NewEventSink wraps a store for use as a pipeline sink.
func NewEventSink(s *PostgresStore) *EventSink {
	return &EventSink{store: s}
}

// Deliver mirrors the delta. Non-event entities are ignored so the sink can
// only be attached to the alert stream by construction.
func (s *EventSink) Deliver(ctx context.Context, stream string, delta []model.Entity) error {
	events := make([]model.NormalizedEvent, 0, len(delta))
	for _, entity := range delta {
		if e, ok := entity.(model.NormalizedEvent); ok {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return nil
	}
	if err := s.store.InsertEvents(ctx, events); err != nil {
		metrics.StoreErrors.Inc()
		return err
	}
	metrics.StoreInserts.Add(float64(len(events)))
	return nil
}
