package main

import (
	"context"

	"github.com/flowgate/flowgate/eventstore"
	"github.com/flowgate/flowgate/idempotency"
	"github.com/flowgate/flowgate/ingress"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/types"
)

// debugSource implements ingress.DebugSource over the Event Store,
// Idempotency Guard, and the queue-depth gauges already reported through
// the metrics registry (see internal/metrics.Collector.QueueDepth).
type debugSource struct {
	events  *eventstore.Store
	guard   idempotency.Guard
	metrics *metrics.Collector
}

func newDebugSource(events *eventstore.Store, guard idempotency.Guard, collector *metrics.Collector) *debugSource {
	return &debugSource{events: events, guard: guard, metrics: collector}
}

func (d *debugSource) LoadEvent(eventID string) (*types.Event, bool, error) {
	ev, err := d.events.Load(context.Background(), eventID)
	if err == eventstore.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (d *debugSource) IdemState(key string) (acquired bool, processed bool, eventID string, err error) {
	ctx := context.Background()
	acquired, eventID, err = d.guard.Peek(ctx, key)
	if err != nil {
		return false, false, "", err
	}
	processed, err = d.guard.IsProcessed(ctx, key)
	if err != nil {
		return false, false, "", err
	}
	return acquired, processed, eventID, nil
}

func (d *debugSource) Status() (ingress.QueueStatus, error) {
	return ingress.QueueStatus{
		Queued:  d.metrics.QueueDepth("ready") + d.metrics.QueueDepth("delayed"),
		Started: d.metrics.QueueDepth("processing"),
		Failed:  d.metrics.QueueDepth("failed"),
	}, nil
}
