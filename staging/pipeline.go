package staging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/eventstore"
	"github.com/flowgate/flowgate/idempotency"
	"github.com/flowgate/flowgate/queue"
	"github.com/flowgate/flowgate/types"
)

// Result is the outcome of a Pipeline.Stage call, shaped directly from
// the response envelopes of spec.md §6.
type Result struct {
	Duplicate      bool
	EventID        string
	IdempotencyKey string
}

// Pipeline implements the Staging Pipeline of spec.md §4.7.
type Pipeline struct {
	events *eventstore.Store
	guard  idempotency.Guard
	queue  *queue.Queue
	logger *zap.Logger
}

// New returns a Pipeline wired to the given Event Store, Idempotency
// Guard, and Queue.
func New(events *eventstore.Store, guard idempotency.Guard, q *queue.Queue, logger *zap.Logger) *Pipeline {
	return &Pipeline{events: events, guard: guard, queue: q, logger: logger}
}

// Stage runs the store -> acquire -> enqueue flow for one accepted
// webhook. Any error here means nothing outside the K/V store has
// happened and the caller should return HTTP 5xx so the upstream retries.
func (p *Pipeline) Stage(ctx context.Context, source types.Source, eventType, externalID string, payload []byte, idempotencyKey string) (Result, error) {
	ev, err := p.events.StoreEvent(ctx, source, eventType, externalID, payload, idempotencyKey)
	if err != nil {
		return Result{}, fmt.Errorf("staging: store event: %w", err)
	}

	acquire, err := p.guard.TryAcquire(ctx, idempotencyKey, ev.EventID)
	if err != nil {
		return Result{}, fmt.Errorf("staging: try_acquire %s: %w", idempotencyKey, err)
	}

	if !acquire.Acquired {
		if delErr := p.events.Delete(ctx, ev.EventID); delErr != nil {
			p.logger.Warn("staging: failed to discard losing event, leaving for TTL",
				zap.String("event_id", ev.EventID), zap.Error(delErr))
		}
		return Result{Duplicate: true, EventID: acquire.ExistingEventID}, nil
	}

	if err := p.queue.Enqueue(ctx, ev.EventID, idempotencyKey); err != nil {
		return Result{}, fmt.Errorf("staging: enqueue %s: %w", idempotencyKey, err)
	}

	return Result{EventID: ev.EventID, IdempotencyKey: idempotencyKey}, nil
}
