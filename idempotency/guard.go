package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/kv"
)

// AcquireResult is the outcome of a TryAcquire call.
type AcquireResult struct {
	Acquired        bool
	ExistingEventID string
}

// Guard is the Idempotency Guard of spec.md §4.3.
type Guard interface {
	// TryAcquire performs an atomic set-if-absent on key. When another
	// caller already holds it, ExistingEventID names the event that won.
	TryAcquire(ctx context.Context, key, eventID string) (AcquireResult, error)
	// IsProcessed reports whether a handler has already completed
	// successfully for this fingerprint.
	IsProcessed(ctx context.Context, key string) (bool, error)
	// MarkProcessed records that the fingerprint's handler has completed.
	MarkProcessed(ctx context.Context, key string) error
	// Peek reports the current acquire state of key without mutating it,
	// for the §6 /debug/idem/{key} read-only inspection endpoint.
	Peek(ctx context.Context, key string) (acquired bool, eventID string, err error)
}

func eventByIdemKey(key string) string {
	return "event_by_idem:" + key
}

func processedKey(key string) string {
	return "processed:" + key
}

// kvGuard is the production Guard, backed by the K/V store.
type kvGuard struct {
	store *kv.Store
	ttl   time.Duration
}

// New returns a Guard whose acquire and processed markers both carry ttl
// (spec.md §3: default 90 days).
func New(store *kv.Store, ttl time.Duration) Guard {
	return &kvGuard{store: store, ttl: ttl}
}

func (g *kvGuard) TryAcquire(ctx context.Context, key, eventID string) (AcquireResult, error) {
	acquired, err := g.store.SetNX(ctx, eventByIdemKey(key), eventID, g.ttl)
	if err != nil {
		return AcquireResult{}, fmt.Errorf("idempotency: try_acquire %s: %w", key, err)
	}
	if acquired {
		return AcquireResult{Acquired: true}, nil
	}

	existing, err := g.store.Get(ctx, eventByIdemKey(key))
	if err != nil {
		return AcquireResult{}, fmt.Errorf("idempotency: read existing holder %s: %w", key, err)
	}
	return AcquireResult{Acquired: false, ExistingEventID: existing}, nil
}

func (g *kvGuard) IsProcessed(ctx context.Context, key string) (bool, error) {
	_, err := g.store.Get(ctx, processedKey(key))
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency: is_processed %s: %w", key, err)
	}
	return true, nil
}

func (g *kvGuard) MarkProcessed(ctx context.Context, key string) error {
	if err := g.store.Set(ctx, processedKey(key), "1", g.ttl); err != nil {
		return fmt.Errorf("idempotency: mark_processed %s: %w", key, err)
	}
	return nil
}

func (g *kvGuard) Peek(ctx context.Context, key string) (bool, string, error) {
	existing, err := g.store.Get(ctx, eventByIdemKey(key))
	if err == kv.ErrNotFound {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("idempotency: peek %s: %w", key, err)
	}
	return true, existing, nil
}
