package eventstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/kv"
	"github.com/flowgate/flowgate/types"
)

const timeLayout = time.RFC3339Nano

func eventKey(eventID string) string {
	return "event:" + eventID
}

// Store is the Event Store of spec.md §4.2, backed by the K/V adapter's
// hash operations.
type Store struct {
	kv  *kv.Store
	ttl time.Duration
}

// New returns an Event Store applying ttl to every written event record.
func New(store *kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

// StoreEvent generates a fresh event_id and writes the record with
// status=queued, attempts=0 (spec.md §4.2). event_id is never reused.
func (s *Store) StoreEvent(ctx context.Context, source types.Source, eventType, externalID string, payload []byte, idempotencyKey string) (*types.Event, error) {
	now := time.Now().UTC()
	ev := &types.Event{
		EventID:        uuid.NewString(),
		Source:         source,
		EventType:      eventType,
		ExternalID:     externalID,
		IdempotencyKey: idempotencyKey,
		Status:         types.StatusQueued,
		Attempts:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
		Payload:        payload,
	}

	if err := s.write(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Store) write(ctx context.Context, ev *types.Event) error {
	key := eventKey(ev.EventID)
	fields := map[string]any{
		"event_id":        ev.EventID,
		"source":          string(ev.Source),
		"event_type":      ev.EventType,
		"external_id":     ev.ExternalID,
		"idempotency_key": ev.IdempotencyKey,
		"status":          string(ev.Status),
		"attempts":        strconv.Itoa(ev.Attempts),
		"last_error":      ev.LastError,
		"created_at":      ev.CreatedAt.Format(timeLayout),
		"updated_at":      ev.UpdatedAt.Format(timeLayout),
		"payload":         string(ev.Payload),
	}
	if err := s.kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("eventstore: write %s: %w", ev.EventID, err)
	}
	if s.ttl > 0 {
		if err := s.kv.SetTTL(ctx, key, s.ttl); err != nil {
			return fmt.Errorf("eventstore: apply ttl %s: %w", ev.EventID, err)
		}
	}
	return nil
}

// ErrNotFound is returned by Load when the event has expired or never
// existed.
var ErrNotFound = kv.ErrNotFound

// Load reads the Event record for event_id.
func (s *Store) Load(ctx context.Context, eventID string) (*types.Event, error) {
	fields, err := s.kv.HGetAll(ctx, eventKey(eventID))
	if err != nil {
		return nil, err
	}
	return parseEvent(fields)
}

// SetStatus applies a single-key update, preserving every other field
// (spec.md §4.2). attempts and lastError are optional; pass -1 and "" to
// leave attempts unchanged.
func (s *Store) SetStatus(ctx context.Context, eventID string, status types.Status, attempts int, lastError string) error {
	key := eventKey(eventID)
	fields := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(timeLayout),
	}
	if attempts >= 0 {
		fields["attempts"] = strconv.Itoa(attempts)
	}
	if lastError != "" {
		fields["last_error"] = lastError
	}
	if err := s.kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("eventstore: set_status %s: %w", eventID, err)
	}
	if s.ttl > 0 {
		if err := s.kv.SetTTL(ctx, key, s.ttl); err != nil {
			return fmt.Errorf("eventstore: reapply ttl %s: %w", eventID, err)
		}
	}
	return nil
}

// Delete removes an event outright, used by the Staging Pipeline when it
// loses the idempotency race and discards the event it just created
// (spec.md §4.7 step 3).
func (s *Store) Delete(ctx context.Context, eventID string) error {
	return s.kv.Del(ctx, eventKey(eventID))
}

func parseEvent(fields map[string]string) (*types.Event, error) {
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("eventstore: parse attempts: %w", err)
	}
	createdAt, err := time.Parse(timeLayout, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("eventstore: parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("eventstore: parse updated_at: %w", err)
	}
	return &types.Event{
		EventID:        fields["event_id"],
		Source:         types.Source(fields["source"]),
		EventType:      fields["event_type"],
		ExternalID:     fields["external_id"],
		IdempotencyKey: fields["idempotency_key"],
		Status:         types.Status(fields["status"]),
		Attempts:       attempts,
		LastError:      fields["last_error"],
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		Payload:        []byte(fields["payload"]),
	}, nil
}
