package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueOps is the separately-addressed queue namespace spec.md §4.1
// requires of the K/V adapter. The higher-level queue package builds job
// identity, retry policy, and the failure sink on top of these primitives;
// this layer only knows about opaque list/zset members.
type QueueOps struct {
	store *Store
}

// Queue returns the queue-namespace view of the Store.
func (s *Store) Queue() *QueueOps {
	return &QueueOps{store: s}
}

// Push adds member at the head (left end) of a list; Reserve takes from
// the tail, so the list is consumed in FIFO order.
func (q *QueueOps) Push(ctx context.Context, list string, member string) error {
	if err := q.store.client.LPush(ctx, list, member).Err(); err != nil {
		return fmt.Errorf("kv: lpush %s: %w", list, err)
	}
	return nil
}

// Reserve atomically moves one member from the tail of src to the head of
// dst, blocking up to timeout. A zero timeout blocks indefinitely. Returns
// ErrNotFound on timeout with nothing available.
func (q *QueueOps) Reserve(ctx context.Context, src, dst string, timeout time.Duration) (string, error) {
	val, err := q.store.client.BRPopLPush(ctx, src, dst, timeout).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: brpoplpush %s->%s: %w", src, dst, err)
	}
	return val, nil
}

// Remove deletes up to count occurrences of member from list (count=0
// removes all), used to ack a reserved job out of its in-flight list.
func (q *QueueOps) Remove(ctx context.Context, list string, member string, count int64) error {
	if err := q.store.client.LRem(ctx, list, count, member).Err(); err != nil {
		return fmt.Errorf("kv: lrem %s: %w", list, err)
	}
	return nil
}

// Len reports the current depth of a list, used by the debug status
// endpoint to report queue depth (spec.md §6).
func (q *QueueOps) Len(ctx context.Context, list string) (int64, error) {
	n, err := q.store.client.LLen(ctx, list).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: llen %s: %w", list, err)
	}
	return n, nil
}

// ScheduleAt adds member to a delayed set with due as its score, used to
// implement retry backoff without blocking a worker.
func (q *QueueOps) ScheduleAt(ctx context.Context, zset string, member string, due time.Time) error {
	err := q.store.client.ZAdd(ctx, zset, redis.Z{Score: float64(due.Unix()), Member: member}).Err()
	if err != nil {
		return fmt.Errorf("kv: zadd %s: %w", zset, err)
	}
	return nil
}

// DueMembers returns members of a delayed set whose score is <= now, for
// the retry-promoter loop to move back onto the ready list.
func (q *QueueOps) DueMembers(ctx context.Context, zset string, now time.Time, limit int64) ([]string, error) {
	res, err := q.store.client.ZRangeByScore(ctx, zset, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.Unix()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: zrangebyscore %s: %w", zset, err)
	}
	return res, nil
}

// RemoveScheduled removes member from the delayed set once it has been
// promoted back to the ready list.
func (q *QueueOps) RemoveScheduled(ctx context.Context, zset string, member string) error {
	if err := q.store.client.ZRem(ctx, zset, member).Err(); err != nil {
		return fmt.Errorf("kv: zrem %s: %w", zset, err)
	}
	return nil
}

// SAdd adds member to a set, used to enforce job_id uniqueness among
// non-terminal queue entries.
func (q *QueueOps) SAdd(ctx context.Context, set string, member string) (bool, error) {
	n, err := q.store.client.SAdd(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("kv: sadd %s: %w", set, err)
	}
	return n > 0, nil
}

// SRem removes member from a set, used when a job reaches a terminal state.
func (q *QueueOps) SRem(ctx context.Context, set string, member string) error {
	if err := q.store.client.SRem(ctx, set, member).Err(); err != nil {
		return fmt.Errorf("kv: srem %s: %w", set, err)
	}
	return nil
}

// SIsMember reports whether member is currently tracked as non-terminal.
func (q *QueueOps) SIsMember(ctx context.Context, set string, member string) (bool, error) {
	ok, err := q.store.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("kv: sismember %s: %w", set, err)
	}
	return ok, nil
}
