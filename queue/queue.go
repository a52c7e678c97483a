package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/kv"
	"github.com/flowgate/flowgate/types"
)

const (
	keyReady      = "queue:ready"
	keyProcessing = "queue:processing"
	keyDelayed    = "queue:delayed"
	keyFailed     = "queue:failed"
	keyInflight   = "queue:inflight"
)

// Queue is the FIFO Queue of spec.md §4.4, with job identity enforced
// against keyInflight so a fingerprint can have at most one non-terminal
// job at a time.
type Queue struct {
	ops    *kv.QueueOps
	policy types.RetryPolicy
}

// New returns a Queue applying policy to every enqueued job.
func New(store *kv.Store, policy types.RetryPolicy) *Queue {
	return &Queue{ops: store.Queue(), policy: policy}
}

func encode(job types.Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: encode job %s: %w", job.JobID, err)
	}
	return string(data), nil
}

func decode(data string) (types.Job, error) {
	var job types.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return types.Job{}, fmt.Errorf("queue: decode job: %w", err)
	}
	return job, nil
}

// Enqueue pushes a job identified by idempotencyKey onto the ready list.
// If a job with the same id already exists in a non-terminal state, this
// is a no-op (spec.md §4.4).
func (q *Queue) Enqueue(ctx context.Context, eventID, idempotencyKey string) error {
	added, err := q.ops.SAdd(ctx, keyInflight, idempotencyKey)
	if err != nil {
		return fmt.Errorf("queue: track inflight %s: %w", idempotencyKey, err)
	}
	if !added {
		return nil
	}

	job := types.Job{
		JobID:          idempotencyKey,
		EventID:        eventID,
		IdempotencyKey: idempotencyKey,
		RetryPolicy:    q.policy,
		EnqueuedAt:     time.Now().UTC(),
	}
	data, err := encode(job)
	if err != nil {
		return err
	}
	return q.ops.Push(ctx, keyReady, data)
}

// Reserve blocks up to timeout for one ready job, moving it into the
// processing list for crash-recovery visibility. Returns kv.ErrNotFound if
// nothing became available before timeout.
func (q *Queue) Reserve(ctx context.Context, timeout time.Duration) (types.Job, error) {
	data, err := q.ops.Reserve(ctx, keyReady, keyProcessing, timeout)
	if err != nil {
		return types.Job{}, err
	}
	job, err := decode(data)
	if err != nil {
		return types.Job{}, err
	}
	job.RetryPolicy = q.policy
	return job, nil
}

func (q *Queue) removeFromProcessing(ctx context.Context, job types.Job) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	return q.ops.Remove(ctx, keyProcessing, data, 1)
}

// Ack removes a job that reached a terminal success/ignored state.
func (q *Queue) Ack(ctx context.Context, job types.Job) error {
	if err := q.removeFromProcessing(ctx, job); err != nil {
		return err
	}
	return q.ops.SRem(ctx, keyInflight, job.IdempotencyKey)
}

// Retry reschedules job after the backoff interval for attempt, or moves
// it to the failure sink if attempt exceeds the retry policy's max.
func (q *Queue) Retry(ctx context.Context, job types.Job, attempt int, now time.Time) error {
	if err := q.removeFromProcessing(ctx, job); err != nil {
		return err
	}
	if attempt > q.policy.MaxRetries {
		return q.Fail(ctx, job)
	}

	job.NotBefore = now.Add(q.policy.IntervalFor(attempt))
	data, err := encode(job)
	if err != nil {
		return err
	}
	return q.ops.ScheduleAt(ctx, keyDelayed, data, job.NotBefore)
}

// Fail moves a job to the failure sink and clears its inflight tracking,
// making the fingerprint available for a brand new event.
func (q *Queue) Fail(ctx context.Context, job types.Job) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	if err := q.ops.Push(ctx, keyFailed, data); err != nil {
		return err
	}
	return q.ops.SRem(ctx, keyInflight, job.IdempotencyKey)
}

// PromoteDue moves delayed jobs whose backoff has elapsed back onto the
// ready list. Workers call this on a short interval between Reserve calls.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time, limit int64) (int, error) {
	due, err := q.ops.DueMembers(ctx, keyDelayed, now, limit)
	if err != nil {
		return 0, err
	}
	for _, member := range due {
		if err := q.ops.Push(ctx, keyReady, member); err != nil {
			return 0, err
		}
		if err := q.ops.RemoveScheduled(ctx, keyDelayed, member); err != nil {
			return 0, err
		}
	}
	return len(due), nil
}

// Depth reports the queued, processing, and failed-sink counts for the
// debug status endpoint (spec.md §6).
type Depth struct {
	Ready      int64
	Processing int64
	Delayed    int64
	Failed     int64
}

// Depths returns the current depth of each queue namespace list/set.
func (q *Queue) Depths(ctx context.Context) (Depth, error) {
	ready, err := q.ops.Len(ctx, keyReady)
	if err != nil {
		return Depth{}, err
	}
	processing, err := q.ops.Len(ctx, keyProcessing)
	if err != nil {
		return Depth{}, err
	}
	failed, err := q.ops.Len(ctx, keyFailed)
	if err != nil {
		return Depth{}, err
	}
	due, err := q.ops.DueMembers(ctx, keyDelayed, time.Now().Add(100*365*24*time.Hour), 1<<31-1)
	if err != nil {
		return Depth{}, err
	}
	return Depth{Ready: ready, Processing: processing, Delayed: int64(len(due)), Failed: failed}, nil
}
