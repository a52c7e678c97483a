package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowgate/flowgate/eventstore"
	"github.com/flowgate/flowgate/handlers"
	"github.com/flowgate/flowgate/idempotency"
	"github.com/flowgate/flowgate/internal/ctxkeys"
	"github.com/flowgate/flowgate/queue"
	"github.com/flowgate/flowgate/types"
)

// Metrics is the subset of internal/metrics.Collector the Runner reports
// job outcomes and queue depths to. Optional: a nil Metrics disables
// reporting without disabling the Runner.
type Metrics interface {
	RecordJobOutcome(source, eventType, kind string, duration time.Duration)
	RecordRetryExhausted(source, eventType string)
	SetQueueDepths(ready, processing, delayed, failed int64)
}

// Notifier is a best-effort alerting sink: a single `notify(title, body,
// severity)` operation (spec.md §4.12). It must never return an error the
// caller is expected to act on; Run always swallows what it returns
// (spec.md §4.12, §7: "the Notifier never raises").
type Notifier interface {
	Notify(ctx context.Context, title, body, severity string) error
}

// Dispatcher resolves an Event to its Handler and invokes it. handlers.Set
// satisfies this directly; tests substitute a fake.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *types.Event) (types.Outcome, bool)
}

// Config bounds the Runner's worker pool and polling cadence.
type Config struct {
	Workers         int
	ReserveTimeout  time.Duration
	PromoteInterval time.Duration
	PromoteBatch    int64
}

// Runner is the Job Runner of spec.md §4.8.
type Runner struct {
	events     *eventstore.Store
	guard      idempotency.Guard
	queue      *queue.Queue
	dispatcher Dispatcher
	notifier   Notifier
	metrics    Metrics
	cfg        Config
	logger     *zap.Logger
}

// New returns a Runner. notifier and metrics may both be nil; nil notifier
// means terminal failures are logged but never alerted, nil metrics means
// job outcomes and queue depths are not reported.
func New(events *eventstore.Store, guard idempotency.Guard, q *queue.Queue, dispatcher Dispatcher, notifier Notifier, metrics Metrics, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ReserveTimeout <= 0 {
		cfg.ReserveTimeout = 5 * time.Second
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = time.Second
	}
	if cfg.PromoteBatch <= 0 {
		cfg.PromoteBatch = 100
	}
	return &Runner{
		events:     events,
		guard:      guard,
		queue:      q,
		dispatcher: dispatcher,
		notifier:   notifier,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, driving cfg.Workers dedicated goroutines each looping on
// Queue.Reserve, plus one goroutine promoting due delayed jobs, until ctx
// is canceled. One OS-thread-blocking-on-I/O goroutine per in-flight job,
// per the §9 design note on explicit worker scheduling.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.promoteLoop(gctx)
	})

	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			return r.workerLoop(gctx)
		})
	}

	return g.Wait()
}

func (r *Runner) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.queue.PromoteDue(ctx, time.Now().UTC(), r.cfg.PromoteBatch); err != nil {
				r.logger.Warn("promote due jobs failed", zap.Error(err))
			}
			r.reportQueueDepths(ctx)
		}
	}
}

func (r *Runner) reportQueueDepths(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	depths, err := r.queue.Depths(ctx)
	if err != nil {
		r.logger.Warn("queue depths failed", zap.Error(err))
		return
	}
	r.metrics.SetQueueDepths(depths.Ready, depths.Processing, depths.Delayed, depths.Failed)
}

func (r *Runner) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := r.queue.Reserve(ctx, r.cfg.ReserveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		r.processJob(ctx, job)
	}
}

// processJob runs the 9-step flow of spec.md §4.8.
func (r *Runner) processJob(ctx context.Context, job types.Job) {
	start := time.Now()
	logger := r.logger.With(zap.String("job_id", job.JobID), zap.String("event_id", job.EventID))
	ctx = ctxkeys.WithEventID(ctx, job.EventID)

	ev, err := r.events.Load(ctx, job.EventID)
	if err == eventstore.ErrNotFound {
		logger.Info("event expired before processing, dropping job")
		if ackErr := r.queue.Ack(ctx, job); ackErr != nil {
			logger.Error("ack expired job failed", zap.Error(ackErr))
		}
		return
	}
	if err != nil {
		logger.Error("load event failed", zap.Error(err))
		return
	}

	processed, err := r.guard.IsProcessed(ctx, ev.IdempotencyKey)
	if err != nil {
		logger.Error("is_processed check failed", zap.Error(err))
		return
	}
	if processed {
		logger.Info("fingerprint already processed, acking without dispatch")
		if ackErr := r.queue.Ack(ctx, job); ackErr != nil {
			logger.Error("ack already-processed job failed", zap.Error(ackErr))
		}
		return
	}

	ctx = ctxkeys.WithIdempotencyKey(ctx, ev.IdempotencyKey)
	ctx = ctxkeys.WithSource(ctx, string(ev.Source))
	ctx = ctxkeys.WithEventType(ctx, ev.EventType)

	attempt := ev.Attempts + 1
	if err := r.events.SetStatus(ctx, ev.EventID, types.StatusProcessing, attempt, ""); err != nil {
		logger.Error("set_status processing failed", zap.Error(err))
		return
	}
	ev.Attempts = attempt

	outcome, found := r.dispatcher.Dispatch(ctx, ev)
	if !found {
		outcome = types.PermanentError(types.Permanent(types.ErrInvalidRequest, "", "no handler registered for "+string(ev.Source)+":"+ev.EventType, nil))
	}

	if r.metrics != nil {
		r.metrics.RecordJobOutcome(string(ev.Source), ev.EventType, string(outcome.Kind), time.Since(start))
	}

	switch outcome.Kind {
	case types.OutcomeSuccess, types.OutcomeIgnored:
		r.finishTerminal(ctx, ev, job, types.StatusProcessed, outcome, logger)
		if outcome.Kind == types.OutcomeIgnored {
			if err := r.events.SetStatus(ctx, ev.EventID, types.StatusIgnored, -1, outcome.Reason); err != nil {
				logger.Error("set_status ignored failed", zap.Error(err))
			}
		}

	case types.OutcomeTransient:
		r.retryOrExhaust(ctx, ev, job, attempt, outcome, logger)

	case types.OutcomePermanent:
		if err := r.events.SetStatus(ctx, ev.EventID, types.StatusFailed, -1, outcome.Message()); err != nil {
			logger.Error("set_status failed failed", zap.Error(err))
		}
		if err := r.queue.Fail(ctx, job); err != nil {
			logger.Error("queue fail failed", zap.Error(err))
		}
		r.notify(ctx, "Webhook job failed", fmt.Sprintf("event_id: %s\npermanent_error: %s", ev.EventID, outcome.Message()), "critical", logger)
	}
}

// finishTerminal marks the fingerprint processed and acks the job. Used
// for both Success and Ignored: both leave no work behind for a replay to
// redo (spec.md §4.8).
func (r *Runner) finishTerminal(ctx context.Context, ev *types.Event, job types.Job, status types.Status, outcome types.Outcome, logger *zap.Logger) {
	if err := r.guard.MarkProcessed(ctx, ev.IdempotencyKey); err != nil {
		logger.Error("mark_processed failed", zap.Error(err))
	}
	if err := r.events.SetStatus(ctx, ev.EventID, status, -1, ""); err != nil {
		logger.Error("set_status terminal failed", zap.Error(err))
	}
	if err := r.queue.Ack(ctx, job); err != nil {
		logger.Error("ack failed", zap.Error(err))
	}
}

// retryOrExhaust computes whether this attempt exhausts the retry policy
// itself, so it can fire the Notifier on the attempt that finally gives
// up without requiring Queue.Retry to report that back (see DESIGN.md).
func (r *Runner) retryOrExhaust(ctx context.Context, ev *types.Event, job types.Job, attempt int, outcome types.Outcome, logger *zap.Logger) {
	exhausted := attempt > job.RetryPolicy.MaxRetries

	if err := r.events.SetStatus(ctx, ev.EventID, types.StatusQueued, attempt, outcome.Message()); err != nil {
		logger.Error("set_status retry failed", zap.Error(err))
	}
	if err := r.queue.Retry(ctx, job, attempt, time.Now().UTC()); err != nil {
		logger.Error("queue retry failed", zap.Error(err))
	}

	if exhausted {
		if err := r.events.SetStatus(ctx, ev.EventID, types.StatusFailed, attempt, outcome.Message()); err != nil {
			logger.Error("set_status exhausted failed", zap.Error(err))
		}
		if r.metrics != nil {
			r.metrics.RecordRetryExhausted(string(ev.Source), ev.EventType)
		}
		r.notify(ctx, "Webhook job failed", fmt.Sprintf("event_id: %s\nretries exhausted: %s", ev.EventID, outcome.Message()), "critical", logger)
	}
}

func (r *Runner) notify(ctx context.Context, title, body, severity string, logger *zap.Logger) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, title, body, severity); err != nil {
		logger.Warn("notifier failed", zap.Error(err))
	}
}
