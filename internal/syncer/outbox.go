package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("syncer")

// RetryPolicy decides how often a failed write is attempted.
type RetryPolicy interface {
	Do(ctx context.Context, fn func() error) error
}

// Once attempts every write exactly once.
type Once struct{}

// Do runs fn once.
func (Once) Do(_ context.Context, fn func() error) error { return fn() }

// Backoff retries failed writes with exponential backoff and jitter.
type Backoff struct {
	Config resilience.Config
}

// Do runs fn until it succeeds or the retries are exhausted.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	return resilience.RetryWithBackoff(ctx, b.Config, fn)
}

// PolicyFor returns Once when maxRetries is 0, Backoff otherwise.
func PolicyFor(maxRetries int, initialBackoff time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		return Once{}
	}
	return Backoff{Config: resilience.Config{MaxRetries: maxRetries, InitialBackoff: initialBackoff}}
}

// Outbox applies batches in the background. Failures are logged and counted,
// never returned and never rolled back locally. Batches from different
// dispatches run concurrently (bounded by the bulkhead) with no ordering
// between them; mutations within one batch are sequential.
type Outbox struct {
	writer   port.Writer
	retry    RetryPolicy
	bulkhead *resilience.Bulkhead
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewOutbox creates an outbox writing through w.
func NewOutbox(w port.Writer, retry RetryPolicy, maxConcurrency int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Outbox {
	if retry == nil {
		retry = Once{}
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Outbox{
		writer:   w,
		retry:    retry,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Enqueue schedules b and returns immediately. The write outlives ctx's
// cancellation but keeps its values (trace context).
func (o *Outbox) Enqueue(ctx context.Context, b Batch) {
	if b.Empty() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.bulkhead.Acquire(ctx); err != nil {
			return
		}
		defer o.bulkhead.Release()
		o.apply(ctx, b)
	}()
}

// Flush waits until every enqueued batch has finished or ctx is done.
func (o *Outbox) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) apply(ctx context.Context, b Batch) {
	ctx, span := tracer.Start(ctx, "Outbox.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("action", string(b.Action)),
		attribute.Int("mutations", len(b.Mutations)),
	)

	var err error
	if tx, ok := o.writer.(port.Transactor); ok && len(b.Mutations) > 1 {
		err = o.applyAtomic(ctx, tx, b)
	} else {
		err = o.applySequential(ctx, b)
	}

	if err != nil {
		span.RecordError(err)
		o.metrics.IncrSyncBatch(string(b.Action), "failed")
		o.logger.Error("sync: remote write failed",
			zap.String("action", string(b.Action)),
			zap.String("user_id", b.UserID),
			zap.Error(err),
		)
		return
	}
	o.metrics.IncrSyncBatch(string(b.Action), "ok")
	o.logger.Debug("sync: batch applied",
		zap.String("action", string(b.Action)),
		zap.Int("mutations", len(b.Mutations)),
	)
}

// applySequential stops at the first failed mutation, so children are never
// written for a parent that failed.
func (o *Outbox) applySequential(ctx context.Context, b Batch) error {
	for _, m := range b.Mutations {
		m := m
		start := time.Now()
		err := o.retry.Do(ctx, func() error {
			mctx, cancel := o.withTimeout(ctx)
			defer cancel()
			return o.writer.Execute(mctx, m)
		})
		o.metrics.RecordSyncMutation(m.Table, string(m.Op), time.Since(start), err != nil)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Outbox) applyAtomic(ctx context.Context, tx port.Transactor, b Batch) error {
	start := time.Now()
	err := o.retry.Do(ctx, func() error {
		mctx, cancel := o.withTimeout(ctx)
		defer cancel()
		return tx.ExecuteAtomic(mctx, b.Mutations)
	})
	elapsed := time.Since(start)
	for _, m := range b.Mutations {
		o.metrics.RecordSyncMutation(m.Table, string(m.Op), elapsed, err != nil)
	}
	return err
}

func (o *Outbox) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
