package pipeline

import (
	"context"
	"errors"
	"fmt"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/chrono"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/pricing"
	"pricewatch-backend/internal/scrapers/catalog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_runner_run = "runner.run"

const (
	result_succeeded = "succeeded"
	result_failed    = "failed"
	result_rejected  = "rejected"
)

var tracer = otel.Tracer("pricewatch.internal.pipeline")

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

type Walker interface {
	Walk(ctx context.Context) ([]catalog.ScrapedItem, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, items []catalog.ScrapedItem) ([]pricing.ChangeEvent, error)
}

type RunResult struct {
	ID       string
	Items    int
	Events   []pricing.ChangeEvent
	Started  time.Time
	Finished time.Time
}

type Options struct {
	// RunTimeout bounds a whole run, zero means no deadline.
	RunTimeout time.Duration
}

// Runner executes scrape -> reconcile -> notify runs. At most one run is active at any
// time, requests made while a run is active are rejected with ErrRunInProgress.
type Runner struct {
	walker     Walker
	reconciler Reconciler
	hub        pricing.Broadcaster
	time       chrono.TimeAPI
	metrics    *telemetry.Metrics
	tel        telemetry.API
	opts       Options

	running atomic.Bool
	wg      sync.WaitGroup

	closing context.Context
	stop    context.CancelFunc
}

func NewRunner(
	walker Walker,
	reconciler Reconciler,
	hub pricing.Broadcaster,
	timeApi chrono.TimeAPI,
	metrics *telemetry.Metrics,
	tel telemetry.API,
	opts Options,
) *Runner {
	assert.NotNil(walker)
	assert.NotNil(reconciler)
	assert.NotNil(hub)
	assert.NotNil(timeApi)
	assert.NotNil(metrics)
	assert.NotNil(tel)

	closing, stop := context.WithCancel(context.Background())
	return &Runner{
		walker:     walker,
		reconciler: reconciler,
		hub:        hub,
		time:       timeApi,
		metrics:    metrics,
		tel:        telemetry.NewScopedAPI("pipeline", tel),
		opts:       opts,
		closing:    closing,
		stop:       stop,
	}
}

func (r *Runner) acquire() bool {
	if r.running.CompareAndSwap(false, true) {
		return true
	}
	r.metrics.PipelineRuns.WithLabelValues(result_rejected).Inc()
	return false
}

func (r *Runner) release() {
	r.running.Store(false)
}

// Running reports whether a run is currently active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run executes one run synchronously.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	if !r.acquire() {
		return RunResult{}, ErrRunInProgress
	}
	defer r.release()
	return r.run(ctx, uuid.NewString())
}

// Trigger starts one run in the background and returns its id. The run is detached from
// ctx cancellation and only stops at its own deadline or when the runner is closed.
func (r *Runner) Trigger(ctx context.Context) (string, error) {
	if !r.acquire() {
		r.tel.ReportDebug("rejected trigger, run in progress")
		return "", ErrRunInProgress
	}
	if r.closing.Err() != nil {
		r.release()
		return "", fmt.Errorf("runner is closed")
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnClose := context.AfterFunc(r.closing, cancel)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release()
		defer cancel()
		defer stopOnClose()

		// failures are reported by run itself
		_, _ = r.run(runCtx, id)
	}()
	return id, nil
}

// Wait blocks until the background run started by Trigger (if any) finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels a background run in flight and waits for it to return.
func (r *Runner) Close() {
	r.stop()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id string) (RunResult, error) {
	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.run_id", id))

	result := RunResult{ID: id, Started: r.time.Now()}
	r.tel.ReportDebug("run started", id)

	fail := func(err error) (RunResult, error) {
		result.Finished = r.time.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline run failed")
		r.metrics.PipelineRuns.WithLabelValues(result_failed).Inc()
		r.metrics.PipelineRunSeconds.Observe(result.Finished.Sub(result.Started).Seconds())
		r.tel.ReportBroken(report_runner_run, err, id)
		return result, err
	}

	items, err := r.walker.Walk(ctx)
	if err != nil {
		return fail(fmt.Errorf("walk catalog: %w", err))
	}
	result.Items = len(items)
	r.metrics.ScrapedItems.Add(float64(len(items)))
	span.SetAttributes(attribute.Int("pipeline.items", len(items)))

	events, err := r.reconciler.Reconcile(ctx, items)
	if err != nil {
		return fail(fmt.Errorf("reconcile: %w", err))
	}
	result.Events = events

	// the changes are committed at this point, the run deadline must not cut
	// delivery short and prune healthy subscribers.
	pricing.Announce(context.WithoutCancel(ctx), r.hub, r.metrics, events)

	result.Finished = r.time.Now()
	r.metrics.PipelineRuns.WithLabelValues(result_succeeded).Inc()
	r.metrics.PipelineRunSeconds.Observe(result.Finished.Sub(result.Started).Seconds())
	r.tel.ReportDebug("run finished", id, len(items), len(events))
	return result, nil
}
