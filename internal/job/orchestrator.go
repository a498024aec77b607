package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flightdeals/internal/flight"
	"flightdeals/internal/store"
	"flightdeals/pkg/cache"
	"flightdeals/pkg/flightclient"
	"flightdeals/pkg/idgen"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
	"flightdeals/pkg/queue"
)

// Orchestrator tracks fetch jobs through pending, active and a terminal status. It holds no locks: every
// piece of cross-job state lives in the status records.
type Orchestrator struct {
	records cache.Cache
	queue   Queue
	fetcher Fetcher
	sinks   SinkFactory
	ids     idgen.Generator
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  logger.Client
	now     func() time.Time
}

func NewOrchestrator(records cache.Cache, q Queue, fetcher Fetcher, sinks SinkFactory, ids idgen.Generator,
	m *metrics.Metrics, logger logger.Client) *Orchestrator {
	return &Orchestrator{
		records: records,
		queue:   q,
		fetcher: fetcher,
		sinks:   sinks,
		ids:     ids,
		metrics: m,
		tracer:  otel.Tracer("flightdeals/internal/job"),
		logger:  logger,
		now:     time.Now,
	}
}

func (o *Orchestrator) Sources() []string {
	return o.fetcher.Sources()
}

// Submit starts a fetch for source. A job already pending or active under the same key is returned as is.
func (o *Orchestrator) Submit(ctx context.Context, source string, params flight.SearchParams) (*FetchJob, error) {
	key, err := o.key(source, params)
	if err != nil {
		return nil, err
	}

	rec, err := o.Get(ctx, key)
	switch {
	case err == nil && !rec.Status.Terminal() && !rec.Cancelled:
		o.logger.Debug("fetch already in flight",
			logger.Field{Key: "job_key", Value: key},
			logger.Field{Key: "status", Value: string(rec.Status)},
		)
		return rec, nil
	case err != nil && !errors.Is(err, ErrJobNotFound):
		return nil, err
	}

	return o.enqueue(ctx, key, source, params)
}

// Status reports the job for (source, params). A search never submitted reads as pending with no job id.
func (o *Orchestrator) Status(ctx context.Context, source string, params flight.SearchParams) (*FetchJob, error) {
	key, err := o.key(source, params)
	if err != nil {
		return nil, err
	}

	rec, err := o.Get(ctx, key)
	if errors.Is(err, ErrJobNotFound) {
		return &FetchJob{Key: key, Source: source, Params: params, Status: StatusPending}, nil
	}
	return rec, err
}

// Cancel stops a pending or active job and marks it failed. Terminal jobs are returned unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, key string) (*FetchJob, error) {
	rec, err := o.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	o.dropTask(ctx, rec)

	rec.Status = StatusFailed
	rec.Cancelled = true
	rec.Error = "cancelled"
	if err := o.save(ctx, rec); err != nil {
		return nil, err
	}

	o.metrics.JobTransition(rec.Source, "cancelled")
	o.logger.Info("fetch cancelled",
		logger.Field{Key: "job_key", Value: key},
		logger.Field{Key: "run_id", Value: rec.RunID},
	)
	return rec, nil
}

// Retry discards the job's previous run and submits a new one under the same key.
func (o *Orchestrator) Retry(ctx context.Context, key string) (*FetchJob, error) {
	rec, err := o.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !rec.Status.Terminal() {
		o.dropTask(ctx, rec)
	}

	o.logger.Info("fetch retry requested",
		logger.Field{Key: "job_key", Value: key},
		logger.Field{Key: "previous_run_id", Value: rec.RunID},
		logger.Field{Key: "previous_status", Value: string(rec.Status)},
	)
	return o.enqueue(ctx, key, rec.Source, rec.Params)
}

// Get loads the record stored under key.
func (o *Orchestrator) Get(ctx context.Context, key string) (*FetchJob, error) {
	raw, err := o.records.Get(ctx, store.FetchKey(key))
	if errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("job: failed to load %s: %w", key, err)
	}

	var rec FetchJob
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("job: corrupt record %s: %w", key, err)
	}
	return &rec, nil
}

// Handle runs one delivery of a fetch task. Deliveries for a superseded or cancelled run change nothing.
func (o *Orchestrator) Handle(ctx context.Context, raw []byte, attempt queue.Attempt) error {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return queue.Permanent(fmt.Errorf("job: invalid payload: %w", err))
	}
	if p.Key == "" || p.RunID == "" {
		return queue.Permanent(errors.New("job: invalid payload: missing key or run id"))
	}

	rec, ok, err := o.current(ctx, p)
	if err != nil || !ok {
		return err
	}

	ctx, span := o.tracer.Start(ctx, "job.fetch", trace.WithAttributes(
		attribute.String("fetch.source", p.Source),
		attribute.String("fetch.key", p.Key),
		attribute.String("fetch.run_id", p.RunID),
		attribute.Int("fetch.attempt", attempt.Number),
	))
	defer span.End()

	startedAt := o.now()
	rec.Status = StatusActive
	rec.Attempts = attempt.Number
	rec.LastRunAt = &startedAt
	rec.Error = ""
	if err := o.save(ctx, rec); err != nil {
		return err
	}
	o.metrics.JobTransition(p.Source, string(StatusActive))
	o.logger.Info("fetch started",
		logger.Field{Key: "job_key", Value: p.Key},
		logger.Field{Key: "source", Value: p.Source},
		logger.Field{Key: "attempt", Value: attempt.Number},
	)

	count, fetchErr := o.fetcher.Fetch(ctx, p.Source, p.Params, o.sinks(p.Params))
	o.metrics.FetchTook(p.Source, o.now().Sub(startedAt))

	// the run may have been cancelled or superseded while the fetch was in flight
	rec, ok, err = o.current(ctx, p)
	if err != nil || !ok {
		return err
	}

	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, fetchErr.Error())
		return o.fail(ctx, rec, attempt, fetchErr)
	}

	completedAt := o.now()
	rec.Status = StatusCompleted
	rec.ResultCount = count
	rec.CompletedAt = &completedAt
	if err := o.save(ctx, rec); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("fetch.deals", count))
	o.metrics.JobTransition(p.Source, string(StatusCompleted))
	o.metrics.Deals(p.Source, count)
	o.logger.Info("fetch completed",
		logger.Field{Key: "job_key", Value: p.Key},
		logger.Field{Key: "source", Value: p.Source},
		logger.Field{Key: "deals", Value: count},
		logger.Field{Key: "elapsed", Value: completedAt.Sub(startedAt)},
	)
	return nil
}

// fail records the failure and hands the error back so the queue can retry it.
func (o *Orchestrator) fail(ctx context.Context, rec *FetchJob, attempt queue.Attempt, cause error) error {
	rec.Status = StatusFailed
	rec.Error = cause.Error()
	if err := o.save(ctx, rec); err != nil {
		return errors.Join(cause, err)
	}

	transition := "retrying"
	if attempt.Final {
		transition = string(StatusFailed)
	}
	o.metrics.JobTransition(rec.Source, transition)
	o.logger.Error("fetch failed",
		logger.Field{Key: "job_key", Value: rec.Key},
		logger.Field{Key: "source", Value: rec.Source},
		logger.Field{Key: "attempt", Value: attempt.Number},
		logger.Field{Key: "final", Value: attempt.Final},
		logger.Err(cause),
	)
	return cause
}

// current loads the record for p and reports whether p is still its live run.
func (o *Orchestrator) current(ctx context.Context, p payload) (*FetchJob, bool, error) {
	rec, err := o.Get(ctx, p.Key)
	if errors.Is(err, ErrJobNotFound) {
		o.logger.Warn("fetch record gone, dropping task", logger.Field{Key: "job_key", Value: p.Key})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if rec.RunID != p.RunID || rec.Cancelled || rec.Status == StatusCompleted {
		o.logger.Info("ignoring stale fetch run",
			logger.Field{Key: "job_key", Value: p.Key},
			logger.Field{Key: "run_id", Value: p.RunID},
			logger.Field{Key: "current_run_id", Value: rec.RunID},
			logger.Field{Key: "cancelled", Value: rec.Cancelled},
		)
		return rec, false, nil
	}
	return rec, true, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, key, source string, params flight.SearchParams) (*FetchJob, error) {
	runID := o.ids.NextRunID()
	rec := &FetchJob{
		Key:       key,
		RunID:     runID,
		JobID:     taskID(key, runID),
		Source:    source,
		Params:    params,
		Status:    StatusPending,
		CreatedAt: o.now(),
	}

	b, err := json.Marshal(payload{Key: key, RunID: runID, Source: source, Params: params})
	if err != nil {
		return nil, fmt.Errorf("job: failed to encode payload: %w", err)
	}

	// the record goes first so a worker picking the task up immediately finds its run
	if err := o.save(ctx, rec); err != nil {
		return nil, err
	}

	if err := o.queue.Enqueue(ctx, TaskType, rec.JobID, b); err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		if serr := o.save(ctx, rec); serr != nil {
			o.logger.Error("failed to record enqueue failure", logger.Field{Key: "job_key", Value: key}, logger.Err(serr))
		}
		return nil, fmt.Errorf("job: failed to submit %s: %w", key, err)
	}

	o.metrics.JobTransition(source, string(StatusPending))
	o.logger.Info("fetch submitted",
		logger.Field{Key: "job_key", Value: key},
		logger.Field{Key: "job_id", Value: rec.JobID},
		logger.Field{Key: "source", Value: source},
	)
	return rec, nil
}

func (o *Orchestrator) dropTask(ctx context.Context, rec *FetchJob) {
	if rec.JobID == "" {
		return
	}
	if err := o.queue.Cancel(ctx, rec.JobID); err != nil {
		o.logger.Warn("failed to remove queued task",
			logger.Field{Key: "job_key", Value: rec.Key},
			logger.Field{Key: "job_id", Value: rec.JobID},
			logger.Err(err),
		)
	}
}

func (o *Orchestrator) save(ctx context.Context, rec *FetchJob) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("job: failed to encode record %s: %w", rec.Key, err)
	}
	if err := o.records.Set(ctx, store.FetchKey(rec.Key), string(b), recordTTL); err != nil {
		return fmt.Errorf("job: failed to save record %s: %w", rec.Key, err)
	}
	return nil
}

func (o *Orchestrator) key(source string, params flight.SearchParams) (string, error) {
	if !o.fetcher.Has(source) {
		return "", fmt.Errorf("job: %w: %s", flightclient.ErrUnknownSource, source)
	}
	return flight.FetchJobKey(source, flight.SearchKey(params)), nil
}
