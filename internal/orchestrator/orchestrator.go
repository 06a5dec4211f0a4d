// Package orchestrator drives an audit job from request to cached result. It
// owns the lease/cache state machine and composes the crawler, the fan-out
// pipeline, the aggregator, publishing, and cleanup.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/joblog"
	"github.com/planetbun/scanova/internal/lease"
	"github.com/planetbun/scanova/internal/metrics"
	"github.com/planetbun/scanova/internal/pipeline"
	"github.com/planetbun/scanova/internal/report"
)

// Config controls orchestration behavior.
type Config struct {
	// MaxPages bounds the crawl and therefore the fan-out width.
	MaxPages int
	// WorkDir is where the aggregated report and transient artifacts live.
	WorkDir string
	// ReportPathPrefix is the object-store prefix for uploaded reports.
	ReportPathPrefix string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 25
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.ReportPathPrefix == "" {
		c.ReportPathPrefix = "reports"
	}
	return c
}

// Orchestrator runs one detached job per acquired lease. Every job reaches
// the StoreResult/Release exit path, panics included.
type Orchestrator struct {
	leases   *lease.Manager
	crawler  audit.Crawler
	pipeline *pipeline.Pipeline
	blobs    audit.BlobStore
	notifier audit.Notifier
	cleaner  audit.Cleaner
	clock    audit.Clock
	events   joblog.Emitter
	logger   *zap.Logger
	cfg      Config

	jobs sync.WaitGroup
}

// New constructs an Orchestrator.
func New(
	leases *lease.Manager,
	crawler audit.Crawler,
	pipe *pipeline.Pipeline,
	blobs audit.BlobStore,
	notifier audit.Notifier,
	cleaner audit.Cleaner,
	clock audit.Clock,
	events joblog.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = (*joblog.Hub)(nil)
	}
	return &Orchestrator{
		leases:   leases,
		crawler:  crawler,
		pipeline: pipe,
		blobs:    blobs,
		notifier: notifier,
		cleaner:  cleaner,
		clock:    clock,
		events:   events,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Start resolves dedup for the request and, when this caller wins the lease,
// launches the job detached from the request context. The returned Ack tells
// the caller whether the job is started, already processing, or served from
// cache. The error return is reserved for infrastructure failures; dedup
// never proceeds without the store.
func (o *Orchestrator) Start(ctx context.Context, req audit.Request) (audit.Ack, error) {
	key, err := audit.NormalizeKey(req.Target)
	if err != nil {
		return audit.Ack{}, fmt.Errorf("normalize target: %w", err)
	}
	now := o.clock.Now()

	cached, found, err := o.leases.GetFreshResult(ctx, key)
	if err != nil {
		return audit.Ack{}, err
	}
	if found {
		metrics.ObserveCacheLookup(metrics.LookupHit)
		expires := cached.ExpiresAt
		return audit.Ack{
			Status:    cached.Status,
			Message:   cachedMessage(cached),
			Timestamp: now,
			ExpiresAt: &expires,
			ResultURL: cached.ResultURL,
		}, nil
	}

	acq, err := o.leases.TryAcquire(ctx, key)
	if err != nil {
		return audit.Ack{}, err
	}
	if !acq.Acquired {
		metrics.ObserveCacheLookup(metrics.LookupRunning)
		return audit.Ack{
			Status:    audit.StatusProcessing,
			Message:   fmt.Sprintf("an audit for %s has been running since %s", key, acq.Since.Format(time.RFC3339)),
			Timestamp: now,
		}, nil
	}
	metrics.ObserveCacheLookup(metrics.LookupMiss)

	o.jobs.Add(1)
	go o.run(context.WithoutCancel(ctx), key, req)

	return audit.Ack{
		Status:    audit.StatusStarted,
		Message:   fmt.Sprintf("audit started for %s", key),
		Timestamp: now,
	}, nil
}

// Result returns the cached result for a target if one is still fresh.
func (o *Orchestrator) Result(ctx context.Context, target string) (audit.CachedResult, bool, error) {
	key, err := audit.NormalizeKey(target)
	if err != nil {
		return audit.CachedResult{}, false, fmt.Errorf("normalize target: %w", err)
	}
	return o.leases.GetFreshResult(ctx, key)
}

// Wait blocks until all in-flight jobs have reached their exit path. Used
// during shutdown.
func (o *Orchestrator) Wait() {
	o.jobs.Wait()
}

// run executes one leased job. The deferred exit path stores the terminal
// result and releases the lease on every return, including panics.
func (o *Orchestrator) run(ctx context.Context, key string, req audit.Request) {
	started := o.clock.Now()
	metrics.IncRunningJobs()
	o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageJobStart})

	final := audit.CachedResult{
		Status:  audit.StatusError,
		Message: "audit aborted before completion",
	}

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("audit job panicked", zap.String("key", key), zap.Any("panic", p))
			final = audit.CachedResult{
				Status:  audit.StatusError,
				Message: fmt.Sprintf("internal failure: %v", p),
			}
		}
		o.finish(ctx, key, req, final, started)
	}()

	o.notifyStart(ctx, key, req)

	urls, err := o.crawler.Discover(ctx, key, o.cfg.MaxPages)
	if err != nil {
		o.logger.Error("crawl failed", zap.String("key", key), zap.Error(err))
		o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageJobError, Err: err.Error()})
		final = audit.CachedResult{
			Status:  audit.StatusError,
			Message: fmt.Sprintf("page discovery failed: %v", err),
		}
		return
	}
	o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageCrawlDone, Note: fmt.Sprintf("%d pages", len(urls))})
	o.persistURLList(key, urls)

	pipeRes := o.pipeline.Run(ctx, key, urls)
	agg := report.Aggregate(pipeRes.Reports)

	payload, err := json.Marshal(agg)
	if err != nil {
		// Without a payload there is nothing to cache as completed.
		o.logger.Error("encode aggregate report failed", zap.String("key", key), zap.Error(err))
		o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageJobError, Err: err.Error()})
		final = audit.CachedResult{
			Status:  audit.StatusError,
			Message: fmt.Sprintf("encode report: %v", err),
		}
		return
	}

	resultURL := o.publish(ctx, key, payload)
	o.notifyDone(ctx, key, req, pipeRes)
	o.cleanupArtifacts(key)

	final = audit.CachedResult{
		Status:    audit.StatusCompleted,
		Message:   fmt.Sprintf("audited %d of %d pages", len(pipeRes.Reports), pipeRes.Attempted),
		Payload:   payload,
		ResultURL: resultURL,
	}
	o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageJobDone})
}

// finish is the unconditional exit path: cache the terminal record, release
// the lease, settle the metrics.
func (o *Orchestrator) finish(ctx context.Context, key string, req audit.Request, final audit.CachedResult, started time.Time) {
	defer o.jobs.Done()

	if final.ComputedAt.IsZero() {
		final.ComputedAt = o.clock.Now()
	}
	if err := o.leases.StoreResult(ctx, key, final); err != nil {
		o.logger.Error("store terminal result failed", zap.String("key", key), zap.Error(err))
	}
	if err := o.leases.Release(ctx, key); err != nil {
		o.logger.Error("release lease failed", zap.String("key", key), zap.Error(err))
	}
	if final.Status == audit.StatusError {
		o.notifyError(ctx, key, req, final.Message)
	}

	metrics.DecRunningJobs()
	metrics.ObserveJob(string(final.Status))
	metrics.ObserveJobDuration(o.clock.Now().Sub(started))
	o.logger.Info("audit job finished",
		zap.String("key", key),
		zap.String("status", string(final.Status)),
		zap.Duration("duration", o.clock.Now().Sub(started)),
	)
}

// publish persists the aggregated report locally and uploads it. Both steps
// are best-effort: a completed audit stays completed even when publishing
// fails.
func (o *Orchestrator) publish(ctx context.Context, key string, payload []byte) string {
	localPath := filepath.Join(o.cfg.WorkDir, fmt.Sprintf("comprehensive_%s.json", key))
	if err := os.WriteFile(localPath, payload, 0o644); err != nil {
		o.logger.Warn("persist aggregate report failed", zap.String("key", key), zap.Error(err))
	}

	objectPath := fmt.Sprintf("%s/%s.json", strings.Trim(o.cfg.ReportPathPrefix, "/"), key)
	uri, err := o.blobs.PutObject(ctx, objectPath, "application/json", payload)
	if err != nil {
		o.logger.Warn("report upload failed", zap.String("key", key), zap.Error(err))
		o.events.Emit(joblog.Event{Key: key, Stage: joblog.StagePublish, Err: err.Error()})
		return ""
	}
	o.events.Emit(joblog.Event{Key: key, Stage: joblog.StagePublish, Note: uri})
	return uri
}

func (o *Orchestrator) persistURLList(key string, urls []string) {
	path := filepath.Join(o.cfg.WorkDir, fmt.Sprintf("urls_%s.txt", key))
	data := strings.Join(urls, "\n")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		o.logger.Warn("persist url list failed", zap.String("key", key), zap.Error(err))
	}
}

func (o *Orchestrator) cleanupArtifacts(key string) {
	if o.cleaner == nil {
		return
	}
	if err := o.cleaner.Cleanup(key); err != nil {
		o.logger.Warn("cleanup failed", zap.String("key", key), zap.Error(err))
		o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageCleanup, Err: err.Error()})
		return
	}
	o.events.Emit(joblog.Event{Key: key, Stage: joblog.StageCleanup})
}

func (o *Orchestrator) notifyStart(ctx context.Context, key string, req audit.Request) {
	o.sendNotification(ctx, audit.Notification{
		Key:       key,
		Recipient: req.Email,
		Name:      req.Name,
		Subject:   fmt.Sprintf("Audit started for %s", key),
		Body:      fmt.Sprintf("Your site audit for %s has started. You will be notified when it finishes.", key),
	})
}

func (o *Orchestrator) notifyDone(ctx context.Context, key string, req audit.Request, res pipeline.Result) {
	o.sendNotification(ctx, audit.Notification{
		Key:       key,
		Recipient: req.Email,
		Name:      req.Name,
		Subject:   fmt.Sprintf("Audit completed for %s", key),
		Body:      fmt.Sprintf("Your site audit for %s finished: %d of %d pages audited.", key, len(res.Reports), res.Attempted),
	})
}

func (o *Orchestrator) notifyError(ctx context.Context, key string, req audit.Request, reason string) {
	o.sendNotification(ctx, audit.Notification{
		Key:       key,
		Recipient: req.Email,
		Name:      req.Name,
		Subject:   fmt.Sprintf("Audit failed for %s", key),
		Body:      fmt.Sprintf("Your site audit for %s failed: %s", key, reason),
	})
}

// sendNotification is fire-and-forget: delivery failure is logged, never
// surfaced to the job.
func (o *Orchestrator) sendNotification(ctx context.Context, n audit.Notification) {
	if o.notifier == nil || n.Recipient == "" {
		return
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.logger.Warn("notification delivery failed",
			zap.String("key", n.Key),
			zap.String("subject", n.Subject),
			zap.Error(err),
		)
	}
}

func cachedMessage(res audit.CachedResult) string {
	if res.Message != "" {
		return res.Message
	}
	return fmt.Sprintf("serving cached result computed at %s", res.ComputedAt.Format(time.RFC3339))
}
