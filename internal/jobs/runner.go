package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/enrichment"
	"marquee/internal/ingest"
	"marquee/internal/logging"
	"marquee/internal/matching"
	"marquee/internal/metrics"
	"marquee/internal/services"
	"marquee/internal/telemetry"
	"marquee/internal/ticketcache"
)

// Job names, also used for lock files and metric labels.
const (
	JobUpsert  = "upsert"
	JobMatch   = "match"
	JobEnrich  = "enrich"
	JobRefresh = "cache_refresh"
)

// ErrAlreadyRunning is returned when another process holds the job lock.
var ErrAlreadyRunning = errors.New("job already running")

// Dependencies are the external collaborators of the batch jobs.
type Dependencies struct {
	Arbiter    matching.Arbiter
	Enrichment enrichment.Dependencies
	Discovery  ticketcache.Discovery
	Metrics    *metrics.Recorder
}

// Runner is the batch trigger layer. Each Run method takes the job's
// exclusive lock, tags the context with a run id, and records a span and
// metrics around the pass.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Recorder
	ingester  *ingest.Ingester
	matcher   *matching.Matcher
	engine    *enrichment.Engine
	refresher *ticketcache.Refresher
}

// New wires the job components around one store.
func New(cfg *config.Config, store *catalog.Store, deps Dependencies, logger *slog.Logger) (*Runner, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("jobs require config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "jobs"),
		metrics:   deps.Metrics,
		ingester:  ingest.NewIngester(cfg, store, logger),
		matcher:   matching.NewMatcher(cfg, store, deps.Arbiter, logger),
		engine:    enrichment.NewEngine(cfg, store, deps.Enrichment, logger),
		refresher: ticketcache.NewRefresher(cfg, store, deps.Discovery, logger),
	}, nil
}

// RunUpsert persists a batch of normalized records.
func (r *Runner) RunUpsert(ctx context.Context, records []catalog.NormalizedRecord) (ingest.Result, error) {
	var result ingest.Result
	err := r.run(ctx, JobUpsert, func(ctx context.Context) (map[string]int, error) {
		result = r.ingester.Upsert(ctx, records)
		return map[string]int{
			"created": result.Created,
			"updated": result.Updated,
			"error":   len(result.Errors),
		}, nil
	})
	return result, err
}

// RunMatchBatch matches due events against the ticket cache.
func (r *Runner) RunMatchBatch(ctx context.Context, limit int) (matching.Summary, error) {
	var summary matching.Summary
	err := r.run(ctx, JobMatch, func(ctx context.Context) (map[string]int, error) {
		var err error
		summary, err = r.matcher.RunBatch(ctx, limit)
		return map[string]int{
			"matched":             summary.Matched,
			"no_match":            summary.NoMatch,
			"skipped_arbitration": summary.SkippedArbitration,
			"error":               summary.Errors,
		}, err
	})
	return summary, err
}

// RunEnrichmentBatch enriches upcoming events.
func (r *Runner) RunEnrichmentBatch(ctx context.Context, limit int) (enrichment.Summary, error) {
	var summary enrichment.Summary
	err := r.run(ctx, JobEnrich, func(ctx context.Context) (map[string]int, error) {
		var err error
		summary, err = r.engine.RunBatch(ctx, limit)
		return map[string]int{
			"completed": summary.Completed,
			"partial":   summary.Partial,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
		}, err
	})
	return summary, err
}

// RunCacheRefresh rebuilds the ticket cache.
func (r *Runner) RunCacheRefresh(ctx context.Context) (ticketcache.RefreshSummary, error) {
	var summary ticketcache.RefreshSummary
	err := r.run(ctx, JobRefresh, func(ctx context.Context) (map[string]int, error) {
		var err error
		summary, err = r.refresher.Refresh(ctx)
		return map[string]int{
			"stored": summary.Stored,
			"error":  summary.Errors,
		}, err
	})
	return summary, err
}

func (r *Runner) run(ctx context.Context, job string, fn func(context.Context) (map[string]int, error)) (err error) {
	lock, err := r.acquire(job)
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			r.logger.Warn("failed to release job lock", logging.String("job", job), logging.Error(unlockErr))
		}
	}()

	ctx = services.WithRunID(ctx, uuid.NewString())
	ctx = services.WithJob(ctx, job)
	ctx, span := telemetry.Tracer().Start(ctx, "marquee."+job)
	defer span.End()
	logger := logging.WithContext(ctx, r.logger)

	started := time.Now()
	logger.Info("job started")
	counts, err := fn(ctx)
	r.metrics.ObserveRun(job, started, err)
	for result, n := range counts {
		r.metrics.AddItems(job, result, n)
		span.SetAttributes(attribute.Int("marquee."+result, n))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldErrorHint, "the job is safe to re-run once the cause is fixed"),
		)
	} else {
		logger.Info("job finished", logging.Duration("duration", time.Since(started)))
	}

	if pushErr := r.metrics.Push(context.WithoutCancel(ctx), job); pushErr != nil {
		logging.WarnWithContext(logger, "metrics push failed", "metrics_push_failed",
			logging.Error(pushErr),
			logging.String(logging.FieldErrorHint, "check metrics.pushgateway_url"),
		)
	}
	return err
}

func (r *Runner) acquire(job string) (*flock.Flock, error) {
	dir := r.cfg.LockDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, job+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", job, ErrAlreadyRunning)
	}
	return lock, nil
}
