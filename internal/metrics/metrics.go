package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"marquee/internal/config"
)

const namespace = "marquee"

// Recorder holds the batch job metrics on a private registry. A nil
// Recorder accepts every call and records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	items       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec

	pushURL string
	pushJob string
}

// New registers the job metrics. Pushing is enabled when cfg names a Pushgateway.
func New(cfg *config.Config) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by outcome",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of batch job runs",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_items_total",
			Help:      "Items processed by batch jobs, by result",
		}, []string{"kind", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.runs, r.duration, r.items, r.lastSuccess)
	if cfg != nil {
		r.pushURL = strings.TrimSpace(cfg.Metrics.PushgatewayURL)
		r.pushJob = strings.TrimSpace(cfg.Metrics.Job)
	}
	if r.pushJob == "" {
		r.pushJob = namespace
	}
	return r
}

// Registry exposes the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRun records one finished job run.
func (r *Recorder) ObserveRun(job string, started time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.runs.WithLabelValues(job, outcome).Inc()
	r.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if err == nil {
		r.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// AddItems adds n items with the given result label. Non-positive counts are ignored.
func (r *Recorder) AddItems(job, result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.items.WithLabelValues(job, result).Add(float64(n))
}

// PushEnabled reports whether a Pushgateway is configured.
func (r *Recorder) PushEnabled() bool {
	return r != nil && r.pushURL != ""
}

// Push sends the registry to the Pushgateway grouped by job and batch. Series
// must not carry either label, hence "kind" on every vector.
func (r *Recorder) Push(ctx context.Context, job string) error {
	if !r.PushEnabled() {
		return nil
	}
	pusher := push.New(r.pushURL, r.pushJob).
		Gatherer(r.registry).
		Grouping("batch", job)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
