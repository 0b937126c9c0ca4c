package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
)

// Webhook request results.
const (
	ResultAccepted     = "accepted"
	ResultDuplicate    = "duplicate"
	ResultUnauthorized = "unauthorized"
	ResultMalformed    = "malformed"
	ResultTooLarge     = "too_large"
	ResultError        = "error"
)

// Sub-call results.
const (
	SubcallOK      = "ok"
	SubcallFailed  = "failed"
	SubcallSkipped = "skipped"
)

// Recorder holds the sync collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	subcalls *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder registers the sync collectors plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_webhook_requests_total",
			Help: "Webhook deliveries by result.",
		}, []string{"result"}),
		subcalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_subcalls_total",
			Help: "Downstream calls by target and result.",
		}, []string{"target", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listing_sync_subcall_duration_seconds",
			Help:    "Latency of attempted downstream calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
	}
}

// ObserveRequest counts one webhook delivery.
func (r *Recorder) ObserveRequest(result string) {
	r.requests.WithLabelValues(result).Inc()
}

// ObserveOutcome implements dispatch.Observer.
func (r *Recorder) ObserveOutcome(_ context.Context, outcome dispatch.Outcome) {
	for _, sub := range []dispatch.SubResult{outcome.Search, outcome.Invalidation} {
		switch {
		case sub.Action == dispatch.ActionNone:
			continue
		case sub.Action == dispatch.ActionSkipped:
			r.subcalls.WithLabelValues(sub.Target, SubcallSkipped).Inc()
			continue
		case sub.Failed():
			r.subcalls.WithLabelValues(sub.Target, SubcallFailed).Inc()
		default:
			r.subcalls.WithLabelValues(sub.Target, SubcallOK).Inc()
		}
		r.duration.WithLabelValues(sub.Target).Observe(sub.Duration.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
