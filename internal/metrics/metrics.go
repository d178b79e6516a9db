// Package metrics exposes Prometheus metrics derived from event bus traffic.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcwatch/internal/eventbus"
	"mcwatch/internal/manifest"
	"mcwatch/internal/release"
	"mcwatch/internal/watch"
)

const namespace = "mcwatch"

// Cycle outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeBootstrap  = "bootstrap"
	OutcomeFetchError = "fetch_error"
)

type Metrics struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	seen          prometheus.Gauge
	lastSuccess   prometheus.Gauge
	found         *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
}

// New registers all collectors, plus Go and process collectors, on a
// private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Poll cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:    "Wall time of one poll cycle, including dispatch.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		seen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "seen_versions",
			Help: "Size of the in-memory seen set.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful manifest fetch.",
		}),
		found: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "releases_found_total",
			Help: "New catalog entries by inferred category.",
		}, []string{"category"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "releases_skipped_total",
			Help: "New entries not announced, by reason.",
		}, []string{"reason"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatches_total",
			Help: "Per-recipient message deliveries by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		m.cycles, m.cycleDuration, m.seen, m.lastSuccess, m.found, m.skipped, m.dispatches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// pre-create label sets so series exist before the first event
	for _, o := range []string{OutcomeOK, OutcomeBootstrap, OutcomeFetchError} {
		m.cycles.WithLabelValues(o)
	}
	for _, o := range []string{"sent", "failed"} {
		m.dispatches.WithLabelValues(o)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe folds one bus event into the metrics.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeCycleDone:
		res, ok := e.Data.(watch.Result)
		if !ok {
			return
		}
		outcome := OutcomeOK
		if res.Bootstrap {
			outcome = OutcomeBootstrap
		}
		m.cycles.WithLabelValues(outcome).Inc()
		m.cycleDuration.Observe(res.Duration.Seconds())
		m.seen.Set(float64(res.Known))
		m.lastSuccess.Set(float64(res.StartedAt.Unix()))
	case eventbus.TypeCycleFailed:
		m.cycles.WithLabelValues(OutcomeFetchError).Inc()
		if res, ok := e.Data.(watch.Result); ok {
			m.cycleDuration.Observe(res.Duration.Seconds())
		}
	case eventbus.TypeReleaseFound:
		if en, ok := e.Data.(manifest.Entry); ok {
			m.found.WithLabelValues(release.Classify(en.ID).String()).Inc()
		}
	case eventbus.TypeReleaseSkipped:
		if s, ok := e.Data.(watch.Skip); ok {
			m.skipped.WithLabelValues(s.Reason).Inc()
		}
	case eventbus.TypeDispatchSent:
		m.dispatches.WithLabelValues("sent").Inc()
	case eventbus.TypeDispatchFailed:
		m.dispatches.WithLabelValues("failed").Inc()
	}
}

// Run consumes bus events until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}
