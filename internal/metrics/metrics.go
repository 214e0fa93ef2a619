package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geo_events"

// Recorder owns the pipeline's Prometheus metrics. Each Recorder has its own
// registry, so several can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	itemsFetched  *prometheus.CounterVec
	analyzed      *prometheus.CounterVec
	persisted     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
}

// New creates a recorder with Go runtime and process collectors registered
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_fetches_total",
		Help:      "Adapter calls by outcome",
	}, []string{"adapter", "status"})
	r.itemsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_fetched_total",
		Help:      "Raw items returned by each adapter",
	}, []string{"adapter"})
	r.analyzed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_analyzed_total",
		Help:      "Analyzed items by relevance",
	}, []string{"result"})
	r.persisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidate events by persist outcome",
	}, []string{"outcome"})
	r.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Recipient notifications by result",
	}, []string{"result"})
	r.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Pipeline cycles by result",
	}, []string{"result"})
	r.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of full pipeline cycles",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})
	r.lastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix timestamp of the last finished cycle",
	})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.fetches, r.itemsFetched, r.analyzed, r.persisted,
		r.notifications, r.cycles, r.cycleDuration, r.lastCycle,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveFetch(adapter, status string, items int) {
	r.fetches.WithLabelValues(adapter, status).Inc()
	r.itemsFetched.WithLabelValues(adapter).Add(float64(items))
}

func (r *Recorder) ObserveAnalysis(relevant, notRelevant int) {
	r.analyzed.WithLabelValues("relevant").Add(float64(relevant))
	r.analyzed.WithLabelValues("not_relevant").Add(float64(notRelevant))
}

func (r *Recorder) ObservePersist(persisted, duplicates, invalid, failed int) {
	r.persisted.WithLabelValues("persisted").Add(float64(persisted))
	r.persisted.WithLabelValues("duplicate").Add(float64(duplicates))
	r.persisted.WithLabelValues("invalid").Add(float64(invalid))
	r.persisted.WithLabelValues("failed").Add(float64(failed))
}

func (r *Recorder) ObserveNotify(sent, skipped, failed int) {
	r.notifications.WithLabelValues("sent").Add(float64(sent))
	r.notifications.WithLabelValues("skipped").Add(float64(skipped))
	r.notifications.WithLabelValues("failed").Add(float64(failed))
}

// ObserveCycle records a finished cycle; result is ok, failed or canceled
func (r *Recorder) ObserveCycle(duration time.Duration, result string) {
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(duration.Seconds())
	r.lastCycle.SetToCurrentTime()
}
