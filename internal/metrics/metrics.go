package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	gcpCalls            *prometheus.CounterVec
	gcpCallDuration     *prometheus.HistogramVec
	bigQueryBytes       prometheus.Counter
	graphTruncations    *prometheus.CounterVec
	sweepRunsTotal      *prometheus.CounterVec
	sweepRunDuration    prometheus.Histogram
	sweepDeletedTotal   *prometheus.CounterVec
	rdnsLookups         *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, GCP and sweeper metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netviz",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	gcpCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "gcp_calls_total",
		Help:      "GCP API calls by service, operation and outcome",
	}, []string{"service", "operation", "outcome"})

	gcpCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netviz",
		Name:      "gcp_call_duration_seconds",
		Help:      "Duration of GCP API calls including retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"service", "operation"})

	bigQueryBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "bigquery_bytes_processed_total",
		Help:      "Bytes processed by BigQuery jobs issued on behalf of users",
	})

	graphTruncations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "graph_truncations_total",
		Help:      "Graph projections truncated at the node or link cap",
	}, []string{"kind"})

	sweepRunsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "sweep_runs_total",
		Help:      "Total number of sweeper runs by outcome",
	}, []string{"outcome"})

	sweepRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "netviz",
		Name:      "sweep_run_duration_seconds",
		Help:      "Duration of sweeper runs from start to finish",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	sweepDeletedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "sweep_deleted_total",
		Help:      "Records removed by the sweeper",
	}, []string{"kind"})

	rdnsLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netviz",
		Name:      "rdns_lookups_total",
		Help:      "Reverse DNS lookups by result",
	}, []string{"result"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		gcpCalls,
		gcpCallDuration,
		bigQueryBytes,
		graphTruncations,
		sweepRunsTotal,
		sweepRunDuration,
		sweepDeletedTotal,
		rdnsLookups,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		gcpCalls:            gcpCalls,
		gcpCallDuration:     gcpCallDuration,
		bigQueryBytes:       bigQueryBytes,
		graphTruncations:    graphTruncations,
		sweepRunsTotal:      sweepRunsTotal,
		sweepRunDuration:    sweepRunDuration,
		sweepDeletedTotal:   sweepDeletedTotal,
		rdnsLookups:         rdnsLookups,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveGCPCall records one guarded GCP call. outcome is ok, error or breaker_open.
func (m *Metrics) ObserveGCPCall(service, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gcpCalls.WithLabelValues(service, operation, outcome).Inc()
	m.gcpCallDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func (m *Metrics) AddBigQueryBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bigQueryBytes.Add(float64(n))
}

// IncGraphTruncation counts a projection cut at its cap. kind is nodes or links.
func (m *Metrics) IncGraphTruncation(kind string) {
	if m == nil {
		return
	}
	m.graphTruncations.WithLabelValues(kind).Inc()
}

// IncSweepRun increments the sweeper run counter.
func (m *Metrics) IncSweepRun(outcome string) {
	if m == nil {
		return
	}
	m.sweepRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSweepRunDuration observes a sweeper run duration.
func (m *Metrics) ObserveSweepRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) AddSweepDeleted(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeletedTotal.WithLabelValues(kind).Add(float64(n))
}

// IncRDNSLookup counts a PTR lookup. result is hit, miss, cached or error.
func (m *Metrics) IncRDNSLookup(result string) {
	if m == nil {
		return
	}
	m.rdnsLookups.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
