package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "biosim"

// Metrics holds the Prometheus counters, histograms, and gauges for the BioSim client.
type Metrics struct {
	// Transport metrics.
	Requests        *prometheus.CounterVec   // labels: endpoint, outcome={success,connectivity_error,server_error}
	RequestDuration *prometheus.HistogramVec // labels: endpoint

	// Handle lifecycle metrics.
	HandleCache      *prometheus.CounterVec // labels: result={hit,miss}
	CachedHandles    prometheus.Gauge
	HandlesGenerated prometheus.Counter
	HandlesReleased  prometheus.Counter
	ReleaseErrors    prometheus.Counter

	// Batch metrics.
	BatchSize *prometheus.HistogramVec // labels: class={generation,model,normals,release}

	// Output metrics.
	ResultsPublished prometheus.Counter
	Running          prometheus.Gauge
}

var (
	batchBuckets    = []float64{1, 2, 5, 10, 20, 50, 100, 200}
	durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
)

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      help("BioSim requests by endpoint and outcome."),
		}, []string{"endpoint", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      help("BioSim request duration in seconds."),
			Buckets:   durationBuckets,
		}, []string{"endpoint"}),
		HandleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handle_cache_total",
			Help:      help("Handle cache lookups by result."),
		}, []string{"result"}),
		CachedHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_handles",
			Help:      help("Handles currently held in the cache."),
		}),
		HandlesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handles_generated_total",
			Help:      help("Climate handles minted by the server."),
		}),
		HandlesReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handles_released_total",
			Help:      help("Climate handles released on the server."),
		}),
		ReleaseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_errors_total",
			Help:      help("Best-effort handle releases that failed."),
		}),
		BatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Locations or handles per server request."),
			Buckets:   batchBuckets,
		}, []string{"class"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      help("Location results written to the sink."),
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      help("1 while a command is talking to the server, 0 otherwise."),
		}),
	}
}

// NewMetrics creates and registers all client metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.HandleCache,
		m.CachedHandles,
		m.HandlesGenerated,
		m.HandlesReleased,
		m.ReleaseErrors,
		m.BatchSize,
		m.ResultsPublished,
		m.Running,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many as
// they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
