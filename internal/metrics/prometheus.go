package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for ultraviolet metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	pulsesTotal     *prometheus.CounterVec
	photonsEmitted  *prometheus.CounterVec
	refractionCalls *prometheus.CounterVec
	prismLoadsTotal prometheus.Counter
	prismUnloads    prometheus.Counter
	prismCrashes    prometheus.Counter

	// Histograms
	pulseDuration *prometheus.HistogramVec
	prismLoadTime *prometheus.HistogramVec
	beamRoundtrip *prometheus.HistogramVec

	// Gauges
	uptime                prometheus.GaugeFunc
	activePulses          prometheus.Gauge
	registryLoadedHandles *prometheus.GaugeVec
	emitQueueDepth        *prometheus.GaugeVec

	// Load protection (per-prism circuit breaker)
	loadBreakerState *prometheus.GaugeVec
	loadBreakerTrips *prometheus.CounterVec
}

// Default histogram buckets for pulse duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		pulsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pulses_total",
				Help:      "Total number of completed pulses",
			},
			[]string{"prism", "frequency", "status"},
		),

		photonsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "photons_emitted_total",
				Help:      "Total number of photon frames emitted",
			},
			[]string{"prism", "frequency"},
		),

		refractionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refraction_calls_total",
				Help:      "Total number of refraction hops completed",
			},
			[]string{"target", "status"},
		),

		prismLoadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prism_loads_total",
				Help:      "Total prisms spawned and connected",
			},
		),

		prismUnloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prism_unloads_total",
				Help:      "Total prism handles torn down",
			},
		),

		prismCrashes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prism_crashes_total",
				Help:      "Total prism subprocesses that exited unexpectedly",
			},
		),

		pulseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pulse_duration_ms",
				Help:      "Duration of pulses in milliseconds",
				Buckets:   buckets,
			},
			[]string{"prism", "frequency", "cold_start"},
		),

		prismLoadTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prism_load_duration_ms",
				Help:      "Duration of prism spawn-and-connect in milliseconds",
				Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"prism"},
		),

		beamRoundtrip: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "beam_roundtrip_ms",
				Help:      "Latency of Beam frame operations in milliseconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"operation"}, // dial, send, receive
		),

		activePulses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_pulses",
				Help:      "Number of currently running pulses",
			},
		),

		registryLoadedHandles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_loaded_handles",
				Help:      "Current loaded prism handle count by state",
			},
			[]string{"state"},
		),

		emitQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "emit_queue_depth",
				Help:      "Current photon emit queue depth by prism",
			},
			[]string{"prism"},
		),

		loadBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_breaker_state",
				Help:      "Per-prism load circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"prism"},
		),

		loadBreakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_breaker_trips_total",
				Help:      "Total load circuit breaker state transitions",
			},
			[]string{"prism", "to_state"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the ultraviolet daemon started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.pulsesTotal,
		pm.photonsEmitted,
		pm.refractionCalls,
		pm.prismLoadsTotal,
		pm.prismUnloads,
		pm.prismCrashes,
		pm.pulseDuration,
		pm.prismLoadTime,
		pm.beamRoundtrip,
		pm.uptime,
		pm.activePulses,
		pm.registryLoadedHandles,
		pm.emitQueueDepth,
		pm.loadBreakerState,
		pm.loadBreakerTrips,
	)

	promMetrics = pm
}

// RecordPrometheusPulse records a completed pulse in Prometheus collectors.
func RecordPrometheusPulse(prismID, frequency string, durationMs int64, coldStart bool, success bool) {
	if promMetrics == nil {
		return
	}

	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.pulsesTotal.WithLabelValues(prismID, frequency, status).Inc()

	coldLabel := "false"
	if coldStart {
		coldLabel = "true"
	}
	promMetrics.pulseDuration.WithLabelValues(prismID, frequency, coldLabel).Observe(float64(durationMs))
}

// RecordPrometheusPrismLoaded records a prism spawn-and-connect in Prometheus.
func RecordPrometheusPrismLoaded() {
	if promMetrics == nil {
		return
	}
	promMetrics.prismLoadsTotal.Inc()
}

// RecordPrometheusPrismUnloaded records a prism teardown in Prometheus.
func RecordPrometheusPrismUnloaded() {
	if promMetrics == nil {
		return
	}
	promMetrics.prismUnloads.Inc()
}

// RecordPrometheusPrismCrashed records a prism crash in Prometheus.
func RecordPrometheusPrismCrashed() {
	if promMetrics == nil {
		return
	}
	promMetrics.prismCrashes.Inc()
}

// RecordPrometheusPhotonEmitted records a photon frame emission.
func RecordPrometheusPhotonEmitted(prismID, frequency string) {
	if promMetrics == nil {
		return
	}
	promMetrics.photonsEmitted.WithLabelValues(prismID, frequency).Inc()
}

// RecordPrometheusRefractionCall records a completed refraction hop.
func RecordPrometheusRefractionCall(target, status string) {
	if promMetrics == nil {
		return
	}
	promMetrics.refractionCalls.WithLabelValues(target, status).Inc()
}

// RecordPrismLoadDuration records prism spawn-and-connect time in Prometheus.
func RecordPrismLoadDuration(prismID string, durationMs int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.prismLoadTime.WithLabelValues(prismID).Observe(float64(durationMs))
}

// RecordBeamRoundtrip records Beam frame operation latency.
func RecordBeamRoundtrip(operation string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.beamRoundtrip.WithLabelValues(operation).Observe(durationMs)
}

// SetActivePulses sets the number of currently running pulses.
func SetActivePulses(count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.activePulses.Set(float64(count))
}

// SetRegistryLoadedHandles sets the loaded handle count for a given state
// (e.g. "ready", "loading").
func SetRegistryLoadedHandles(state string, count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.registryLoadedHandles.WithLabelValues(state).Set(float64(count))
}

// SetEmitQueueDepth sets the photon emit queue depth gauge for a prism.
func SetEmitQueueDepth(prismID string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.emitQueueDepth.WithLabelValues(prismID).Set(float64(depth))
}

// SetLoadBreakerState sets the load circuit breaker state gauge for a prism.
// state: 0=closed, 1=open, 2=half_open.
func SetLoadBreakerState(prismID string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.loadBreakerState.WithLabelValues(prismID).Set(float64(state))
}

// RecordLoadBreakerTrip records a load circuit breaker state transition.
func RecordLoadBreakerTrip(prismID, toState string) {
	if promMetrics == nil {
		return
	}
	promMetrics.loadBreakerTrips.WithLabelValues(prismID, toState).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
