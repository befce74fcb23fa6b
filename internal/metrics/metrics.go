// Package metrics collects and exposes ultraviolet runtime observability
// data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (per-prism counters + time series)
//     behind JSONHandler and TimeSeriesHandler.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems (Grafana, Alertmanager, etc.).
//
// `uv server` mounts only the Prometheus handler, at /metrics; the JSON
// handlers are not mounted by any command.
//
// # Concurrency — hot path
//
// RecordPulse is called from the pulse engine on every completed Pulse and
// must be as fast as possible. It uses atomic increments for global counters
// and dispatches a lightweight event onto a buffered channel (tsChan) for
// the time-series worker to process asynchronously. This avoids holding any
// lock on the hot path.
//
// The per-prism PrismMetrics struct also uses atomic operations exclusively;
// the sync.Map that stores the per-prism entries is read-heavy and
// write-once-per-new-prism, which is the ideal use case for sync.Map.
//
// # Invariants
//
//   - TotalPulses == SuccessPulses + FailedPulses (maintained by RecordPulse).
//   - ColdLoads + WarmLoads == TotalPulses.
//   - The time-series ring buffer holds at most timeSeriesBucketCount buckets
//     (24 * 60 = 1440 for the last 24 hours at 1-minute granularity).
//   - tsChan capacity is 8192 events; events dropped when full are counted
//     in tsDroppedEvents for observability.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Pulses       int64
	Errors       int64
	TotalLatency int64
	Count        int64 // for calculating avg
}

// Metrics collects and exposes ultraviolet runtime metrics.
type Metrics struct {
	// Pulse metrics
	TotalPulses   atomic.Int64
	SuccessPulses atomic.Int64
	FailedPulses  atomic.Int64
	ColdLoads     atomic.Int64
	WarmLoads     atomic.Int64

	// Latency metrics (in milliseconds)
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	// Prism lifecycle metrics
	PrismLoads   atomic.Int64
	PrismUnloads atomic.Int64
	PrismCrashes atomic.Int64

	// Photon/refraction metrics
	PhotonsEmitted atomic.Int64
	RefractionCalls atomic.Int64

	// Per-prism metrics
	prismMetrics sync.Map // prismID -> *PrismMetrics

	// Time-series data (minute buckets for last 24 hours)
	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

// timeSeriesEvent is sent over a channel to avoid write-lock contention on
// the hot path.
type timeSeriesEvent struct {
	durationMs int64
	isError    bool
}

// PrismMetrics tracks metrics for a single prism.
type PrismMetrics struct {
	Pulses    atomic.Int64
	Successes atomic.Int64
	Failures  atomic.Int64
	ColdLoads atomic.Int64
	WarmLoads atomic.Int64
	TotalMs   atomic.Int64
	MinMs     atomic.Int64
	MaxMs     atomic.Int64
}

// Global metrics instance
var global = &Metrics{startTime: time.Now()}

func init() {
	global.MinLatencyMs.Store(int64(^uint64(0) >> 1)) // Max int64
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

// initTimeSeries initializes minute-level buckets for the last 24 hours.
func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordPulse records a completed Pulse result.
func (m *Metrics) RecordPulse(prismID string, durationMs int64, coldLoad bool, success bool) {
	m.RecordPulseWithDetails(prismID, "", "", durationMs, coldLoad, success)
}

// RecordPulseWithDetails records a Pulse with prism and frequency labels for
// Prometheus.
func (m *Metrics) RecordPulseWithDetails(prismID, frequency string, _ string, durationMs int64, coldLoad bool, success bool) {
	m.TotalPulses.Add(1)

	if success {
		m.SuccessPulses.Add(1)
	} else {
		m.FailedPulses.Add(1)
	}

	if coldLoad {
		m.ColdLoads.Add(1)
	} else {
		m.WarmLoads.Add(1)
	}

	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	// Per-prism metrics
	pm := m.getPrismMetrics(prismID)
	pm.Pulses.Add(1)
	if success {
		pm.Successes.Add(1)
	} else {
		pm.Failures.Add(1)
	}
	if coldLoad {
		pm.ColdLoads.Add(1)
	} else {
		pm.WarmLoads.Add(1)
	}
	pm.TotalMs.Add(durationMs)
	updateMin(&pm.MinMs, durationMs)
	updateMax(&pm.MaxMs, durationMs)

	// Time series recording
	m.recordTimeSeries(durationMs, !success)

	// Prometheus bridge
	RecordPrometheusPulse(prismID, frequency, durationMs, coldLoad, success)
}

// recordTimeSeries enqueues a time-series event for async processing,
// avoiding a write-lock on the hot Pulse path.
func (m *Metrics) recordTimeSeries(durationMs int64, isError bool) {
	select {
	case m.tsChan <- timeSeriesEvent{durationMs: durationMs, isError: isError}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

// processTimeSeriesLoop drains tsChan and applies events under a write lock.
func (m *Metrics) processTimeSeriesLoop() {
	for evt := range m.tsChan {
		m.applyTimeSeriesEvent(evt.durationMs, evt.isError)
	}
}

// applyTimeSeriesEvent updates the time-series buckets (must be called from
// a single goroutine).
func (m *Metrics) applyTimeSeriesEvent(durationMs int64, isError bool) {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	// Check if we need to rotate buckets
	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	// Record to current bucket
	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Pulses++
		bucket.TotalLatency += durationMs
		bucket.Count++
		if isError {
			bucket.Errors++
		}
	}
}

// RecordPrismLoaded records a prism being spawned and connected.
func (m *Metrics) RecordPrismLoaded() {
	m.PrismLoads.Add(1)
	RecordPrometheusPrismLoaded()
}

// RecordPrismUnloaded records a prism handle being torn down.
func (m *Metrics) RecordPrismUnloaded() {
	m.PrismUnloads.Add(1)
	RecordPrometheusPrismUnloaded()
}

// RecordPrismCrashed records a prism subprocess exiting unexpectedly.
func (m *Metrics) RecordPrismCrashed() {
	m.PrismCrashes.Add(1)
	RecordPrometheusPrismCrashed()
}

// RecordPhotonEmitted records one photon frame emitted to a transport.
func (m *Metrics) RecordPhotonEmitted(prismID, frequency string) {
	m.PhotonsEmitted.Add(1)
	RecordPrometheusPhotonEmitted(prismID, frequency)
}

// RecordRefractionCall records a completed refraction hop.
func (m *Metrics) RecordRefractionCall(target, status string) {
	m.RefractionCalls.Add(1)
	RecordPrometheusRefractionCall(target, status)
}

func (m *Metrics) getPrismMetrics(prismID string) *PrismMetrics {
	if v, ok := m.prismMetrics.Load(prismID); ok {
		return v.(*PrismMetrics)
	}

	pm := &PrismMetrics{}
	pm.MinMs.Store(int64(^uint64(0) >> 1))
	actual, _ := m.prismMetrics.LoadOrStore(prismID, pm)
	return actual.(*PrismMetrics)
}

// GetPrismMetrics returns the metrics for a specific prism (or nil if none
// recorded yet).
func (m *Metrics) GetPrismMetrics(prismID string) *PrismMetrics {
	if v, ok := m.prismMetrics.Load(prismID); ok {
		return v.(*PrismMetrics)
	}
	return nil
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.TotalPulses.Load()
	avgLatency := float64(0)
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == int64(^uint64(0)>>1) {
		minLatency = 0
	}

	result := map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"pulses": map[string]interface{}{
			"total":    total,
			"success":  m.SuccessPulses.Load(),
			"failed":   m.FailedPulses.Load(),
			"cold":     m.ColdLoads.Load(),
			"warm":     m.WarmLoads.Load(),
			"cold_pct": coldLoadPercentage(m.ColdLoads.Load(), total),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"prisms": map[string]interface{}{
			"loaded":    m.PrismLoads.Load(),
			"unloaded":  m.PrismUnloads.Load(),
			"crashed":   m.PrismCrashes.Load(),
		},
		"photons_emitted":  m.PhotonsEmitted.Load(),
		"refraction_calls": m.RefractionCalls.Load(),
		"ts_dropped_events": m.tsDroppedEvents.Load(),
	}

	return result
}

// PrismStats returns per-prism metrics.
func (m *Metrics) PrismStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.prismMetrics.Range(func(key, value interface{}) bool {
		prismID := key.(string)
		pm := value.(*PrismMetrics)

		total := pm.Pulses.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(pm.TotalMs.Load()) / float64(total)
		}

		minMs := pm.MinMs.Load()
		if minMs == int64(^uint64(0)>>1) {
			minMs = 0
		}

		result[prismID] = map[string]interface{}{
			"pulses":     total,
			"successes":  pm.Successes.Load(),
			"failures":   pm.Failures.Load(),
			"cold_loads": pm.ColdLoads.Load(),
			"warm_loads": pm.WarmLoads.Load(),
			"avg_ms":     avgMs,
			"min_ms":     minMs,
			"max_ms":     pm.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["prisms_detail"] = m.PrismStats()
		json.NewEncoder(w).Encode(result)
	})
}

// TimeSeries returns minute-level time-series data for the last 24 hours.
func (m *Metrics) TimeSeries() []map[string]interface{} {
	m.timeSeriesMu.RLock()
	defer m.timeSeriesMu.RUnlock()

	result := make([]map[string]interface{}, len(m.timeSeries))
	for i, bucket := range m.timeSeries {
		avgDuration := float64(0)
		if bucket.Count > 0 {
			avgDuration = float64(bucket.TotalLatency) / float64(bucket.Count)
		}
		result[i] = map[string]interface{}{
			"timestamp":    bucket.Timestamp.Format(time.RFC3339),
			"pulses":       bucket.Pulses,
			"errors":       bucket.Errors,
			"avg_duration": avgDuration,
		}
	}
	return result
}

// TimeSeriesHandler returns an HTTP handler for time-series metrics.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

// Helper functions

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func coldLoadPercentage(cold, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(cold) / float64(total) * 100
}
