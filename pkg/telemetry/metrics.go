package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the glaze transition engine.
type Metrics struct {
	config MetricsConfig

	// Transition metrics
	transitionsStarted   *prometheus.CounterVec
	transitionsCompleted *prometheus.CounterVec
	transitionDuration   *prometheus.HistogramVec

	// Variable cache metrics
	cacheResolutions *prometheus.CounterVec
	cacheEvictions   prometheus.Counter

	// Scheduler metrics
	writesApplied   prometheus.Counter
	writesDropped   prometheus.Counter
	framesCommitted prometheus.Counter
	frameBatchSize  prometheus.Histogram

	// Animation metrics
	animationsStarted prometheus.Counter
	animationsSkipped prometheus.Counter

	// Accessibility metrics
	contrastViolations *prometheus.CounterVec
	announcements      *prometheus.CounterVec

	// Sampler gauges
	frameRate     prometheus.Gauge
	memoryUsageMB prometheus.Gauge

	// System metrics
	activeTransitions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		transitionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_started_total",
				Help:      "Total number of transition sessions started",
			},
			[]string{"theme", "mode"},
		),
		transitionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_completed_total",
				Help:      "Total number of transition sessions by final status",
			},
			[]string{"status"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "End-to-end transition duration in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		cacheResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_resolutions_total",
				Help:      "Variable cache resolutions by result (hit, miss)",
			},
			[]string{"result"},
		),
		cacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Total number of evicted variable sets",
			},
		),
		writesApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_applied_total",
				Help:      "Total number of node property writes committed",
			},
		),
		writesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_dropped_total",
				Help:      "Total number of writes dropped because the target node vanished",
			},
		),
		framesCommitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_committed_total",
				Help:      "Total number of frame ticks that committed at least one write",
			},
		),
		frameBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frame_batch_size",
				Help:      "Number of writes committed per frame tick",
				Buckets:   []float64{1, 2, 5, 10, 20, 50},
			},
		),
		animationsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "animations_started_total",
				Help:      "Total number of per-node FLIP animations started",
			},
		),
		animationsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "animations_skipped_total",
				Help:      "Total number of per-node animations skipped as geometric no-ops",
			},
		),
		contrastViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contrast_violations_total",
				Help:      "Contrast violations detected during transitions, by severity",
			},
			[]string{"severity"},
		),
		announcements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "announcements_total",
				Help:      "Screen-reader announcements emitted, by priority",
			},
			[]string{"priority"},
		),
		frameRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frame_rate",
				Help:      "Most recently sampled frames per second",
			},
		),
		memoryUsageMB: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_usage_mb",
				Help:      "Most recently sampled heap usage in megabytes",
			},
		),
		activeTransitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_transitions",
				Help:      "Number of transition sessions currently in flight (0 or 1)",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.transitionsStarted,
		m.transitionsCompleted,
		m.transitionDuration,
		m.cacheResolutions,
		m.cacheEvictions,
		m.writesApplied,
		m.writesDropped,
		m.framesCommitted,
		m.frameBatchSize,
		m.animationsStarted,
		m.animationsSkipped,
		m.contrastViolations,
		m.announcements,
		m.frameRate,
		m.memoryUsageMB,
		m.activeTransitions,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Registry returns the underlying Prometheus registry, or nil when metrics
// are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP server if a listen address is
// configured. It returns immediately; the server runs on its own goroutine.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	go func() {
		// Errors here are terminal for the metrics endpoint only.
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()
	return nil
}

// RecordTransitionStarted increments the started counter and the active
// gauge.
func (m *Metrics) RecordTransitionStarted(theme, mode string) {
	if m.registry == nil {
		return
	}
	m.transitionsStarted.WithLabelValues(theme, mode).Inc()
	m.activeTransitions.Set(1)
}

// RecordTransitionCompleted records a finished session with its final status
// (completed, cancelled, failed) and duration.
func (m *Metrics) RecordTransitionCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.transitionsCompleted.WithLabelValues(status).Inc()
	m.transitionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeTransitions.Set(0)
}

// RecordCacheResolution records one cache lookup result ("hit" or "miss").
func (m *Metrics) RecordCacheResolution(result string) {
	if m.registry == nil {
		return
	}
	m.cacheResolutions.WithLabelValues(result).Inc()
}

// RecordCacheEvictions adds to the eviction counter.
func (m *Metrics) RecordCacheEvictions(n int) {
	if m.registry == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}

// RecordFrameCommit records one frame tick that committed writes.
func (m *Metrics) RecordFrameCommit(applied, dropped int) {
	if m.registry == nil {
		return
	}
	m.framesCommitted.Inc()
	m.frameBatchSize.Observe(float64(applied))
	m.writesApplied.Add(float64(applied))
	m.writesDropped.Add(float64(dropped))
}

// RecordAnimations records per-node animation outcomes for one session.
func (m *Metrics) RecordAnimations(started, skipped int) {
	if m.registry == nil {
		return
	}
	m.animationsStarted.Add(float64(started))
	m.animationsSkipped.Add(float64(skipped))
}

// RecordContrastViolation records one detected violation.
func (m *Metrics) RecordContrastViolation(severity string) {
	if m.registry == nil {
		return
	}
	m.contrastViolations.WithLabelValues(severity).Inc()
}

// RecordAnnouncement records one live-region announcement.
func (m *Metrics) RecordAnnouncement(priority string) {
	if m.registry == nil {
		return
	}
	m.announcements.WithLabelValues(priority).Inc()
}

// SetFrameRate publishes the latest frame-rate sample.
func (m *Metrics) SetFrameRate(fps float64) {
	if m.registry == nil {
		return
	}
	m.frameRate.Set(fps)
}

// SetMemoryUsageMB publishes the latest memory sample.
func (m *Metrics) SetMemoryUsageMB(mb float64) {
	if m.registry == nil {
		return
	}
	m.memoryUsageMB.Set(mb)
}

// Timer measures elapsed time for metric observations.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
