package perf

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/telemetry"
)

// DefaultSampleCapacity bounds the sample ring buffer.
const DefaultSampleCapacity = 100

// DefaultMemoryThresholdMB is the advisory memory health threshold.
const DefaultMemoryThresholdMB = 100

// DefaultSlowBudget is the duration above which a transition is reported as
// slow.
const DefaultSlowBudget = 500 * time.Millisecond

// Sample is one per-transition performance record.
type Sample struct {
	// TransitionDurationMs is the end-to-end session duration.
	TransitionDurationMs float64 `json:"transition_duration_ms"`

	// FrameRate is the frames-per-second measured near the transition.
	FrameRate float64 `json:"frame_rate"`

	// MemoryUsageMB is the heap usage at record time.
	MemoryUsageMB float64 `json:"memory_usage_mb"`

	// UpdateCount is the number of node property writes the session
	// committed.
	UpdateCount int `json:"update_count"`

	// CacheHits and CacheMisses are the cache lookups attributed to this
	// transition.
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`

	// Timestamp is when the sample was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates the ring buffer.
type Report struct {
	// SampleCount is the number of samples aggregated.
	SampleCount int `json:"sample_count"`

	// AvgDurationMs is the mean transition duration.
	AvgDurationMs float64 `json:"avg_duration_ms"`

	// AvgFrameRate is the mean sampled frame rate.
	AvgFrameRate float64 `json:"avg_frame_rate"`

	// AvgMemoryUsageMB is the mean sampled heap usage.
	AvgMemoryUsageMB float64 `json:"avg_memory_usage_mb"`

	// TotalUpdates is the sum of committed writes across samples.
	TotalUpdates int `json:"total_updates"`

	// CacheEfficiency is hits/(hits+misses) summed across the buffered
	// samples.
	CacheEfficiency float64 `json:"cache_efficiency"`

	// SlowTransitions is the number of samples over the slow budget.
	SlowTransitions int `json:"slow_transitions"`
}

// Config configures a Monitor.
type Config struct {
	// SampleCapacity bounds the ring buffer. <=0 selects the default.
	SampleCapacity int

	// MemoryThresholdMB is the advisory health threshold. <=0 selects the
	// default.
	MemoryThresholdMB float64

	// SlowBudget marks transitions slower than this as slow. <=0 selects the
	// default.
	SlowBudget time.Duration
}

func (c *Config) applyDefaults() {
	if c.SampleCapacity <= 0 {
		c.SampleCapacity = DefaultSampleCapacity
	}
	if c.MemoryThresholdMB <= 0 {
		c.MemoryThresholdMB = DefaultMemoryThresholdMB
	}
	if c.SlowBudget <= 0 {
		c.SlowBudget = DefaultSlowBudget
	}
}

// Monitor records per-transition samples and serves aggregated reports.
// Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	samples []Sample // ring buffer
	next    int
	filled  bool

	frames  *FrameRateSampler
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher

	// readMem is replaceable for tests.
	readMem func() float64
}

// NewMonitor creates a monitor. metrics and events may be nil.
func NewMonitor(cfg Config, logger zerolog.Logger, metrics *telemetry.Metrics, events *telemetry.EventPublisher) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:     cfg,
		samples: make([]Sample, cfg.SampleCapacity),
		frames:  NewFrameRateSampler(),
		logger:  logger.With().Str("component", "perf-monitor").Logger(),
		metrics: metrics,
		events:  events,
		readMem: readHeapMB,
	}
}

// FrameSampler returns the monitor's frame-rate sampler. The scheduler calls
// its Tick method once per committed frame.
func (m *Monitor) FrameSampler() *FrameRateSampler {
	return m.frames
}

// RecordMetrics appends one sample for a finished transition.
func (m *Monitor) RecordMetrics(sessionID string, duration time.Duration, updateCount int, cacheHits, cacheMisses uint64, now time.Time) {
	memMB := m.readMem()
	fps := m.frames.Rate()

	sample := Sample{
		TransitionDurationMs: float64(duration) / float64(time.Millisecond),
		FrameRate:            fps,
		MemoryUsageMB:        memMB,
		UpdateCount:          updateCount,
		CacheHits:            cacheHits,
		CacheMisses:          cacheMisses,
		Timestamp:            now,
	}

	m.mu.Lock()
	m.samples[m.next] = sample
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.filled = true
	}
	slow := duration > m.cfg.SlowBudget
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetMemoryUsageMB(memMB)
		m.metrics.SetFrameRate(fps)
	}

	if slow {
		m.logger.Warn().
			Str("session_id", sessionID).
			Dur("duration", duration).
			Dur("budget", m.cfg.SlowBudget).
			Msg("slow transition")
		if m.events != nil {
			_ = m.events.PublishSlowTransition(sessionID, duration, m.cfg.SlowBudget)
		}
	}
}

// Latest returns the most recent sample, if any.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled && m.next == 0 {
		return Sample{}, false
	}
	idx := m.next - 1
	if idx < 0 {
		idx = len(m.samples) - 1
	}
	return m.samples[idx], true
}

// Report aggregates the current ring buffer.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	if m.filled {
		count = len(m.samples)
	}
	if count == 0 {
		return Report{}
	}

	var r Report
	var hits, misses uint64
	r.SampleCount = count
	for i := 0; i < count; i++ {
		s := m.samples[i]
		r.AvgDurationMs += s.TransitionDurationMs
		r.AvgFrameRate += s.FrameRate
		r.AvgMemoryUsageMB += s.MemoryUsageMB
		r.TotalUpdates += s.UpdateCount
		hits += s.CacheHits
		misses += s.CacheMisses
		if time.Duration(s.TransitionDurationMs*float64(time.Millisecond)) > m.cfg.SlowBudget {
			r.SlowTransitions++
		}
	}
	r.AvgDurationMs /= float64(count)
	r.AvgFrameRate /= float64(count)
	r.AvgMemoryUsageMB /= float64(count)

	if total := hits + misses; total > 0 {
		r.CacheEfficiency = float64(hits) / float64(total)
	}
	return r
}

// IsMemoryHealthy compares a fresh memory sample against the configured
// threshold. Purely advisory; never blocks a transition.
func (m *Monitor) IsMemoryHealthy() bool {
	return m.readMem() < m.cfg.MemoryThresholdMB
}

func readHeapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}
