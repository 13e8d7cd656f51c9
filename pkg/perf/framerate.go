package perf

import (
	"sync"
	"time"
)

// FrameRateSampler derives frames-per-second from frame ticks. The scheduler
// calls Tick once per frame boundary it observes; Rate reports the tick count
// over the most recently completed one-second window.
type FrameRateSampler struct {
	mu          sync.Mutex
	windowStart time.Time
	windowCount int
	lastRate    float64

	now func() time.Time
}

// NewFrameRateSampler creates a sampler.
func NewFrameRateSampler() *FrameRateSampler {
	return &FrameRateSampler{now: time.Now}
}

// Tick records one frame boundary.
func (s *FrameRateSampler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	elapsed := now.Sub(s.windowStart)
	if elapsed >= time.Second {
		s.lastRate = float64(s.windowCount) / elapsed.Seconds()
		s.windowStart = now
		s.windowCount = 0
	}
	s.windowCount++
}

// Rate returns the last completed window's frames per second. Before the
// first window completes it extrapolates from the in-progress window.
func (s *FrameRateSampler) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRate > 0 {
		return s.lastRate
	}
	if s.windowStart.IsZero() || s.windowCount == 0 {
		return 0
	}
	elapsed := s.now().Sub(s.windowStart)
	if elapsed <= 0 {
		return 0
	}
	return float64(s.windowCount) / elapsed.Seconds()
}
