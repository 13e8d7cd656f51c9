package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glazeui/glaze/pkg/theme"
)

// Phase is a transition session lifecycle state.
type Phase string

const (
	// PhaseIdle means no session is in flight.
	PhaseIdle Phase = "idle"
	// PhaseStarting validates input and snapshots accessibility state.
	PhaseStarting Phase = "starting"
	// PhaseCapturing records pre-transition geometry.
	PhaseCapturing Phase = "capturing"
	// PhaseApplying resolves variables and commits property writes.
	PhaseApplying Phase = "applying"
	// PhaseAnimating plays the inverted geometry deltas.
	PhaseAnimating Phase = "animating"
	// PhaseFinalizing restores focus, announces, and records metrics.
	PhaseFinalizing Phase = "finalizing"
	// PhaseCancelled means the session was superseded or aborted.
	PhaseCancelled Phase = "cancelled"
)

// Validate checks the phase is a known value.
func (p Phase) Validate() bool {
	switch p {
	case PhaseIdle, PhaseStarting, PhaseCapturing, PhaseApplying,
		PhaseAnimating, PhaseFinalizing, PhaseCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the phase ends a session.
func (p Phase) IsTerminal() bool {
	return p == PhaseIdle || p == PhaseCancelled
}

// Metrics summarizes one completed session.
type Metrics struct {
	// Duration is the wall time from request to completion.
	Duration time.Duration `json:"duration"`

	// UpdateCount is the number of property writes committed.
	UpdateCount int `json:"update_count"`

	// AnimationsStarted counts nodes that received an animation.
	AnimationsStarted int `json:"animations_started"`

	// AnimationsSkipped counts nodes skipped by the no-op check.
	AnimationsSkipped int `json:"animations_skipped"`

	// CacheHits counts variable cache hits during the session.
	CacheHits uint64 `json:"cache_hits"`

	// CacheMisses counts variable cache misses during the session.
	CacheMisses uint64 `json:"cache_misses"`
}

// Result is the caller-facing outcome of a transition.
type Result struct {
	// Success is true when every phase completed.
	Success bool `json:"success"`

	// Cancelled is true when the session was superseded or aborted.
	Cancelled bool `json:"cancelled"`

	// Violations lists contrast findings observed during the session.
	Violations []string `json:"violations,omitempty"`

	// PolicyWarnings lists advisory policy findings.
	PolicyWarnings []string `json:"policy_warnings,omitempty"`

	// Metrics summarizes the session.
	Metrics Metrics `json:"metrics"`
}

// Session is one in-flight transition. A session runs on its own
// goroutine; cancellation is cooperative and checked between phases.
type Session struct {
	id         string
	descriptor theme.Descriptor
	cfg        Config
	startedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	cancelled atomic.Bool

	mu    sync.Mutex
	phase Phase

	done   chan struct{}
	result Result
	err    error
}

func newSession(id string, desc theme.Descriptor, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		descriptor: desc,
		cfg:        cfg,
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		phase:      PhaseStarting,
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Descriptor returns the requested theme descriptor.
func (s *Session) Descriptor() theme.Descriptor { return s.descriptor }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Cancelled reports whether the session has been asked to stop.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// markCancelled requests cooperative cancellation. Safe to call from
// any goroutine and more than once.
func (s *Session) markCancelled() {
	s.cancelled.Store(true)
	s.cancel()
}

// finish records the outcome and releases waiters. Called exactly once
// by the session goroutine.
func (s *Session) finish(result Result, err error) {
	s.mu.Lock()
	s.result = result
	s.err = err
	s.mu.Unlock()
	s.cancel()
	close(s.done)
}

// Done returns a channel closed when the session finishes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Transition is the caller's handle on a requested transition.
type Transition struct {
	session *Session
}

// SessionID returns the identifier of the underlying session.
func (t *Transition) SessionID() string { return t.session.id }

// Done returns a channel closed when the transition finishes.
func (t *Transition) Done() <-chan struct{} { return t.session.done }

// Wait blocks until the transition finishes or ctx is cancelled.
// Cancelled transitions return a Result with Cancelled set and a nil
// error; only resolver failures produce an error.
func (t *Transition) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.session.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	t.session.mu.Lock()
	defer t.session.mu.Unlock()
	return t.session.result, t.session.err
}
