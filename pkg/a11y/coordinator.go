package a11y

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/telemetry"
)

// DefaultRestoreDelay is the fixed delay before focus restoration, giving
// the tree one settling beat after the last mutation.
const DefaultRestoreDelay = 50 * time.Millisecond

// SessionState is the accessibility state machine for one transition.
type SessionState string

const (
	// StateIdle is the initial state.
	StateIdle SessionState = "idle"

	// StateFocusCaptured means the pre-transition focus snapshot exists.
	StateFocusCaptured SessionState = "focus-captured"

	// StateMonitoring means the contrast scan is running.
	StateMonitoring SessionState = "monitoring"

	// StateResolved is terminal: monitoring stopped, focus restored.
	StateResolved SessionState = "resolved"
)

// Report is the per-session accessibility outcome. Transient: produced per
// session, never persisted.
type Report struct {
	// ReducedMotion records the preference that was in effect.
	ReducedMotion bool `json:"reduced_motion"`

	// HighContrast records the preference that was in effect.
	HighContrast bool `json:"high_contrast"`

	// Violations are the rendered contrast violations.
	Violations []string `json:"violations,omitempty"`
}

// Config configures the coordinator.
type Config struct {
	// Scanner configures contrast monitoring.
	Scanner ScannerConfig

	// Verbosity controls announcement detail.
	Verbosity Verbosity

	// RestoreDelay is the pause before focus restoration. <0 disables the
	// delay; 0 selects the default.
	RestoreDelay time.Duration
}

// Coordinator owns the accessibility concerns around transitions. It is a
// long-lived service; Begin creates the per-transition Session.
type Coordinator struct {
	tree      rendertree.Tree
	provider  PreferenceProvider
	announcer *Announcer
	cfg       Config
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	events    *telemetry.EventPublisher
}

// NewCoordinator creates a coordinator. metrics and events may be nil.
func NewCoordinator(tree rendertree.Tree, provider PreferenceProvider, output Output, cfg Config, logger zerolog.Logger, metrics *telemetry.Metrics, events *telemetry.EventPublisher) *Coordinator {
	if cfg.RestoreDelay == 0 {
		cfg.RestoreDelay = DefaultRestoreDelay
	}
	log := logger.With().Str("component", "a11y-coordinator").Logger()
	return &Coordinator{
		tree:      tree,
		provider:  provider,
		announcer: NewAnnouncer(output, cfg.Verbosity, logger, metrics, events),
		cfg:       cfg,
		logger:    log,
		metrics:   metrics,
		events:    events,
	}
}

// Preferences returns the current accessibility preferences.
func (c *Coordinator) Preferences() Preferences {
	if c.provider == nil {
		return Preferences{}
	}
	return c.provider.Current()
}

// Announcer returns the coordinator's announcer.
func (c *Coordinator) Announcer() *Announcer {
	return c.announcer
}

// Begin creates the accessibility session for one transition, snapshotting
// the current preferences.
func (c *Coordinator) Begin(sessionID string) *Session {
	return &Session{
		id:    sessionID,
		c:     c,
		state: StateIdle,
		prefs: c.Preferences(),
	}
}

// Session tracks accessibility state for one transition. Not safe for
// concurrent use; the orchestrator drives it from the session goroutine.
type Session struct {
	id         string
	c          *Coordinator
	state      SessionState
	prefs      Preferences
	snapshot   FocusSnapshot
	scan       *ContrastScan
	violations []Violation
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	return s.state
}

// Preferences returns the preferences snapshotted at Begin.
func (s *Session) Preferences() Preferences {
	return s.prefs
}

// CaptureFocus snapshots the focused node and the focusable order.
func (s *Session) CaptureFocus() {
	if s.state != StateIdle {
		s.c.logger.Warn().Str("state", string(s.state)).Msg("focus capture in unexpected state")
	}
	s.snapshot = CaptureFocus(s.c.tree)
	s.state = StateFocusCaptured
}

// StartMonitoring begins the contrast scan for the transition window.
func (s *Session) StartMonitoring(ctx context.Context) {
	if s.scan != nil {
		return
	}
	s.scan = StartContrastScan(ctx, s.c.cfg.Scanner, s.c.tree, s.c.announcer.Announce, s.c.logger)
	s.state = StateMonitoring
}

// StopMonitoring ends the contrast scan and folds its findings into the
// session. Idempotent.
func (s *Session) StopMonitoring() {
	if s.scan == nil {
		return
	}
	found := s.scan.Stop()
	s.scan = nil
	s.violations = append(s.violations, found...)

	for _, v := range found {
		if s.c.metrics != nil {
			s.c.metrics.RecordContrastViolation(string(v.Severity))
		}
		if s.c.events != nil {
			_ = s.c.events.PublishContrastViolation(s.id, v.String())
		}
	}
}

// RestoreFocus waits the configured settling delay, then restores focus per
// the snapshot. A cancelled context skips the delay but still restores:
// cleanup must leave the tree focusable.
func (s *Session) RestoreFocus(ctx context.Context) {
	if s.state == StateResolved {
		return
	}
	if delay := s.c.cfg.RestoreDelay; delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	RestoreFocus(s.c.tree, s.snapshot, s.c.logger)
	s.state = StateResolved
}

// Report produces the session's accessibility report.
func (s *Session) Report() Report {
	r := Report{
		ReducedMotion: s.prefs.ReducedMotion,
		HighContrast:  s.prefs.HighContrast,
	}
	for _, v := range s.violations {
		r.Violations = append(r.Violations, v.String())
	}
	return r
}

// Violations returns the structured violations collected so far.
func (s *Session) Violations() []Violation {
	out := make([]Violation, len(s.violations))
	copy(out, s.violations)
	return out
}

