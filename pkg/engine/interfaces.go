package engine

import (
	"context"
	"time"
)

// PolicyInput is the evaluation payload handed to a policy engine
// during finalization.
type PolicyInput struct {
	// SessionID identifies the session under evaluation.
	SessionID string `json:"session_id"`

	// Descriptor is the target theme descriptor key.
	Descriptor string `json:"descriptor"`

	// DurationMs is the wall time of the session in milliseconds.
	DurationMs float64 `json:"duration_ms"`

	// ReducedMotion is true when the user prefers reduced motion.
	ReducedMotion bool `json:"reduced_motion"`

	// AnimationsStarted counts animations that actually ran.
	AnimationsStarted int `json:"animations_started"`

	// Violations lists contrast findings observed during the session.
	Violations []string `json:"violations"`
}

// PolicyEvaluator checks a finished transition against advisory
// policies. Warnings never fail the transition.
type PolicyEvaluator interface {
	EvaluateTransition(ctx context.Context, input PolicyInput) ([]string, error)
}

// HistoryRecord is one finished session for persistent history.
type HistoryRecord struct {
	// SessionID identifies the session.
	SessionID string

	// Descriptor is the target theme descriptor key.
	Descriptor string

	// Status is "completed", "cancelled", or "failed".
	Status string

	// Duration is the session wall time.
	Duration time.Duration

	// UpdateCount is the number of property writes committed.
	UpdateCount int

	// AnimationsStarted counts animations that ran.
	AnimationsStarted int

	// AnimationsSkipped counts animations skipped by the no-op check.
	AnimationsSkipped int

	// Violations counts contrast findings.
	Violations int

	// StartedAt is when the session began.
	StartedAt time.Time
}

// HistoryRecorder persists finished sessions.
type HistoryRecorder interface {
	RecordTransition(ctx context.Context, rec HistoryRecord) error
}
