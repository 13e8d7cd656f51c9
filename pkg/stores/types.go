package stores

import "time"

// TransitionStatus is the terminal outcome of a recorded session.
type TransitionStatus string

const (
	// StatusCompleted means every phase ran to the end.
	StatusCompleted TransitionStatus = "completed"

	// StatusCancelled means the session was superseded or aborted.
	StatusCancelled TransitionStatus = "cancelled"

	// StatusFailed means the resolver rejected the transition.
	StatusFailed TransitionStatus = "failed"
)

// TransitionRow is one persisted transition.
type TransitionRow struct {
	// ID is the row identifier.
	ID int64 `json:"id"`

	// SessionID is the transition session identifier.
	SessionID string `json:"session_id"`

	// Descriptor is the target theme descriptor key.
	Descriptor string `json:"descriptor"`

	// Status is the terminal outcome.
	Status TransitionStatus `json:"status"`

	// DurationMs is the session wall time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// UpdateCount is the number of property writes committed.
	UpdateCount int `json:"update_count"`

	// AnimationsStarted counts animations that ran.
	AnimationsStarted int `json:"animations_started"`

	// AnimationsSkipped counts animations skipped by the no-op check.
	AnimationsSkipped int `json:"animations_skipped"`

	// Violations counts contrast findings during the session.
	Violations int `json:"violations"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// RecordedAt is when the row was written.
	RecordedAt time.Time `json:"recorded_at"`
}

// Summary aggregates the recorded history.
type Summary struct {
	// Total is the number of recorded transitions.
	Total int `json:"total"`

	// Completed counts sessions that finished every phase.
	Completed int `json:"completed"`

	// Cancelled counts superseded or aborted sessions.
	Cancelled int `json:"cancelled"`

	// Failed counts resolver rejections.
	Failed int `json:"failed"`

	// AvgDurationMs is the mean duration of completed sessions.
	AvgDurationMs float64 `json:"avg_duration_ms"`

	// TotalViolations sums contrast findings across all sessions.
	TotalViolations int `json:"total_violations"`
}
