package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a transition failure for propagation policy.
type ErrorClass string

const (
	// ErrorClassResolution indicates the external theme resolver failed.
	// The only class surfaced to callers as a rejected transition.
	ErrorClassResolution ErrorClass = "resolution"

	// ErrorClassCancelled indicates the session was superseded or aborted.
	// Suppressed from the caller-facing result.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassAccessibility indicates a non-fatal accessibility finding.
	// Recorded and reported, never blocks a transition.
	ErrorClassAccessibility ErrorClass = "accessibility"

	// ErrorClassResource indicates a tagged node disappeared mid-session.
	// The individual write or animation is skipped and the session proceeds.
	ErrorClassResource ErrorClass = "resource-unavailable"

	// ErrorClassValidation indicates invalid configuration or descriptor.
	ErrorClassValidation ErrorClass = "validation"
)

// TransitionError is a classified error with transition context.
type TransitionError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Descriptor is the requested theme descriptor key, if applicable.
	Descriptor string `json:"descriptor,omitempty"`

	// Phase is the phase the session was in when the error occurred.
	Phase Phase `json:"phase,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Descriptor != "" {
		msg += fmt.Sprintf(" (descriptor=%s", e.Descriptor)
		if e.Phase != "" {
			msg += fmt.Sprintf(", phase=%s", e.Phase)
		}
		msg += ")"
	} else if e.Phase != "" {
		msg += fmt.Sprintf(" (phase=%s)", e.Phase)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is: two TransitionErrors
// match when their classes match.
func (e *TransitionError) Is(target error) bool {
	t, ok := target.(*TransitionError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithDescriptor attaches the descriptor key to the error.
func (e *TransitionError) WithDescriptor(descriptor string) *TransitionError {
	e.Descriptor = descriptor
	return e
}

// WithPhase attaches the phase to the error.
func (e *TransitionError) WithPhase(phase Phase) *TransitionError {
	e.Phase = phase
	return e
}

// NewResolutionError creates a resolution error.
func NewResolutionError(message string, err error) *TransitionError {
	return &TransitionError{
		Class:   ErrorClassResolution,
		Message: message,
		Err:     err,
	}
}

// NewCancelledError creates a cancellation error.
func NewCancelledError(message string) *TransitionError {
	return &TransitionError{
		Class:   ErrorClassCancelled,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, err error) *TransitionError {
	return &TransitionError{
		Class:   ErrorClassValidation,
		Message: message,
		Err:     err,
	}
}

// ClassOf returns the class of the first TransitionError in err's
// chain, or the empty string when there is none.
func ClassOf(err error) ErrorClass {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Class
	}
	return ""
}

// IsCancelled reports whether err is classified as a cancellation.
func IsCancelled(err error) bool {
	return ClassOf(err) == ErrorClassCancelled
}

// IsResolution reports whether err is classified as a resolver failure.
func IsResolution(err error) bool {
	return ClassOf(err) == ErrorClassResolution
}
