package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransitionErrorClassMatching(t *testing.T) {
	base := errors.New("resolver exploded")
	err := NewResolutionError("theme resolution failed", base).
		WithDescriptor("ocean|dark|default").
		WithPhase(PhaseApplying)

	if !IsResolution(err) {
		t.Fatal("expected resolution classification")
	}
	if IsCancelled(err) {
		t.Fatal("unexpected cancellation classification")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected underlying error in chain")
	}
	if !errors.Is(err, &TransitionError{Class: ErrorClassResolution}) {
		t.Fatal("expected class-based matching via errors.Is")
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := NewResolutionError("theme resolution failed", errors.New("boom")).
		WithDescriptor("ocean|dark|default").
		WithPhase(PhaseApplying)
	msg := err.Error()
	for _, want := range []string{"resolution", "ocean|dark|default", "applying", "boom"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error message %q missing %q", msg, want)
		}
	}
}

func TestClassOfWrappedError(t *testing.T) {
	inner := NewCancelledError("superseded")
	wrapped := fmt.Errorf("request failed: %w", inner)
	if got := ClassOf(wrapped); got != ErrorClassCancelled {
		t.Fatalf("ClassOf = %q, want %q", got, ErrorClassCancelled)
	}
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Fatalf("ClassOf plain error = %q, want empty", got)
	}
}

func TestPhaseValidation(t *testing.T) {
	for _, p := range []Phase{PhaseIdle, PhaseStarting, PhaseCapturing, PhaseApplying, PhaseAnimating, PhaseFinalizing, PhaseCancelled} {
		if !p.Validate() {
			t.Fatalf("phase %q should validate", p)
		}
	}
	if Phase("warping").Validate() {
		t.Fatal("unknown phase should not validate")
	}
	if !PhaseIdle.IsTerminal() || !PhaseCancelled.IsTerminal() {
		t.Fatal("idle and cancelled are terminal")
	}
	if PhaseAnimating.IsTerminal() {
		t.Fatal("animating is not terminal")
	}
}
