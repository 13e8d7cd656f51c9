package policy

import "time"

// BuiltinPolicies returns the policies compiled into the engine.
func BuiltinPolicies() []Policy {
	return []Policy{
		durationBudgetPolicy(),
		reducedMotionPolicy(),
		contrastFloorPolicy(),
	}
}

// durationBudgetPolicy flags transitions that run longer than a second.
func durationBudgetPolicy() Policy {
	return Policy{
		Name:        "duration-budget",
		Description: "Flags transitions that exceed the one second duration budget",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"performance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package glaze.policies.duration

import rego.v1

deny contains finding if {
	input.transition.duration_ms > 1000
	finding := {
		"message": sprintf("transition took %.0fms, budget is 1000ms", [input.transition.duration_ms]),
		"severity": "warning",
	}
}
`,
	}
}

// reducedMotionPolicy flags animations that ran despite the user
// preferring reduced motion.
func reducedMotionPolicy() Policy {
	return Policy{
		Name:        "reduced-motion-respect",
		Description: "Flags animations that ran while the user prefers reduced motion",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"accessibility"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package glaze.policies.motion

import rego.v1

deny contains finding if {
	input.transition.reduced_motion
	input.transition.animations_started > 0
	finding := {
		"message": sprintf("%d animations ran despite the reduced motion preference", [input.transition.animations_started]),
		"severity": "critical",
	}
}
`,
	}
}

// contrastFloorPolicy surfaces every contrast violation observed
// during the transition as a policy finding.
func contrastFloorPolicy() Policy {
	return Policy{
		Name:        "contrast-floor",
		Description: "Surfaces contrast violations observed while the transition ran",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"accessibility", "contrast"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package glaze.policies.contrast

import rego.v1

deny contains finding if {
	some v in input.transition.violations
	finding := {
		"message": sprintf("contrast below floor: %s", [v]),
		"severity": "warning",
	}
}
`,
	}
}
