// Package a11y coordinates the accessibility guarantees wrapped around every
// transition: user preference detection (reduced motion, high contrast),
// focus capture and restoration across tree mutations, a sampling contrast
// scanner that runs for the duration of a transition, and verbosity-adjusted
// announcements to an assistive output channel.
//
// One Session is created per transition and walks the state machine
// Idle -> FocusCaptured -> Monitoring -> Resolved. Violations never fail a
// transition; they are collected into the session report.
package a11y
