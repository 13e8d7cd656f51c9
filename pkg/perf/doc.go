// Package perf monitors the transition engine's runtime performance. A
// Monitor keeps an append-only ring of per-transition samples (frame rate,
// memory, update counts, cache stats) and aggregates them into reports.
// Monitoring is advisory throughout: a degraded report never blocks a
// transition.
package perf
