// Package engine coordinates theme transitions across a render tree.
//
// The Orchestrator drives each transition through a fixed sequence of
// phases. Starting snapshots accessibility state, Capturing records
// pre-transition geometry, Applying resolves theme variables and
// commits them as frame-aligned property writes, Animating plays
// first-last-invert-play transforms, and Finalizing restores focus,
// announces the change, and records metrics.
//
// At most one session is in flight. A new request supersedes the
// current one: the superseded session stops at its next phase
// boundary, its pending writes are discarded, and its animations stop
// with transforms cleared so nodes land at their final geometry.
package engine
