package a11y

import (
	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
)

// FocusSnapshot records where focus was before a transition so it can be
// restored afterward, even when the focused node itself was replaced.
type FocusSnapshot struct {
	// Focused is the node that held focus at capture time.
	Focused rendertree.NodeID

	// HadFocus is false when nothing was focused at capture time.
	HadFocus bool

	// Ordinal is Focused's position in the focusable order at capture time.
	Ordinal int

	// Focusables is the ordered list of focusable nodes at capture time.
	Focusables []rendertree.NodeID
}

// CaptureFocus snapshots the current focus state of the tree.
func CaptureFocus(tree rendertree.Tree) FocusSnapshot {
	snap := FocusSnapshot{
		Focusables: tree.FocusableNodes(),
		Ordinal:    -1,
	}
	focused, ok := tree.FocusedNode()
	if !ok {
		return snap
	}
	snap.Focused = focused
	snap.HadFocus = true
	for i, id := range snap.Focusables {
		if id == focused {
			snap.Ordinal = i
			break
		}
	}
	return snap
}

// RestoreFocus moves focus back to the captured node. If that node no longer
// exists, focus falls back to the node now occupying the same ordinal
// position among focusable nodes (clamped to the last one). With no
// focusables left, restoration is a no-op.
func RestoreFocus(tree rendertree.Tree, snap FocusSnapshot, logger zerolog.Logger) {
	if !snap.HadFocus {
		return
	}

	if tree.SetFocus(snap.Focused) {
		return
	}

	// Original node is gone; use the ordinal fallback.
	focusables := tree.FocusableNodes()
	if len(focusables) == 0 {
		logger.Debug().Str("node", string(snap.Focused)).Msg("no focusable nodes left, focus not restored")
		return
	}
	idx := snap.Ordinal
	if idx < 0 {
		idx = 0
	}
	if idx >= len(focusables) {
		idx = len(focusables) - 1
	}
	if !tree.SetFocus(focusables[idx]) {
		logger.Warn().Str("node", string(focusables[idx])).Msg("ordinal focus fallback rejected")
		return
	}
	logger.Debug().
		Str("original", string(snap.Focused)).
		Str("fallback", string(focusables[idx])).
		Int("ordinal", idx).
		Msg("focus restored to ordinal fallback")
}
