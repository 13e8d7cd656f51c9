package rendertree

import "time"

// NodeID is an opaque handle to a render-tree node. The engine treats it as
// pure identity: it never dereferences a node directly and never extends a
// node's lifetime. A NodeID may become stale at any time if the owner removes
// the node; accessors report existence explicitly.
type NodeID string

// Properties is a node's presentation-property map: symbolic style keys to
// concrete values. Keys are engine-opaque except for the geometry and color
// keys interpreted by individual Tree implementations.
type Properties map[string]string

// Clone returns an independent copy of the property map.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Animation is a handle to one in-flight transform animation. Done is closed
// when the animation settles naturally; Stop halts it immediately without
// closing Done's settlement semantics (after Stop, Done is closed but the
// node's transform is left wherever the caller set it).
type Animation interface {
	// Done is closed when the animation has settled or was stopped.
	Done() <-chan struct{}

	// Stop halts the animation immediately. Safe to call more than once and
	// after natural completion.
	Stop()
}

// Tree is the engine's window onto an externally-owned render tree. All
// methods that take a NodeID report false when the node no longer exists;
// the engine skips that node and proceeds.
type Tree interface {
	// NodesByTag returns the IDs of all nodes carrying the given tag, in the
	// tree's stable traversal order.
	NodesByTag(tag string) []NodeID

	// Geometry returns the node's current laid-out geometry.
	Geometry(id NodeID) (Rect, bool)

	// ReadProperties returns a copy of the node's presentation properties.
	ReadProperties(id NodeID) (Properties, bool)

	// ApplyProperties merges the given properties into the node's
	// presentation state. This is the only mutation path the engine uses for
	// presentation values.
	ApplyProperties(id NodeID, props Properties) bool

	// SetTransform replaces the node's transform without animating.
	SetTransform(id NodeID, tf Transform) bool

	// ClearTransform removes any transform from the node.
	ClearTransform(id NodeID) bool

	// Animate starts animating the node's transform from the given transform
	// to identity over the duration using the named timing function. The
	// initial transform is applied synchronously before Animate returns.
	Animate(id NodeID, from Transform, duration time.Duration, timing string) (Animation, bool)

	// FocusedNode returns the currently focused node, if any.
	FocusedNode() (NodeID, bool)

	// SetFocus moves focus to the given node. Returns false if the node does
	// not exist or is not focusable.
	SetFocus(id NodeID) bool

	// FocusableNodes returns all focusable nodes in the tree's stable
	// traversal order.
	FocusableNodes() []NodeID
}
