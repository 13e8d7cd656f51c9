// Package memtree provides an in-memory rendertree.Tree implementation.
// It is the reference tree used by the engine's tests and by the glaze CLI:
// nodes carry tags, geometry, a presentation-property map, and a focusable
// flag. Geometry-valued properties ("x", "y", "width", "height") written
// through ApplyProperties update the node's rect, so property application is
// observable as a layout change the same way it is in a real tree.
package memtree

import (
	"strconv"
	"sync"
	"time"

	"github.com/glazeui/glaze/pkg/rendertree"
)

// NodeSpec describes a node to add to the tree.
type NodeSpec struct {
	// ID is the node's unique handle. Required.
	ID rendertree.NodeID

	// Tags are the node's tags, matched by Tree.NodesByTag.
	Tags []string

	// Rect is the node's initial geometry.
	Rect rendertree.Rect

	// Properties is the node's initial presentation-property map.
	Properties rendertree.Properties

	// Focusable marks the node as participating in focus order.
	Focusable bool
}

type node struct {
	spec      NodeSpec
	props     rendertree.Properties
	rect      rendertree.Rect
	transform rendertree.Transform
	hasTF     bool
}

// Tree is an in-memory render tree. Insertion order is the stable traversal
// order for NodesByTag and FocusableNodes. All methods are safe for
// concurrent use.
type Tree struct {
	mu      sync.Mutex
	order   []rendertree.NodeID
	nodes   map[rendertree.NodeID]*node
	focused rendertree.NodeID
	hasFoc  bool
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{nodes: make(map[rendertree.NodeID]*node)}
}

// Add inserts a node. Adding an existing ID replaces the node in place
// without changing its position in traversal order.
func (t *Tree) Add(spec NodeSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	props := spec.Properties.Clone()
	if props == nil {
		props = make(rendertree.Properties)
	}
	n := &node{spec: spec, props: props, rect: spec.Rect}
	if _, exists := t.nodes[spec.ID]; !exists {
		t.order = append(t.order, spec.ID)
	}
	t.nodes[spec.ID] = n
}

// Remove deletes a node. Focus held by the node is dropped.
func (t *Tree) Remove(id rendertree.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[id]; !ok {
		return
	}
	delete(t.nodes, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if t.hasFoc && t.focused == id {
		t.hasFoc = false
	}
}

// SetGeometry replaces a node's rect directly, bypassing properties.
func (t *Tree) SetGeometry(id rendertree.NodeID, r rendertree.Rect) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.rect = r
	return true
}

// Transform returns the node's current transform, if one is applied.
func (t *Tree) Transform(id rendertree.NodeID) (rendertree.Transform, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok || !n.hasTF {
		return rendertree.Transform{}, false
	}
	return n.transform, true
}

// NodesByTag implements rendertree.Tree.
func (t *Tree) NodesByTag(tag string) []rendertree.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []rendertree.NodeID
	for _, id := range t.order {
		for _, nt := range t.nodes[id].spec.Tags {
			if nt == tag {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// Geometry implements rendertree.Tree.
func (t *Tree) Geometry(id rendertree.NodeID) (rendertree.Rect, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return rendertree.Rect{}, false
	}
	return n.rect, true
}

// ReadProperties implements rendertree.Tree.
func (t *Tree) ReadProperties(id rendertree.NodeID) (rendertree.Properties, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return n.props.Clone(), true
}

// ApplyProperties implements rendertree.Tree. Geometry keys update the rect.
func (t *Tree) ApplyProperties(id rendertree.NodeID, props rendertree.Properties) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	for k, v := range props {
		n.props[k] = v
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			switch k {
			case "x":
				n.rect.X = f
			case "y":
				n.rect.Y = f
			case "width":
				n.rect.Width = f
			case "height":
				n.rect.Height = f
			}
		}
	}
	return true
}

// SetTransform implements rendertree.Tree.
func (t *Tree) SetTransform(id rendertree.NodeID, tf rendertree.Transform) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.transform = tf
	n.hasTF = true
	return true
}

// ClearTransform implements rendertree.Tree.
func (t *Tree) ClearTransform(id rendertree.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.transform = rendertree.Transform{}
	n.hasTF = false
	return true
}

type animation struct {
	once  sync.Once
	timer *time.Timer
	done  chan struct{}
}

func (a *animation) Done() <-chan struct{} { return a.done }

func (a *animation) Stop() {
	a.once.Do(func() {
		if a.timer != nil {
			a.timer.Stop()
		}
		close(a.done)
	})
}

// Animate implements rendertree.Tree. The in-memory tree does not interpolate
// intermediate frames: it applies the starting transform synchronously, waits
// out the duration, then snaps to identity and settles.
func (t *Tree) Animate(id rendertree.NodeID, from rendertree.Transform, duration time.Duration, timing string) (rendertree.Animation, bool) {
	if !t.SetTransform(id, from) {
		return nil, false
	}

	a := &animation{done: make(chan struct{})}
	if duration <= 0 {
		t.ClearTransform(id)
		a.once.Do(func() { close(a.done) })
		return a, true
	}

	a.timer = time.AfterFunc(duration, func() {
		t.ClearTransform(id)
		a.once.Do(func() { close(a.done) })
	})
	return a, true
}

// FocusedNode implements rendertree.Tree.
func (t *Tree) FocusedNode() (rendertree.NodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused, t.hasFoc
}

// SetFocus implements rendertree.Tree.
func (t *Tree) SetFocus(id rendertree.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok || !n.spec.Focusable {
		return false
	}
	t.focused = id
	t.hasFoc = true
	return true
}

// FocusableNodes implements rendertree.Tree.
func (t *Tree) FocusableNodes() []rendertree.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []rendertree.NodeID
	for _, id := range t.order {
		if t.nodes[id].spec.Focusable {
			out = append(out, id)
		}
	}
	return out
}
