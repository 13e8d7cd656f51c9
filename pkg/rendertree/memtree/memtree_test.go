package memtree

import (
	"testing"
	"time"

	"github.com/glazeui/glaze/pkg/rendertree"
)

func TestAddRemoveAndTagLookup(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a", Tags: []string{"panel"}})
	tree.Add(NodeSpec{ID: "b", Tags: []string{"panel", "card"}})
	tree.Add(NodeSpec{ID: "c", Tags: []string{"card"}})

	panels := tree.NodesByTag("panel")
	if len(panels) != 2 || panels[0] != "a" || panels[1] != "b" {
		t.Fatalf("expected [a b], got %v", panels)
	}

	tree.Remove("b")
	panels = tree.NodesByTag("panel")
	if len(panels) != 1 || panels[0] != "a" {
		t.Fatalf("expected [a] after removal, got %v", panels)
	}

	if _, ok := tree.Geometry("b"); ok {
		t.Fatal("removed node should not report geometry")
	}
}

func TestGeometryPropertiesUpdateRect(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a", Rect: rendertree.Rect{X: 0, Y: 0, Width: 100, Height: 50}})

	ok := tree.ApplyProperties("a", rendertree.Properties{
		"x":     "40",
		"width": "200",
		"color": "#ffffff",
	})
	if !ok {
		t.Fatal("apply failed")
	}

	r, _ := tree.Geometry("a")
	if r.X != 40 || r.Width != 200 || r.Height != 50 {
		t.Fatalf("unexpected rect %+v", r)
	}

	props, _ := tree.ReadProperties("a")
	if props["color"] != "#ffffff" {
		t.Fatalf("unexpected props %v", props)
	}
}

func TestReadPropertiesReturnsCopy(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a", Properties: rendertree.Properties{"color": "#000000"}})

	props, _ := tree.ReadProperties("a")
	props["color"] = "#ff0000"

	fresh, _ := tree.ReadProperties("a")
	if fresh["color"] != "#000000" {
		t.Fatal("mutating the returned map must not affect the tree")
	}
}

func TestAnimateSettlesAndClearsTransform(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a", Rect: rendertree.Rect{Width: 10, Height: 10}})

	from := rendertree.Transform{TranslateX: 50, ScaleX: 1, ScaleY: 1}
	anim, ok := tree.Animate("a", from, 10*time.Millisecond, "ease")
	if !ok {
		t.Fatal("animate failed")
	}

	if tf, has := tree.Transform("a"); !has || tf.TranslateX != 50 {
		t.Fatalf("starting transform not applied: %+v has=%v", tf, has)
	}

	select {
	case <-anim.Done():
	case <-time.After(time.Second):
		t.Fatal("animation never settled")
	}

	if _, has := tree.Transform("a"); has {
		t.Fatal("transform should be cleared after settlement")
	}
}

func TestAnimateZeroDurationSettlesImmediately(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a"})

	anim, ok := tree.Animate("a", rendertree.Identity(), 0, "linear")
	if !ok {
		t.Fatal("animate failed")
	}
	select {
	case <-anim.Done():
	default:
		t.Fatal("zero-duration animation should settle synchronously")
	}
}

func TestAnimateStopLeavesTransform(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a"})

	from := rendertree.Transform{TranslateY: 20, ScaleX: 1, ScaleY: 1}
	anim, _ := tree.Animate("a", from, time.Minute, "ease")
	anim.Stop()

	select {
	case <-anim.Done():
	case <-time.After(time.Second):
		t.Fatal("Done must be closed after Stop")
	}

	if _, has := tree.Transform("a"); !has {
		t.Fatal("Stop must not clear the transform; the coordinator does that")
	}
}

func TestFocusOrderAndRemoval(t *testing.T) {
	tree := New()
	tree.Add(NodeSpec{ID: "a", Focusable: true})
	tree.Add(NodeSpec{ID: "b"})
	tree.Add(NodeSpec{ID: "c", Focusable: true})

	focusables := tree.FocusableNodes()
	if len(focusables) != 2 || focusables[0] != "a" || focusables[1] != "c" {
		t.Fatalf("expected [a c], got %v", focusables)
	}

	if tree.SetFocus("b") {
		t.Fatal("non-focusable node accepted focus")
	}
	if !tree.SetFocus("c") {
		t.Fatal("focusable node rejected focus")
	}

	tree.Remove("c")
	if _, ok := tree.FocusedNode(); ok {
		t.Fatal("focus should be dropped when the focused node is removed")
	}
}
