package rendertree

import "math"

// Rect describes a node's geometry: position and size in logical pixels.
type Rect struct {
	// X is the horizontal position of the node's top-left corner.
	X float64 `json:"x"`

	// Y is the vertical position of the node's top-left corner.
	Y float64 `json:"y"`

	// Width is the node's width.
	Width float64 `json:"width"`

	// Height is the node's height.
	Height float64 `json:"height"`
}

// CenterX returns the horizontal center of the rect.
func (r Rect) CenterX() float64 {
	return r.X + r.Width/2
}

// CenterY returns the vertical center of the rect.
func (r Rect) CenterY() float64 {
	return r.Y + r.Height/2
}

// ApproxEqual reports whether two rects are equal within epsilon on every
// component. Used to detect no-op geometry changes that should not animate.
func (r Rect) ApproxEqual(other Rect, epsilon float64) bool {
	return math.Abs(r.X-other.X) < epsilon &&
		math.Abs(r.Y-other.Y) < epsilon &&
		math.Abs(r.Width-other.Width) < epsilon &&
		math.Abs(r.Height-other.Height) < epsilon
}

// Transform is a 2D translate-and-scale applied on top of a node's laid-out
// geometry. The zero value is not meaningful; use Identity.
type Transform struct {
	// TranslateX is the horizontal offset in logical pixels.
	TranslateX float64 `json:"translate_x"`

	// TranslateY is the vertical offset in logical pixels.
	TranslateY float64 `json:"translate_y"`

	// ScaleX is the horizontal scale factor (1.0 = unscaled).
	ScaleX float64 `json:"scale_x"`

	// ScaleY is the vertical scale factor (1.0 = unscaled).
	ScaleY float64 `json:"scale_y"`
}

// Identity returns the transform that leaves a node where layout put it.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// IsIdentity reports whether the transform is the identity within epsilon.
func (t Transform) IsIdentity(epsilon float64) bool {
	return math.Abs(t.TranslateX) < epsilon &&
		math.Abs(t.TranslateY) < epsilon &&
		math.Abs(t.ScaleX-1) < epsilon &&
		math.Abs(t.ScaleY-1) < epsilon
}

// InvertDelta computes the transform that, applied to a node laid out at
// last, makes it appear at first. This is the "Invert" step of
// First-Last-Invert-Play: the returned transform is applied immediately after
// the state change and then animated back to identity.
func InvertDelta(first, last Rect) Transform {
	inv := Identity()
	inv.TranslateX = first.CenterX() - last.CenterX()
	inv.TranslateY = first.CenterY() - last.CenterY()
	if last.Width > 0 {
		inv.ScaleX = first.Width / last.Width
	}
	if last.Height > 0 {
		inv.ScaleY = first.Height / last.Height
	}
	return inv
}
