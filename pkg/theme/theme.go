package theme

import (
	"context"
	"fmt"
)

// ColorMode selects the light/dark variant of a theme.
type ColorMode string

const (
	// ColorModeLight is the default light variant.
	ColorModeLight ColorMode = "light"

	// ColorModeDark is the dark variant.
	ColorModeDark ColorMode = "dark"

	// ColorModeHighContrast is the forced high-contrast variant.
	ColorModeHighContrast ColorMode = "high-contrast"
)

// Validate checks if the color mode is valid.
func (m ColorMode) Validate() error {
	switch m {
	case ColorModeLight, ColorModeDark, ColorModeHighContrast:
		return nil
	default:
		return fmt.Errorf("invalid color mode: %s", m)
	}
}

// Descriptor is the immutable identity of a requested presentation state.
// Equality is structural; two descriptors with the same fields name the same
// variable set.
type Descriptor struct {
	// ThemeID names the theme.
	ThemeID string `json:"theme_id" yaml:"theme_id" validate:"required"`

	// ColorMode selects the light/dark/high-contrast variant.
	ColorMode ColorMode `json:"color_mode" yaml:"color_mode" validate:"required"`

	// Context is an optional presentation context (e.g. "default",
	// "compact", "print"). Empty means "default".
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Key returns the cache key for the descriptor. Distinct descriptors always
// produce distinct keys.
func (d Descriptor) Key() string {
	ctx := d.Context
	if ctx == "" {
		ctx = "default"
	}
	return fmt.Sprintf("%s|%s|%s", d.ThemeID, d.ColorMode, ctx)
}

// String returns a human-readable form for logs.
func (d Descriptor) String() string {
	return d.Key()
}

// VariableSet is a resolved mapping of symbolic style keys to concrete
// values. Treated as immutable once produced; Cache hands out copies so
// callers can never corrupt a cached set.
type VariableSet map[string]string

// Clone returns an independent copy of the set.
func (v VariableSet) Clone() VariableSet {
	out := make(VariableSet, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Resolver produces the variable set for a descriptor. Implementations may
// be slow (file reads, script evaluation); the engine caches results per
// distinct descriptor.
type Resolver interface {
	// ResolveVariables resolves the descriptor into a variable set.
	ResolveVariables(ctx context.Context, desc Descriptor) (VariableSet, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, desc Descriptor) (VariableSet, error)

// ResolveVariables implements Resolver.
func (f ResolverFunc) ResolveVariables(ctx context.Context, desc Descriptor) (VariableSet, error) {
	return f(ctx, desc)
}
