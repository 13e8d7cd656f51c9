package theme

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout bounds one script evaluation.
const DefaultStarlarkTimeout = 5 * time.Second

// StarlarkResolver resolves descriptors by evaluating a Starlark script.
// The script must define
//
//	def resolve(theme_id, color_mode, context):
//	    return {"surface": "#101010", ...}
//
// returning a dict of string keys to string values. Scripts are useful for
// themes whose values are derived (scales, computed shades) rather than
// enumerated.
type StarlarkResolver struct {
	script  string
	name    string
	timeout time.Duration
}

// NewStarlarkResolver creates a resolver from script source. name is used in
// diagnostics (typically the file name). A timeout of 0 selects
// DefaultStarlarkTimeout.
func NewStarlarkResolver(name, script string, timeout time.Duration) *StarlarkResolver {
	if timeout == 0 {
		timeout = DefaultStarlarkTimeout
	}
	return &StarlarkResolver{script: script, name: name, timeout: timeout}
}

// LoadStarlarkResolver reads a script from disk.
func LoadStarlarkResolver(path string, timeout time.Duration) (*StarlarkResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resolver script: %w", err)
	}
	return NewStarlarkResolver(path, string(data), timeout), nil
}

// ResolveVariables implements Resolver. Evaluation runs on its own goroutine
// so a runaway script cannot wedge the engine past the timeout.
func (r *StarlarkResolver) ResolveVariables(ctx context.Context, desc Descriptor) (VariableSet, error) {
	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultCh := make(chan VariableSet, 1)
	errCh := make(chan error, 1)

	go func() {
		vars, err := r.evaluateSync(desc)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- vars
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("starlark resolver %s: %w", r.name, evalCtx.Err())
	case err := <-errCh:
		return nil, err
	case vars := <-resultCh:
		return vars, nil
	}
}

func (r *StarlarkResolver) evaluateSync(desc Descriptor) (VariableSet, error) {
	thread := &starlark.Thread{
		Name: "glaze-resolver",
		Print: func(_ *starlark.Thread, msg string) {
			// Scripts have no output channel; print is discarded.
		},
	}

	globals, err := starlark.ExecFile(thread, r.name, r.script, nil)
	if err != nil {
		return nil, fmt.Errorf("starlark resolver %s: %w", r.name, err)
	}

	fn, ok := globals["resolve"]
	if !ok {
		return nil, fmt.Errorf("starlark resolver %s: script does not define resolve()", r.name)
	}

	args := starlark.Tuple{
		starlark.String(desc.ThemeID),
		starlark.String(string(desc.ColorMode)),
		starlark.String(desc.Context),
	}
	value, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, fmt.Errorf("starlark resolver %s: resolve() failed: %w", r.name, err)
	}

	dict, ok := value.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("starlark resolver %s: resolve() returned %s, want dict", r.name, value.Type())
	}

	vars := make(VariableSet, dict.Len())
	for _, item := range dict.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("starlark resolver %s: non-string key %s", r.name, item[0].Type())
		}
		val, ok := starlark.AsString(item[1])
		if !ok {
			return nil, fmt.Errorf("starlark resolver %s: non-string value for %q", r.name, key)
		}
		vars[key] = val
	}
	return vars, nil
}
