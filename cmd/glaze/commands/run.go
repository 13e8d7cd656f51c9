package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glazeui/glaze/pkg/engine"
	"github.com/glazeui/glaze/pkg/theme"
)

func newRunCommand() *cobra.Command {
	var (
		mode        string
		contextName string
		instant     bool
		scenePath   string
	)

	cmd := &cobra.Command{
		Use:   "run <theme-id>",
		Short: "Run a theme transition against the demo scene",
		Long: `Run resolves the given theme descriptor, applies its variables to the
scene, animates participating nodes, and prints the transition result.
The descriptor is theme ID plus --mode and --context. The scene is the
builtin demo shell unless --scene names a scene file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, args[0], mode, contextName, instant, scenePath)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "light", "color mode (light, dark, high-contrast)")
	cmd.Flags().StringVar(&contextName, "context", "", "presentation context (default when empty)")
	cmd.Flags().BoolVar(&instant, "instant", false, "apply without animation")
	cmd.Flags().StringVar(&scenePath, "scene", "", "scene file describing the render tree (builtin demo scene when empty)")

	return cmd
}

func runTransition(cmd *cobra.Command, themeID, mode, contextName string, instant bool, scenePath string) error {
	ctx := cmd.Context()

	rt, cleanup, err := newRuntime(ctx, scenePath)
	if err != nil {
		return err
	}
	defer cleanup()

	desc := theme.Descriptor{
		ThemeID:   themeID,
		ColorMode: theme.ColorMode(mode),
		Context:   contextName,
	}

	var tr *engine.Transition
	if instant {
		tr, err = rt.orch.InstantTransition(ctx, desc)
	} else {
		tr, err = rt.orch.RequestTransition(ctx, desc)
	}
	if err != nil {
		return err
	}

	result, err := tr.Wait(ctx)
	if err != nil {
		return fmt.Errorf("transition %s: %w", tr.SessionID(), err)
	}

	if jsonOutput {
		out := struct {
			SessionID  string        `json:"session_id"`
			Descriptor string        `json:"descriptor"`
			Result     engine.Result `json:"result"`
			Announced  []string      `json:"announcements,omitempty"`
		}{
			SessionID:  tr.SessionID(),
			Descriptor: desc.Key(),
			Result:     result,
		}
		for _, a := range rt.output.Entries() {
			out.Announced = append(out.Announced, a.Message)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	status := "completed"
	switch {
	case result.Cancelled:
		status = "cancelled"
	case !result.Success:
		status = "failed"
	}
	fmt.Printf("Transition %s %s\n", tr.SessionID(), status)
	fmt.Printf("  Descriptor:  %s\n", desc.Key())
	fmt.Printf("  Duration:    %s\n", result.Metrics.Duration)
	fmt.Printf("  Updates:     %d\n", result.Metrics.UpdateCount)
	fmt.Printf("  Animations:  %d started, %d skipped\n",
		result.Metrics.AnimationsStarted, result.Metrics.AnimationsSkipped)
	fmt.Printf("  Cache:       %d hits, %d misses\n",
		result.Metrics.CacheHits, result.Metrics.CacheMisses)
	if len(result.Violations) > 0 {
		fmt.Printf("  Contrast violations:\n")
		for _, v := range result.Violations {
			fmt.Printf("    - %s\n", v)
		}
	}
	if len(result.PolicyWarnings) > 0 {
		fmt.Printf("  Policy warnings:\n")
		for _, w := range result.PolicyWarnings {
			fmt.Printf("    - %s\n", w)
		}
	}
	for _, a := range rt.output.Entries() {
		fmt.Printf("  Announced:   %s\n", a.Message)
	}
	return nil
}
