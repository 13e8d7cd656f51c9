package commands

import (
	"context"
	"fmt"

	"github.com/glazeui/glaze/pkg/a11y"
	"github.com/glazeui/glaze/pkg/engine"
	"github.com/glazeui/glaze/pkg/policy"
	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/rendertree/memtree"
	"github.com/glazeui/glaze/pkg/stores"
	"github.com/glazeui/glaze/pkg/telemetry"
	"github.com/glazeui/glaze/pkg/theme"
)

// runtime bundles the engine and its collaborators as assembled for one
// CLI invocation.
type runtime struct {
	tel      *telemetry.Telemetry
	resolver *theme.DirResolver
	orch     *engine.Orchestrator
	output   *a11y.BufferOutput
	history  *stores.HistoryStore
}

// newTelemetry builds telemetry from the default config, bumped to debug
// console output when --verbose is set.
func newTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		// Keep stdout clean for the command's JSON result.
		cfg.Logging.Format = "json"
	}
	return telemetry.New(cfg)
}

// loadEngineConfig reads --config when given, otherwise defaults.
func loadEngineConfig() (engine.Config, error) {
	if configPath == "" {
		return engine.DefaultConfig(), nil
	}
	return engine.LoadConfig(configPath)
}

// demoScene builds the synthetic render tree the CLI drives transitions
// against. The scene mirrors a small application shell: a header, a
// sidebar, a content panel, and two interactive controls, all tagged so
// they receive property writes, and the movable ones tagged so they
// participate in geometry animation.
func demoScene(cfg engine.Config) *memtree.Tree {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{
		ID:   "header",
		Tags: []string{cfg.ComponentTag},
		Rect: rendertree.Rect{X: 0, Y: 0, Width: 800, Height: 60},
		Properties: rendertree.Properties{
			"background": "#ffffff",
			"foreground": "#1a1a1a",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "sidebar",
		Tags: []string{cfg.ComponentTag, cfg.ParticipatingTag},
		Rect: rendertree.Rect{X: 0, Y: 60, Width: 200, Height: 540},
		Properties: rendertree.Properties{
			"background": "#f4f4f4",
			"foreground": "#1a1a1a",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "content",
		Tags: []string{cfg.ComponentTag, cfg.ParticipatingTag},
		Rect: rendertree.Rect{X: 200, Y: 60, Width: 600, Height: 540},
		Properties: rendertree.Properties{
			"background": "#ffffff",
			"foreground": "#1a1a1a",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "save-button",
		Tags: []string{cfg.ComponentTag, "interactive"},
		Rect: rendertree.Rect{X: 620, Y: 540, Width: 80, Height: 32},
		Properties: rendertree.Properties{
			"background": "#0057b7",
			"foreground": "#ffffff",
		},
		Focusable: true,
	})
	tree.Add(memtree.NodeSpec{
		ID:   "cancel-button",
		Tags: []string{cfg.ComponentTag, "interactive"},
		Rect: rendertree.Rect{X: 710, Y: 540, Width: 80, Height: 32},
		Properties: rendertree.Properties{
			"background": "#e0e0e0",
			"foreground": "#1a1a1a",
		},
		Focusable: true,
	})
	return tree
}

// newRuntime assembles the engine against the scene loaded from scenePath,
// or the builtin demo scene when scenePath is empty. The caller must call
// the returned cleanup when done.
func newRuntime(ctx context.Context, scenePath string) (*runtime, func(), error) {
	tel, err := newTelemetry()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	tree := demoScene(cfg)
	if scenePath != "" {
		tree, err = loadScene(scenePath)
		if err != nil {
			return nil, nil, err
		}
	}

	resolver := theme.NewDirResolver(themesDir)

	polEngine, err := policy.NewEngine(tel.Logger.Zerolog())
	if err != nil {
		return nil, nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	if len(policyPaths) > 0 {
		if err := polEngine.LoadPolicies(ctx, policyPaths); err != nil {
			return nil, nil, fmt.Errorf("load policies: %w", err)
		}
	}

	var history *stores.HistoryStore
	if dbPath != "" {
		history, err = stores.Open(ctx, stores.Config{Path: dbPath})
		if err != nil {
			return nil, nil, fmt.Errorf("open history store: %w", err)
		}
	}

	output := a11y.NewBufferOutput()

	opts := engine.Options{
		Tree:      tree,
		Resolver:  resolver,
		Config:    cfg,
		Output:    output,
		Telemetry: tel,
		Policy:    polEngine,
	}
	if history != nil {
		opts.History = history
	}

	orch, err := engine.New(opts)
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, nil, fmt.Errorf("initialize engine: %w", err)
	}

	rt := &runtime{
		tel:      tel,
		resolver: resolver,
		orch:     orch,
		output:   output,
		history:  history,
	}
	cleanup := func() {
		orch.Close()
		if history != nil {
			history.Close()
		}
		tel.Shutdown(context.Background())
	}
	return rt, cleanup, nil
}
