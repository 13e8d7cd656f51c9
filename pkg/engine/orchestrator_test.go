package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glazeui/glaze/pkg/a11y"
	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/rendertree/memtree"
	"github.com/glazeui/glaze/pkg/telemetry"
	"github.com/glazeui/glaze/pkg/theme"
)

// countingResolver serves fixed variables per theme id and counts calls.
type countingResolver struct {
	mu    sync.Mutex
	vars  map[string]theme.VariableSet
	calls int
}

func (r *countingResolver) ResolveVariables(ctx context.Context, desc theme.Descriptor) (theme.VariableSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	vars, ok := r.vars[desc.ThemeID]
	if !ok {
		return nil, errors.New("unknown theme " + desc.ThemeID)
	}
	return vars.Clone(), nil
}

func (r *countingResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type orchFixture struct {
	tree   *memtree.Tree
	output *a11y.BufferOutput
	prefs  *a11y.StaticProvider
	orch   *Orchestrator
}

func newFixture(t *testing.T, resolver theme.Resolver, mod func(*Options)) *orchFixture {
	t.Helper()
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{
		ID:         "panel",
		Tags:       []string{"transition-component", "transition-participating"},
		Rect:       rendertree.Rect{X: 0, Y: 0, Width: 200, Height: 100},
		Properties: rendertree.Properties{"color": "#000000"},
	})
	tree.Add(memtree.NodeSpec{
		ID:         "sidebar",
		Tags:       []string{"transition-component"},
		Rect:       rendertree.Rect{X: 300, Y: 0, Width: 100, Height: 400},
		Properties: rendertree.Properties{"color": "#000000"},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "badge",
		Tags: []string{"transition-participating"},
		Rect: rendertree.Rect{X: 500, Y: 0, Width: 20, Height: 20},
	})

	output := a11y.NewBufferOutput()
	prefs := a11y.NewStaticProvider(a11y.Preferences{})

	cfg := DefaultConfig()
	cfg.Duration = 20 * time.Millisecond
	cfg.FrameRate = 240
	cfg.ContrastInterval = 5 * time.Millisecond
	cfg.RestoreDelay = -1

	opts := Options{
		Tree:        tree,
		Resolver:    resolver,
		Config:      cfg,
		Preferences: prefs,
		Output:      output,
	}
	if mod != nil {
		mod(&opts)
	}
	orch, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(orch.Close)
	return &orchFixture{tree: tree, output: output, prefs: prefs, orch: orch}
}

func mustWait(t *testing.T, tr *Transition) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := tr.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return res
}

func TestTransitionAppliesVariablesAndCompletes(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"color": "#e0e6f0", "background-color": "#1a1a2e"},
	}}
	fx := newFixture(t, resolver, nil)

	tr, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	res := mustWait(t, tr)

	if !res.Success {
		t.Fatal("transition should succeed")
	}
	if res.Cancelled {
		t.Fatal("transition should not be cancelled")
	}
	if res.Metrics.UpdateCount != 2 {
		t.Fatalf("update count = %d, want 2", res.Metrics.UpdateCount)
	}
	for _, id := range []rendertree.NodeID{"panel", "sidebar"} {
		props, _ := fx.tree.ReadProperties(id)
		if props["color"] != "#e0e6f0" {
			t.Fatalf("node %s color = %q, want #e0e6f0", id, props["color"])
		}
	}

	entries := fx.output.Entries()
	if len(entries) != 1 {
		t.Fatalf("announcements = %d, want 1", len(entries))
	}
	if entries[0].Priority != a11y.PriorityPolite {
		t.Fatalf("announcement priority = %q, want polite", entries[0].Priority)
	}
	if !strings.Contains(entries[0].Message, "ocean") {
		t.Fatalf("announcement %q should name the theme", entries[0].Message)
	}

	if fx.orch.IsTransitioning() {
		t.Fatal("orchestrator should be idle after completion")
	}
	if got := fx.orch.CurrentPhase(); got != PhaseIdle {
		t.Fatalf("phase = %q, want idle", got)
	}
}

func TestRepeatDescriptorHitsCache(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"color": "#e0e6f0"},
	}}
	fx := newFixture(t, resolver, nil)
	desc := theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark}

	tr, _ := fx.orch.RequestTransition(context.Background(), desc)
	mustWait(t, tr)

	tr2, _ := fx.orch.RequestTransition(context.Background(), desc)
	res := mustWait(t, tr2)

	if resolver.callCount() != 1 {
		t.Fatalf("resolver calls = %d, want 1", resolver.callCount())
	}
	if res.Metrics.CacheHits != 1 {
		t.Fatalf("cache hits = %d, want 1", res.Metrics.CacheHits)
	}
	stats := fx.orch.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("cache stats hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestResolverFailureRejectsTransition(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{}}
	fx := newFixture(t, resolver, nil)

	tr, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "missing", ColorMode: theme.ColorModeLight})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, werr := tr.Wait(ctx)
	if werr == nil {
		t.Fatal("expected resolution error")
	}
	if !IsResolution(werr) {
		t.Fatalf("error class = %q, want resolution", ClassOf(werr))
	}
	if res.Success {
		t.Fatal("failed transition should not report success")
	}
	if len(fx.output.Entries()) != 0 {
		t.Fatal("failed transition should not announce")
	}
}

func TestNewRequestSupersedesInFlightSession(t *testing.T) {
	release := make(chan struct{})
	resolver := theme.ResolverFunc(func(ctx context.Context, desc theme.Descriptor) (theme.VariableSet, error) {
		if desc.ThemeID == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return theme.VariableSet{"color": "#" + desc.ThemeID}, nil
	})
	fx := newFixture(t, resolver, nil)
	defer close(release)

	slow, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "slow", ColorMode: theme.ColorModeDark})
	if err != nil {
		t.Fatalf("RequestTransition slow: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return fx.orch.CurrentPhase() == PhaseApplying
	}, "slow session to reach applying")

	fast, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "fast", ColorMode: theme.ColorModeLight})
	if err != nil {
		t.Fatalf("RequestTransition fast: %v", err)
	}

	slowRes := mustWait(t, slow)
	if !slowRes.Cancelled {
		t.Fatal("superseded session should report cancelled")
	}
	if slowRes.Success {
		t.Fatal("superseded session should not report success")
	}

	fastRes := mustWait(t, fast)
	if !fastRes.Success {
		t.Fatal("superseding session should succeed")
	}

	// Final state reflects the superseding request only.
	for _, id := range []rendertree.NodeID{"panel", "sidebar"} {
		props, _ := fx.tree.ReadProperties(id)
		if props["color"] != "#fast" {
			t.Fatalf("node %s color = %q, want #fast", id, props["color"])
		}
	}
	for _, e := range fx.output.Entries() {
		if strings.Contains(e.Message, "slow") {
			t.Fatal("cancelled session should not announce")
		}
	}
}

func TestAbortCancelsInFlightSession(t *testing.T) {
	release := make(chan struct{})
	resolver := theme.ResolverFunc(func(ctx context.Context, desc theme.Descriptor) (theme.VariableSet, error) {
		select {
		case <-release:
			return theme.VariableSet{"color": "#fff"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	fx := newFixture(t, resolver, nil)
	defer close(release)

	tr, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return fx.orch.CurrentPhase() == PhaseApplying
	}, "session to reach applying")

	if !fx.orch.Abort() {
		t.Fatal("Abort should report a cancelled session")
	}
	res := mustWait(t, tr)
	if !res.Cancelled {
		t.Fatal("aborted session should report cancelled")
	}
	if fx.orch.Abort() {
		t.Fatal("second Abort should report nothing to cancel")
	}
}

func TestReducedMotionSkipsAnimations(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"x": "150", "color": "#e0e6f0"},
	}}
	fx := newFixture(t, resolver, nil)
	fx.prefs.Set(a11y.Preferences{ReducedMotion: true})

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	res := mustWait(t, tr)

	if !res.Success {
		t.Fatal("transition should succeed")
	}
	if res.Metrics.AnimationsStarted != 0 {
		t.Fatalf("animations started = %d, want 0", res.Metrics.AnimationsStarted)
	}
	// Final geometry is still correct, only the motion is skipped.
	rect, _ := fx.tree.Geometry("panel")
	if rect.X != 150 {
		t.Fatalf("panel x = %v, want 150", rect.X)
	}
}

func TestFlipAnimatesMovedNodesAndSkipsStillOnes(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"x": "150"},
	}}
	fx := newFixture(t, resolver, nil)

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	res := mustWait(t, tr)

	if !res.Success {
		t.Fatal("transition should succeed")
	}
	// panel moved; badge participates but receives no writes.
	if res.Metrics.AnimationsStarted != 1 {
		t.Fatalf("animations started = %d, want 1", res.Metrics.AnimationsStarted)
	}
	if res.Metrics.AnimationsSkipped != 1 {
		t.Fatalf("animations skipped = %d, want 1", res.Metrics.AnimationsSkipped)
	}
	if _, ok := fx.tree.Transform("panel"); ok {
		t.Fatal("transform should be cleared after the animation")
	}
}

func TestInstantTransitionBypassesAnimation(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"x": "150", "color": "#e0e6f0"},
	}}
	fx := newFixture(t, resolver, nil)

	tr, err := fx.orch.InstantTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeLight})
	if err != nil {
		t.Fatalf("InstantTransition: %v", err)
	}
	res := mustWait(t, tr)

	if !res.Success {
		t.Fatal("instant transition should succeed")
	}
	if res.Metrics.AnimationsStarted != 0 || res.Metrics.AnimationsSkipped != 0 {
		t.Fatalf("animations started/skipped = %d/%d, want 0/0",
			res.Metrics.AnimationsStarted, res.Metrics.AnimationsSkipped)
	}
	props, _ := fx.tree.ReadProperties("panel")
	if props["color"] != "#e0e6f0" {
		t.Fatalf("panel color = %q, want #e0e6f0", props["color"])
	}
	// Finalization still announces.
	if len(fx.output.Entries()) != 1 {
		t.Fatalf("announcements = %d, want 1", len(fx.output.Entries()))
	}
}

func TestContrastViolationsSurfaceWithoutBlocking(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"murky": {"color": "#888888", "background-color": "#999999"},
	}}
	fx := newFixture(t, resolver, nil)
	fx.tree.Add(memtree.NodeSpec{
		ID:         "button",
		Tags:       []string{"interactive", "transition-component"},
		Rect:       rendertree.Rect{X: 0, Y: 200, Width: 80, Height: 30},
		Properties: rendertree.Properties{"color": "#888888", "background-color": "#999999"},
	})

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "murky", ColorMode: theme.ColorModeDark})
	res := mustWait(t, tr)

	if !res.Success {
		t.Fatal("violations must not fail the transition")
	}
	if len(res.Violations) == 0 {
		t.Fatal("expected contrast violations in the result")
	}
	found := false
	for _, v := range res.Violations {
		if strings.Contains(v, "button") {
			found = true
		}
	}
	if !found {
		t.Fatalf("violations %v should name the failing node", res.Violations)
	}
}

type fakePolicy struct {
	warnings []string
	inputs   []PolicyInput
	mu       sync.Mutex
}

func (p *fakePolicy) EvaluateTransition(ctx context.Context, input PolicyInput) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	return p.warnings, nil
}

func TestPolicyWarningsAttachToResult(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"color": "#e0e6f0"},
	}}
	policy := &fakePolicy{warnings: []string{"transition exceeded duration budget"}}
	fx := newFixture(t, resolver, func(o *Options) { o.Policy = policy })

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	res := mustWait(t, tr)

	if len(res.PolicyWarnings) != 1 {
		t.Fatalf("policy warnings = %v, want one entry", res.PolicyWarnings)
	}
	policy.mu.Lock()
	defer policy.mu.Unlock()
	if len(policy.inputs) != 1 {
		t.Fatalf("policy evaluations = %d, want 1", len(policy.inputs))
	}
	if policy.inputs[0].Descriptor != "ocean|dark|default" {
		t.Fatalf("policy input descriptor = %q", policy.inputs[0].Descriptor)
	}
}

type fakeHistory struct {
	mu   sync.Mutex
	recs []HistoryRecord
}

func (h *fakeHistory) RecordTransition(ctx context.Context, rec HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	return nil
}

func TestHistoryRecordsCompletedSession(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean": {"color": "#e0e6f0"},
	}}
	history := &fakeHistory{}
	fx := newFixture(t, resolver, func(o *Options) { o.History = history })

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	mustWait(t, tr)

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.recs) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.recs))
	}
	rec := history.recs[0]
	if rec.Status != "completed" {
		t.Fatalf("status = %q, want completed", rec.Status)
	}
	if rec.SessionID != tr.SessionID() {
		t.Fatalf("session id = %q, want %q", rec.SessionID, tr.SessionID())
	}
	if rec.UpdateCount != 2 {
		t.Fatalf("update count = %d, want 2", rec.UpdateCount)
	}
}

func TestCacheEvictionPublishesEvent(t *testing.T) {
	tel, err := telemetry.New(&telemetry.Config{
		ServiceName: "glaze",
		Logging:     telemetry.LoggingConfig{Level: "fatal", Format: "json"},
		Events:      telemetry.EventsConfig{Enabled: true},
	})
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}

	var mu sync.Mutex
	var evicted []telemetry.Event
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		evicted = append(evicted, e)
		mu.Unlock()
	}, func(e telemetry.Event) bool { return e.Type == telemetry.EventTypeCacheEvicted })

	resolver := &countingResolver{vars: map[string]theme.VariableSet{
		"ocean":  {"color": "#e0e6f0"},
		"desert": {"color": "#f0e6d0"},
	}}
	fx := newFixture(t, resolver, func(o *Options) {
		o.Telemetry = tel
		o.Config.CacheCapacity = 1
	})

	tr, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: theme.ColorModeDark})
	mustWait(t, tr)
	tr2, _ := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "desert", ColorMode: theme.ColorModeDark})
	mustWait(t, tr2)

	// The eviction hook fires off the cache lock, so give it a beat.
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 1
	}, "eviction event")

	mu.Lock()
	defer mu.Unlock()
	if keys, _ := evicted[0].Data["keys"].([]string); len(keys) != 1 {
		t.Fatalf("evicted keys = %v, want one entry", evicted[0].Data["keys"])
	}
}

func TestRequestValidation(t *testing.T) {
	resolver := &countingResolver{vars: map[string]theme.VariableSet{}}
	fx := newFixture(t, resolver, nil)

	if _, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ColorMode: theme.ColorModeDark}); ClassOf(err) != ErrorClassValidation {
		t.Fatalf("empty theme id error = %v, want validation", err)
	}
	if _, err := fx.orch.RequestTransition(context.Background(), theme.Descriptor{ThemeID: "ocean", ColorMode: "sepia"}); ClassOf(err) != ErrorClassValidation {
		t.Fatalf("bad color mode error = %v, want validation", err)
	}
}

func TestNewRequiresTreeAndResolver(t *testing.T) {
	if _, err := New(Options{Resolver: theme.ResolverFunc(nil)}); err == nil {
		t.Fatal("expected error without tree")
	}
	if _, err := New(Options{Tree: memtree.New()}); err == nil {
		t.Fatal("expected error without resolver")
	}
}
