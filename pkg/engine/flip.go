package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/telemetry"
)

// FlipRecord is the captured pre-transition geometry of one node.
type FlipRecord struct {
	// Node is the tracked node.
	Node rendertree.NodeID

	// First is the geometry before the variable writes commit.
	First rendertree.Rect
}

// PlayStats summarizes one animation pass.
type PlayStats struct {
	// Started counts nodes whose geometry moved and got an animation.
	Started int

	// Skipped counts nodes whose geometry delta was below the epsilon.
	Skipped int

	// Vanished counts nodes removed between capture and play.
	Vanished int
}

// Flip animates layout changes with the first-last-invert-play
// technique: geometry is captured before the change, the delta is
// inverted into a transform, and the transform animates back to
// identity so nodes appear to glide between positions.
type Flip struct {
	tree    rendertree.Tree
	epsilon float64
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewFlip creates a coordinator using epsilon as the no-op tolerance.
func NewFlip(tree rendertree.Tree, epsilon float64, logger zerolog.Logger, metrics *telemetry.Metrics) *Flip {
	if epsilon <= 0 {
		epsilon = DefaultGeometryEpsilon
	}
	return &Flip{
		tree:    tree,
		epsilon: epsilon,
		logger:  logger.With().Str("component", "flip").Logger(),
		metrics: metrics,
	}
}

// Capture snapshots the geometry of every node carrying tag.
func (f *Flip) Capture(tag string) []FlipRecord {
	nodes := f.tree.NodesByTag(tag)
	records := make([]FlipRecord, 0, len(nodes))
	for _, id := range nodes {
		rect, ok := f.tree.Geometry(id)
		if !ok {
			continue
		}
		records = append(records, FlipRecord{Node: id, First: rect})
	}
	f.logger.Debug().Int("nodes", len(records)).Str("tag", tag).Msg("captured geometry")
	return records
}

// Play measures the post-change geometry of each captured node,
// inverts the delta, and animates the transform back to identity.
// It blocks until every animation completes or ctx is cancelled.
// On cancellation all animations stop and their transforms clear, so
// nodes land at their final geometry immediately.
func (f *Flip) Play(ctx context.Context, records []FlipRecord, duration time.Duration, timing string) PlayStats {
	var stats PlayStats
	type running struct {
		node rendertree.NodeID
		anim rendertree.Animation
	}
	var active []running

	for _, rec := range records {
		last, ok := f.tree.Geometry(rec.Node)
		if !ok {
			stats.Vanished++
			f.logger.Debug().Str("node", string(rec.Node)).Msg("node vanished before play")
			continue
		}
		if rec.First.ApproxEqual(last, f.epsilon) {
			stats.Skipped++
			continue
		}
		invert := rendertree.InvertDelta(rec.First, last)
		anim, ok := f.tree.Animate(rec.Node, invert, duration, timing)
		if !ok {
			stats.Vanished++
			continue
		}
		stats.Started++
		active = append(active, running{node: rec.Node, anim: anim})
	}

	f.metrics.RecordAnimations(stats.Started, stats.Skipped)
	if len(active) == 0 {
		return stats
	}

	allDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(active))
	for _, r := range active {
		go func(a rendertree.Animation) {
			defer wg.Done()
			<-a.Done()
		}(r.anim)
	}
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		for _, r := range active {
			r.anim.Stop()
			f.tree.ClearTransform(r.node)
		}
		<-allDone
		f.logger.Debug().Int("stopped", len(active)).Msg("animations cancelled")
	}
	return stats
}
